package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(identity string, status Status) Record {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return Record{
		Identity:    identity,
		DisplayName: "Test Person",
		Email:       identity + "@example.edu",
		Status:      status,
		RunID:       "run-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestOpen_AbsentFile tests that a missing ledger yields an empty store.
func TestOpen_AbsentFile(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	assert.Equal(t, 0, led.Len())
	assert.False(t, led.Contains("anyone"))
}

// TestOpen_CorruptFile tests that an unparseable ledger is fatal.
func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, recordsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	led, err := Open(dir)
	require.Error(t, err)
	require.Nil(t, led)

	var ce *CorruptError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.Path)
	assert.True(t, IsCorrupt(err))

	// The failed open must release the lock so a repaired ledger can
	// be opened without manual cleanup.
	assert.NoFileExists(t, filepath.Join(dir, lockFile))
}

// TestOpen_UnknownStatus tests that invalid status values are treated
// as corruption, not silently accepted.
func TestOpen_UnknownStatus(t *testing.T) {
	dir := t.TempDir()
	doc := map[string]Record{
		"p1": {Identity: "p1", Status: Status("viewed"), RunID: "run-1"},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, recordsFile), data, 0o644))

	_, err = Open(dir)
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
}

// TestCommit_Durability tests that a committed record survives reload.
func TestCommit_Durability(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, led.Commit(testRecord("p100", StatusSent)))
	require.NoError(t, led.Close())

	// Reload simulates a crash immediately after commit.
	led2, err := Open(dir)
	require.NoError(t, err)
	defer led2.Close()

	assert.True(t, led2.Contains("p100"))
	rec, ok := led2.Get("p100")
	require.True(t, ok)
	assert.Equal(t, StatusSent, rec.Status)
	assert.Equal(t, "run-1", rec.RunID)
}

// TestCommit_SupersetAcrossCommits tests that commits never drop
// existing records.
func TestCommit_SupersetAcrossCommits(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	require.NoError(t, led.Commit(testRecord("p1", StatusSent)))
	require.NoError(t, led.Commit(testRecord("p2", StatusFailed)))
	require.NoError(t, led.Commit(testRecord("p3", StatusSent)))

	snap, err := Snapshot(dir)
	require.NoError(t, err)
	assert.Len(t, snap, 3)
	for _, identity := range []string{"p1", "p2", "p3"} {
		assert.Contains(t, snap, identity)
	}
}

// TestCommit_NeverDowngradesSent tests the sent-once invariant: a
// failed outcome can never overwrite a sent record.
func TestCommit_NeverDowngradesSent(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	require.NoError(t, led.Commit(testRecord("p1", StatusSent)))

	failed := testRecord("p1", StatusFailed)
	failed.RunID = "run-2"
	require.NoError(t, led.Commit(failed))

	rec, ok := led.Get("p1")
	require.True(t, ok)
	assert.Equal(t, StatusSent, rec.Status)
	assert.Equal(t, "run-1", rec.RunID)
	assert.True(t, led.Contains("p1"))
}

// TestCommit_FailedThenSent tests the retry path: a failed record may
// be upgraded to sent by a later run, keeping its original CreatedAt.
func TestCommit_FailedThenSent(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	first := testRecord("p1", StatusFailed)
	require.NoError(t, led.Commit(first))
	assert.False(t, led.Contains("p1"), "failed records must not count as contacted")

	retry := testRecord("p1", StatusSent)
	retry.RunID = "run-2"
	retry.CreatedAt = first.CreatedAt.Add(24 * time.Hour)
	require.NoError(t, led.Commit(retry))

	rec, ok := led.Get("p1")
	require.True(t, ok)
	assert.Equal(t, StatusSent, rec.Status)
	assert.Equal(t, "run-2", rec.RunID)
	assert.Equal(t, first.CreatedAt, rec.CreatedAt, "CreatedAt is preserved across updates")
}

// TestCommit_RejectsInvalid tests validation of empty identity and
// unknown status.
func TestCommit_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	err = led.Commit(Record{Status: StatusSent})
	assert.Error(t, err)

	err = led.Commit(Record{Identity: "p1", Status: Status("bogus")})
	assert.Error(t, err)
	assert.Equal(t, 0, led.Len())
}

// TestContains_NormalizesIdentity tests that lookup and commit agree on
// the canonical key form.
func TestContains_NormalizesIdentity(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	require.NoError(t, led.Commit(testRecord("Jane.Doe@Example.EDU", StatusSent)))

	assert.True(t, led.Contains("jane.doe@example.edu"))
	assert.True(t, led.Contains("  JANE.DOE@example.edu  "))
	assert.Equal(t, 1, led.Len())
}

// TestOpen_Locked tests that a second concurrent open is rejected.
func TestOpen_Locked(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	second, err := Open(dir)
	require.Error(t, err)
	require.Nil(t, second)

	var le *LockedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, os.Getpid(), le.PID)
	assert.True(t, IsLocked(err))
}

// TestOpen_LockReleasedOnClose tests that Close allows a new run.
func TestOpen_LockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, led.Close())

	led2, err := Open(dir)
	require.NoError(t, err)
	assert.NoError(t, led2.Close())
}

// TestCommit_NoPartialWriteObserved tests the atomic-replace contract:
// after a commit the document on disk parses cleanly and no temp file
// remains.
func TestCommit_NoPartialWriteObserved(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	for i := 0; i < 20; i++ {
		rec := testRecord(identityForIndex(i), StatusSent)
		require.NoError(t, led.Commit(rec))

		snap, err := Snapshot(dir)
		require.NoError(t, err, "document must parse after every commit")
		assert.Len(t, snap, i+1)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-", "no stray temp files")
	}
}

func identityForIndex(i int) string {
	return string(rune('a'+i%26)) + "-person"
}

// TestRecords_SortedByIdentity tests deterministic inspection order.
func TestRecords_SortedByIdentity(t *testing.T) {
	dir := t.TempDir()

	led, err := Open(dir)
	require.NoError(t, err)
	defer led.Close()

	require.NoError(t, led.Commit(testRecord("zeta", StatusSent)))
	require.NoError(t, led.Commit(testRecord("alpha", StatusFailed)))
	require.NoError(t, led.Commit(testRecord("mid", StatusSent)))

	recs := led.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "alpha", recs[0].Identity)
	assert.Equal(t, "mid", recs[1].Identity)
	assert.Equal(t, "zeta", recs[2].Identity)
}
