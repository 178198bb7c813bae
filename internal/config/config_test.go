package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
base_url: https://directory.example.edu
username: jdoe
password: hunter2
query: class of 2009
subject: Hello from an old classmate
body: It has been a while. Hope you are doing well.
`

// TestLoad_Defaults tests that a minimal document gets the documented
// defaults for every optional field.
func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://directory.example.edu", cfg.BaseURL)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 10, cfg.Cap)
	assert.Equal(t, 1.0, cfg.JitterFactor)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, "lastName", cfg.SortBy)
	assert.True(t, cfg.ExcludeDeceased)
	assert.True(t, cfg.SendCopy)
	assert.Equal(t, "5m", cfg.MFATimeout)
	assert.Equal(t, 5*time.Minute, cfg.MFAWait())
}

// TestLoad_Overrides tests that explicit values survive validation
// unchanged.
func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
data_dir: /var/lib/dirmail
cap: 25
jitter_factor: 0.5
page_size: 10
sort_by: classYear
exclude_deceased: false
mfa_timeout: -1s
send_copy: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dirmail", cfg.DataDir)
	assert.Equal(t, 25, cfg.Cap)
	assert.Equal(t, 0.5, cfg.JitterFactor)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "classYear", cfg.SortBy)
	assert.False(t, cfg.ExcludeDeceased)
	assert.False(t, cfg.SendCopy)
	assert.Negative(t, cfg.MFAWait())
}

// TestLoad_EnvOverlay tests that DIRMAIL_* variables win over the file,
// so credentials never need to be written down.
func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("DIRMAIL_USERNAME", "env-user")
	t.Setenv("DIRMAIL_PASSWORD", "env-pass")

	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "env-pass", cfg.Password)
}

// TestLoad_Invalid tests that constraint violations are rejected with
// an error naming the offending field.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing username",
			yaml: `
base_url: https://directory.example.edu
password: hunter2
query: q
subject: s
body: b
`,
			want: "username",
		},
		{
			name: "plain http",
			yaml: `
base_url: http://directory.example.edu
username: jdoe
password: hunter2
query: q
subject: s
body: b
`,
			want: "base_url",
		},
		{
			name: "cap above limit",
			yaml: minimalYAML + "cap: 150\n",
			want: "cap",
		},
		{
			name: "negative jitter",
			yaml: minimalYAML + "jitter_factor: -0.5\n",
			want: "jitter_factor",
		},
		{
			name: "unsupported page size",
			yaml: minimalYAML + "page_size: 30\n",
			want: "page_size",
		},
		{
			name: "unknown sort",
			yaml: minimalYAML + "sort_by: shoeSize\n",
			want: "sort_by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestLoad_BadTimeout tests that a malformed duration string fails
// after schema validation.
func TestLoad_BadTimeout(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+"mfa_timeout: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mfa_timeout")
}

// TestLoad_MissingFile tests the error for a path that does not exist.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoad_MalformedYAML tests that unparsable input fails before
// validation.
func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "base_url: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dirmail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
