// Package config loads and validates the run configuration.
//
// Configuration comes from a YAML file, with credentials optionally
// overlaid from DIRMAIL_* environment variables so they never need to
// live on disk. The merged document is validated against an embedded
// CUE schema, which also supplies defaults for omitted fields.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the fully resolved run configuration. All fields are
// concrete after Load: defaults applied, constraints checked.
type Config struct {
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`

	Query   string `json:"query" yaml:"query"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`

	Cap          int     `json:"cap" yaml:"cap"`
	JitterFactor float64 `json:"jitter_factor" yaml:"jitter_factor"`

	PageSize        int    `json:"page_size" yaml:"page_size"`
	SortBy          string `json:"sort_by" yaml:"sort_by"`
	ExcludeDeceased bool   `json:"exclude_deceased" yaml:"exclude_deceased"`

	MFATimeout string `json:"mfa_timeout" yaml:"mfa_timeout"`
	SendCopy   bool   `json:"send_copy" yaml:"send_copy"`

	mfaWait time.Duration
}

// MFAWait returns the parsed MFA approval timeout. Negative means wait
// indefinitely.
func (c *Config) MFAWait() time.Duration {
	return c.mfaWait
}

// envOverrides maps DIRMAIL_* environment variables onto document keys.
// Environment wins over the file so credentials can stay out of it.
var envOverrides = map[string]string{
	"DIRMAIL_BASE_URL": "base_url",
	"DIRMAIL_USERNAME": "username",
	"DIRMAIL_PASSWORD": "password",
	"DIRMAIL_DATA_DIR": "data_dir",
	"DIRMAIL_QUERY":    "query",
	"DIRMAIL_SUBJECT":  "subject",
	"DIRMAIL_BODY":     "body",
}

// Load reads the YAML document at path, overlays DIRMAIL_* environment
// variables, and validates the result against the embedded schema.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for env, key := range envOverrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			raw[key] = v
		}
	}

	cfg, err := validate(raw)
	if err != nil {
		return nil, err
	}

	wait, err := time.ParseDuration(cfg.MFATimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid config: mfa_timeout: %w", err)
	}
	cfg.mfaWait = wait

	return cfg, nil
}

// validate unifies the document with #Config, which both checks the
// constraints and fills in defaults.
func validate(raw map[string]any) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}

	val := def.Unify(ctx.Encode(raw))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := val.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
