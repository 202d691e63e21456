package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivist.cue")
	src := `
database: "/var/lib/archivist/archive.db"
origin: {
	url:     "https://origin.example.com"
	timeout: "5s"
}
cache: users: 0
log: format: "json"
resolver: max_steps: 50
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Database = "/var/lib/archivist/archive.db"
	want.Origin.URL = "https://origin.example.com"
	want.Origin.Timeout = 5 * time.Second
	want.Cache.Users = 0
	want.Log.Format = LogFormatJSON
	want.Resolver.MaxSteps = 50
	assert.Equal(t, want, cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `colour: "blue"`},
		{"bad scheme", `origin: url: "ftp://example.com"`},
		{"bad duration", `origin: timeout: "soon"`},
		{"negative cache", `cache: users: -1`},
		{"unknown level", `log: level: "loud"`},
		{"zero concurrency", `seed: concurrency: 0`},
		{"syntax error", `database: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.cue", []byte(tt.src))
			require.Error(t, err)
		})
	}
}

func TestParse_ErrorHasPosition(t *testing.T) {
	_, err := Parse("archivist.cue", []byte("log: level: \"loud\"\n"))
	require.Error(t, err)

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"relative origin", func(c *Config) { c.Origin.URL = "origin.example.com" }, "origin.url"},
		{"zero timeout", func(c *Config) { c.Origin.Timeout = 0 }, "origin.timeout"},
		{"negative cooldown", func(c *Config) { c.Origin.RetryCooldown = -time.Second }, "origin.retry_cooldown"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero steps", func(c *Config) { c.Resolver.MaxSteps = 0 }, "resolver.max_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
