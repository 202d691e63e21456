// Package config loads archivist settings.
//
// Settings come from three layers, later layers winning: built-in defaults
// (Default), an optional CUE file validated against the embedded #Config
// schema (Load), and command-line flags applied by the caller.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Log levels and formats accepted in configuration.
const (
	LogFormatText   = "text"
	LogFormatLogfmt = "logfmt"
	LogFormatJSON   = "json"
)

// Config is the effective configuration of an archivist process.
type Config struct {
	Database string
	Origin   OriginConfig
	Cache    CacheConfig
	Listen   string
	Log      LogConfig
	Seed     SeedConfig
	Resolver ResolverConfig
}

// OriginConfig configures the remote origin client.
type OriginConfig struct {
	URL           string
	Timeout       time.Duration
	RetryCooldown time.Duration
}

// CacheConfig sizes in-memory caches.
type CacheConfig struct {
	Users int64
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// SeedConfig configures bulk seeding.
type SeedConfig struct {
	Concurrency int
}

// ResolverConfig configures reference resolution.
type ResolverConfig struct {
	MaxSteps int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "archive.db",
		Origin: OriginConfig{
			URL:           "http://127.0.0.1:8080",
			Timeout:       30 * time.Second,
			RetryCooldown: 2 * time.Second,
		},
		Cache:    CacheConfig{Users: 10_000},
		Listen:   "127.0.0.1:8081",
		Log:      LogConfig{Level: "info", Format: LogFormatText},
		Seed:     SeedConfig{Concurrency: 4},
		Resolver: ResolverConfig{MaxSteps: 1000},
	}
}

// file mirrors the schema; nil fields were omitted from the file.
type file struct {
	Database *string `json:"database"`
	Origin   *struct {
		URL           *string `json:"url"`
		Timeout       *string `json:"timeout"`
		RetryCooldown *string `json:"retry_cooldown"`
	} `json:"origin"`
	Cache *struct {
		Users *int64 `json:"users"`
	} `json:"cache"`
	Listen *string `json:"listen"`
	Log    *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
	Seed *struct {
		Concurrency *int `json:"concurrency"`
	} `json:"seed"`
	Resolver *struct {
		MaxSteps *int `json:"max_steps"`
	} `json:"resolver"`
}

// Load returns the defaults overlaid with the CUE file at path. An empty
// path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.apply(path, data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse overlays CUE source onto the defaults. filename is used in error
// positions only.
func Parse(filename string, data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.apply(filename, data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	var f file
	if err := v.Decode(&f); err != nil {
		return formatCUEError(err)
	}
	return c.merge(f)
}

func (c *Config) merge(f file) error {
	if f.Database != nil {
		c.Database = *f.Database
	}
	if f.Origin != nil {
		if f.Origin.URL != nil {
			c.Origin.URL = *f.Origin.URL
		}
		if err := mergeDuration(&c.Origin.Timeout, f.Origin.Timeout, "origin.timeout"); err != nil {
			return err
		}
		if err := mergeDuration(&c.Origin.RetryCooldown, f.Origin.RetryCooldown, "origin.retry_cooldown"); err != nil {
			return err
		}
	}
	if f.Cache != nil && f.Cache.Users != nil {
		c.Cache.Users = *f.Cache.Users
	}
	if f.Listen != nil {
		c.Listen = *f.Listen
	}
	if f.Log != nil {
		if f.Log.Level != nil {
			c.Log.Level = *f.Log.Level
		}
		if f.Log.Format != nil {
			c.Log.Format = *f.Log.Format
		}
	}
	if f.Seed != nil && f.Seed.Concurrency != nil {
		c.Seed.Concurrency = *f.Seed.Concurrency
	}
	if f.Resolver != nil && f.Resolver.MaxSteps != nil {
		c.Resolver.MaxSteps = *f.Resolver.MaxSteps
	}
	return nil
}

func mergeDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return &Error{Field: field, Message: err.Error()}
	}
	*dst = d
	return nil
}

// Validate checks a configuration after flag overrides have been applied.
func (c Config) Validate() error {
	if c.Database == "" {
		return &Error{Field: "database", Message: "must not be empty"}
	}
	u, err := url.Parse(c.Origin.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Field: "origin.url", Message: fmt.Sprintf("not an http(s) URL: %q", c.Origin.URL)}
	}
	if c.Origin.Timeout <= 0 {
		return &Error{Field: "origin.timeout", Message: "must be positive"}
	}
	if c.Origin.RetryCooldown < 0 {
		return &Error{Field: "origin.retry_cooldown", Message: "must not be negative"}
	}
	if c.Cache.Users < 0 {
		return &Error{Field: "cache.users", Message: "must not be negative"}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatLogfmt, LogFormatJSON:
	default:
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	if c.Seed.Concurrency < 1 {
		return &Error{Field: "seed.concurrency", Message: "must be at least 1"}
	}
	if c.Resolver.MaxSteps < 1 {
		return &Error{Field: "resolver.max_steps", Message: "must be at least 1"}
	}
	return nil
}

// Error is a configuration error, positioned in the CUE file when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	path := first.Path()
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	if len(path) > 0 {
		field = strings.Join(path, ".")
	}
	e := &Error{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
