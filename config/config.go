// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads erldist's runtime configuration from a TOML
// file, ERLDIST_-prefixed environment variables, and command-line
// flags, in that ascending order of precedence — the same layering
// bft-labs-walship's agent config uses for its own settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is erldist's complete runtime configuration (spec SPEC_FULL.md
// §4.I). Connection-affecting fields are immutable once passed to
// Dial; only LogLevel is eligible for hot-reload via Watcher.
type Config struct {
	NodeName    string
	Cookie      string
	RemoteNode  string
	RegisterAs  string
	DialTimeout time.Duration

	StringPolicy  string // "binary" | "atom" | "charlist"
	UnkeyedPolicy string // "list" | "tuple"
	KeyedPolicy   string // "map" | "keyword_list"

	LogLevel string
}

// Default returns the zero-configuration starting point flags, env,
// and file values are layered onto.
func Default() Config {
	return Config{
		DialTimeout:   10 * time.Second,
		StringPolicy:  "binary",
		UnkeyedPolicy: "list",
		KeyedPolicy:   "map",
		LogLevel:      "info",
	}
}

// Validate checks required fields and rejects unknown policy names.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return fmt.Errorf("node-name is required")
	}
	if c.Cookie == "" {
		return fmt.Errorf("cookie is required")
	}
	if c.RemoteNode == "" {
		return fmt.Errorf("remote-node is required")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial-timeout must be positive")
	}
	switch c.StringPolicy {
	case "binary", "atom", "charlist":
	default:
		return fmt.Errorf("string-policy must be one of binary, atom, charlist")
	}
	switch c.UnkeyedPolicy {
	case "list", "tuple":
	default:
		return fmt.Errorf("unkeyed-policy must be one of list, tuple")
	}
	switch c.KeyedPolicy {
	case "map", "keyword_list":
	default:
		return fmt.Errorf("keyed-policy must be one of map, keyword_list")
	}
	return nil
}

// configSetter applies a value only when the corresponding flag was
// not explicitly set by the user, so flags always win over env and
// file values regardless of load order.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// EnvPrefix is prepended to every environment variable config.LoadEnv
// reads, e.g. ERLDIST_COOKIE.
const EnvPrefix = "ERLDIST_"

// LoadEnv applies ERLDIST_-prefixed environment variables onto cfg,
// skipping any field whose flag was already explicitly set.
func LoadEnv(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString("node-name", os.Getenv(EnvPrefix+"NODE_NAME"), &cfg.NodeName)
	s.setString("cookie", os.Getenv(EnvPrefix+"COOKIE"), &cfg.Cookie)
	s.setString("remote-node", os.Getenv(EnvPrefix+"REMOTE_NODE"), &cfg.RemoteNode)
	s.setString("register-as", os.Getenv(EnvPrefix+"REGISTER_AS"), &cfg.RegisterAs)
	s.setString("string-policy", os.Getenv(EnvPrefix+"STRING_POLICY"), &cfg.StringPolicy)
	s.setString("unkeyed-policy", os.Getenv(EnvPrefix+"UNKEYED_POLICY"), &cfg.UnkeyedPolicy)
	s.setString("keyed-policy", os.Getenv(EnvPrefix+"KEYED_POLICY"), &cfg.KeyedPolicy)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	if err := s.setDuration("dial-timeout", os.Getenv(EnvPrefix+"DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	return nil
}

// fileConfig mirrors Config but keeps durations as strings, the TOML-
// friendly shape the teacher-adjacent config loader uses.
type fileConfig struct {
	NodeName      string `toml:"node_name"`
	Cookie        string `toml:"cookie"`
	RemoteNode    string `toml:"remote_node"`
	RegisterAs    string `toml:"register_as"`
	DialTimeout   string `toml:"dial_timeout"`
	StringPolicy  string `toml:"string_policy"`
	UnkeyedPolicy string `toml:"unkeyed_policy"`
	KeyedPolicy   string `toml:"keyed_policy"`
	LogLevel      string `toml:"log_level"`
}

// LoadFile reads and parses path as TOML.
func LoadFile(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile layers fc onto cfg, skipping fields whose flag was
// explicitly set.
func ApplyFile(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString("node-name", fc.NodeName, &cfg.NodeName)
	s.setString("cookie", fc.Cookie, &cfg.Cookie)
	s.setString("remote-node", fc.RemoteNode, &cfg.RemoteNode)
	s.setString("register-as", fc.RegisterAs, &cfg.RegisterAs)
	s.setString("string-policy", fc.StringPolicy, &cfg.StringPolicy)
	s.setString("unkeyed-policy", fc.UnkeyedPolicy, &cfg.UnkeyedPolicy)
	s.setString("keyed-policy", fc.KeyedPolicy, &cfg.KeyedPolicy)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	return s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout)
}

// DefaultPath returns ~/.erldist/config.toml, or "" if the user's
// home directory can't be resolved.
func DefaultPath() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(h, ".erldist", "config.toml")
}

// FileExists reports whether a regular file exists at p.
func FileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
