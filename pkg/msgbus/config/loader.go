package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "MSGBUS_"

// FromFile loads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	case ".json":
		cfg, err = FromJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err != nil {
		return Settings{}, err
	}
	return FromConfig(cfg)
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromConfig reads settings from a decoded document:
//
//	name: gameplay
//	removal_policy: keep_empty
//	removal_policies:
//	  targeted: delete_empty
//	post_removal_policy: delete_empty
//	log_emissions: true
//	log_dispatch: false
//	metrics: true
//	tracing: false
//	history:
//	  enabled: true
//	  capacity: 512
//	  sqlite_path: ./history.db
func FromConfig(cfg Config) (Settings, error) {
	h := cfg.Section("history")
	s := Settings{
		Name:                cfg.String("name", ""),
		RemovalPolicy:       cfg.String("removal_policy", ""),
		RemovalPolicies:     cfg.StringMap("removal_policies"),
		PostRemovalPolicy:   cfg.String("post_removal_policy", ""),
		PostRemovalPolicies: cfg.StringMap("post_removal_policies"),
		LogEmissions:        cfg.Bool("log_emissions", false),
		LogDispatch:         cfg.Bool("log_dispatch", false),
		Metrics:             cfg.Bool("metrics", false),
		Tracing:             cfg.Bool("tracing", false),
		History: HistorySettings{
			Enabled:    h.Bool("enabled", false),
			Capacity:   h.Int("capacity", 0),
			SQLitePath: h.String("sqlite_path", ""),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FromEnv reads settings from MSGBUS_* environment variables.
func FromEnv() (Settings, error) {
	return FromEnvironment(nil)
}

// FromEnvironment is FromEnv over an explicit variable set. A nil map reads
// the process environment.
func FromEnvironment(environ map[string]string) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
