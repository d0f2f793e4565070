/*
Package config builds buses from files and environment variables.

# Overview

Settings describes one bus: its name, bucket removal policies, logging,
OpenTelemetry metrics and tracing, and emission history. Settings load from a
YAML or JSON file, or from MSGBUS_* environment variables, and turn into
msgbus bus options.

# File Loading

	s, err := config.FromFile("bus.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	bus, built, err := s.NewBus(slog.Default())
	if err != nil {
	    log.Fatal(err)
	}
	defer built.Close()

A file looks like:

	name: gameplay
	removal_policy: keep_empty
	removal_policies:
	  targeted: delete_empty
	log_emissions: true
	history:
	  enabled: true
	  capacity: 512

# Environment

FromEnv reads the same settings with github.com/caarlos0/env:

	MSGBUS_NAME=gameplay
	MSGBUS_REMOVAL_POLICY=keep_empty
	MSGBUS_REMOVAL_POLICIES=targeted:delete_empty,broadcast:keep_empty
	MSGBUS_HISTORY_SQLITE_PATH=./history.db

# Typed Access

Config wraps a decoded document and provides accessors that return a default
when a key is missing or has the wrong type:

	cfg, _ := config.FromYAML(data)
	capacity := cfg.Section("history").Int("capacity", 256)
*/
package config
