// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package config loads the process bootstrap configuration.

Configuration is layered with koanf, lowest priority first:

 1. Struct defaults from defaultConfig()
 2. An optional YAML file (CONFIG_PATH, then DefaultConfigPaths)
 3. Environment variables mapped through an explicit allow list

The audit section seeds the first Config Store snapshot. Everything else
(server, database, shared identity tier, capture, notification transport,
supervisor) is fixed for the life of the process.

# Drift

FileWatcher watches the loaded YAML file and reports edits to the Config
Store monitor tick, which marks the live snapshot as having unsynced
changes. The file is never re-applied automatically.

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	store := dynconfig.NewManager(cfg.Audit)
*/
package config
