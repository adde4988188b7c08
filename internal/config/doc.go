// Package config loads runtime configuration for the sync core.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path to the local database file
//	-i int      sync interval (seconds)
//	-b int      sync batch size
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "database_path": "assetsync.db",
//	  "sync_interval": "30s",
//	  "sync_batch_size": 10,
//	  "max_retries": 3,
//	  "max_queue_size": 1000,
//	  "retention": "168h",
//	  "scan_timeout": "30s",
//	  "location_timeout": "5s"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
