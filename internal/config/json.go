package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fieldtrack/assetsync/internal/flagx"
	"github.com/fieldtrack/assetsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabasePath    string         `json:"database_path"`
	SyncInterval    timex.Duration `json:"sync_interval"`
	SyncBatchSize   int            `json:"sync_batch_size"`
	MaxRetries      int            `json:"max_retries"`
	MaxQueueSize    int            `json:"max_queue_size"`
	Retention       timex.Duration `json:"retention"`
	ScanTimeout     timex.Duration `json:"scan_timeout"`
	LocationTimeout timex.Duration `json:"location_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c or -config flag via
// flagx.JsonConfigFlags(); when absent no JSON is loaded. Read or unmarshal
// errors panic (caller should recover if desired). Zero-valued JSON fields
// leave the corresponding Config field untouched.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.SyncBatchSize > 0 {
		cfg.SyncBatchSize = jc.SyncBatchSize
	}
	if jc.MaxRetries > 0 {
		cfg.MaxRetries = jc.MaxRetries
	}
	if jc.MaxQueueSize > 0 {
		cfg.MaxQueueSize = jc.MaxQueueSize
	}
	if jc.Retention.Duration > 0 {
		cfg.Retention = time.Duration(jc.Retention.Duration)
	}
	if jc.ScanTimeout.Duration > 0 {
		cfg.ScanTimeout = time.Duration(jc.ScanTimeout.Duration)
	}
	if jc.LocationTimeout.Duration > 0 {
		cfg.LocationTimeout = time.Duration(jc.LocationTimeout.Duration)
	}
}
