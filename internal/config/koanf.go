// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envKeyMap maps legacy-style environment variable names to koanf dotted
// paths. Unmapped env vars are ignored, matching the teacher's
// envTransformFunc whitelist discipline: configuration surface is explicit,
// not whatever happens to be set in the process environment.
var envKeyMap = map[string]string{
	"STORE_PATH":                "store.path",
	"STORE_MAX_MEMORY_MB":       "store.max_memory_mb",
	"STORE_THREADS":             "store.threads",
	"VECTOR_STORE_URL":          "vector_store.url",
	"VECTOR_STORE_API_KEY":      "vector_store.api_key",
	"VECTOR_STORE_EMBEDDING_DIM": "vector_store.embedding_dim",
	"KV_CACHE_ADDR":             "kv_cache.addr",
	"KV_CACHE_PASSWORD":         "kv_cache.password",
	"KV_CACHE_DB":               "kv_cache.db",
	"BROKER_URL":                "broker.url",
	"BROKER_TOPIC_PREFIX":       "broker.topic_prefix",
	"SCHEDULE_CATALOG_REFRESH":  "schedule.catalog_refresh",
	"SCHEDULE_AVAILABILITY_SYNC": "schedule.availability_sync",
	"SCHEDULE_EXPIRING_CONTENT": "schedule.expiring_content",
	"SCHEDULE_METADATA_ENRICHMENT": "schedule.metadata_enrichment",
	"BANDWIDTH_RATE_PER_SECOND": "bandwidth.rate_per_second",
	"BANDWIDTH_BURST":           "bandwidth.burst",
	"RANKING_VECTOR_WEIGHT":     "ranking_defaults.vector",
	"RANKING_KEYWORD_WEIGHT":    "ranking_defaults.keyword",
	"RANKING_QUALITY_WEIGHT":    "ranking_defaults.quality",
	"RANKING_FRESHNESS_WEIGHT":  "ranking_defaults.freshness",
	"LORA_RANK":                 "lora.rank",
	"REQUEST_TIMEOUT":           "request.timeout",
	"OFFLINE_QUEUE_PATH":        "offline_queue.path",
	"LOG_LEVEL":                 "logging.level",
	"LOG_FORMAT":                "logging.format",
	"EMBEDDING_BASE_URL":        "embedding.base_url",
	"EMBEDDING_API_KEY":         "embedding.api_key",
	"EMBEDDING_MODEL":           "embedding.model",
	"METRICS_ADDR":              "metrics.addr",
	"WORKERS":                   "workers",
}

func envTransformFunc(key string) string {
	if path, ok := envKeyMap[key]; ok {
		return path
	}
	return ""
}

// LoadWithKoanf loads configuration layering defaults, an optional YAML
// file (if path is non-empty and exists), and environment variables, in
// that priority order (env wins).
func LoadWithKoanf(yamlPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "json"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if yamlPath != "" {
		if _, err := os.Stat(yamlPath); err == nil {
			if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load yaml config %s: %w", yamlPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// WatchConfigFile invokes callback whenever the YAML file at path changes
// on disk, for hot-reload of non-structural settings (ranking defaults,
// bandwidth rates, schedule intervals).
func WatchConfigFile(path string, callback func()) error {
	k := koanf.New(".")
	f := file.Provider(path)
	if err := k.Load(f, yaml.Parser()); err != nil {
		return fmt.Errorf("initial load %s: %w", path, err)
	}
	return f.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

// normalizeEnvKey upper-cases and replaces "." with "_" for documentation
// purposes when generating a .env.example-style listing of known keys.
func normalizeEnvKey(koanfPath string) string {
	return strings.ToUpper(strings.ReplaceAll(koanfPath, ".", "_"))
}
