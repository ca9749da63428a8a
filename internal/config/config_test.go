package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "TILE_LENGTH", "ROUTINE_LENGTH", "AREA_THRESHOLD", "BFS_STEPS", "AGGREGATE_WORKERS", "COMPACT_INTERVAL", "API_KEY", "DB_MAX_CONNS", "MIGRATIONS_DIR", "REDIS_PREFIX"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8009" {
		t.Errorf("Port = %q, want 8009", cfg.Port)
	}
	if cfg.TileLength != 20 || cfg.RoutineLength != 5 || cfg.AreaThreshold != 0.05 || cfg.BFSSteps != 10 || cfg.AggregateWorkers != 4 {
		t.Errorf("unexpected analysis defaults: %+v", cfg)
	}
	if cfg.CompactInterval != 10*time.Minute {
		t.Errorf("CompactInterval = %v, want 10m", cfg.CompactInterval)
	}
	if cfg.DBMaxConns != 25 || cfg.MigrationsDir != "migrations" || cfg.RedisPrefix != "roundscope:" {
		t.Errorf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 256<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 256<<20)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TILE_LENGTH", "12.5")
	t.Setenv("ROUTINE_LENGTH", "8")
	t.Setenv("AREA_THRESHOLD", "0.2")
	t.Setenv("COMPACT_INTERVAL", "30s")
	t.Setenv("API_KEY", "coach:abc")
	t.Setenv("REDIS_PREFIX", "staging:")
	t.Setenv("DB_MAX_CONNS", "4")

	cfg := Load()
	if cfg.TileLength != 12.5 || cfg.RoutineLength != 8 || cfg.AreaThreshold != 0.2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.CompactInterval != 30*time.Second {
		t.Errorf("CompactInterval = %v, want 30s", cfg.CompactInterval)
	}
	if cfg.RedisPrefix != "staging:" || cfg.DBMaxConns != 4 {
		t.Errorf("storage overrides not applied: %+v", cfg)
	}
	if cfg.APIKeys != "coach:abc" {
		t.Errorf("APIKeys = %q, want coach:abc", cfg.APIKeys)
	}
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("BFS_STEPS", "ten")
	t.Setenv("TILE_LENGTH", "wide")
	t.Setenv("COMPACT_INTERVAL", "soon")

	cfg := Load()
	if cfg.BFSSteps != 10 || cfg.TileLength != 20 || cfg.CompactInterval != 10*time.Minute {
		t.Errorf("invalid values should fall back to defaults: %+v", cfg)
	}
}
