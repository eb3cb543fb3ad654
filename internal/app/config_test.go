package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.CacheSize != 10 || cfg.BehindMargin != 2 || cfg.Hysteresis != 2 {
		t.Errorf("window geometry = %d/%d/%d", cfg.CacheSize, cfg.BehindMargin, cfg.Hysteresis)
	}
	if cfg.BatchTrigger != 5 || cfg.BatchSize != 5 {
		t.Errorf("batch = %d/%d", cfg.BatchTrigger, cfg.BatchSize)
	}
	if cfg.FullConcurrency != 2 {
		t.Errorf("FullConcurrency = %d", cfg.FullConcurrency)
	}
	if cfg.HighRangeBytes != 300<<10 || cfg.BackgroundRangeBytes != 200<<10 {
		t.Errorf("range bytes = %d/%d", cfg.HighRangeBytes, cfg.BackgroundRangeBytes)
	}
	if cfg.ReadyTimeout != 3*time.Second {
		t.Errorf("ReadyTimeout = %v", cfg.ReadyTimeout)
	}
	if cfg.TapWindow != 260*time.Millisecond || cfg.PlaceholderDelay != 350*time.Millisecond {
		t.Errorf("gesture timings = %v/%v", cfg.TapWindow, cfg.PlaceholderDelay)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("CACHE_SIZE", "16")
	t.Setenv("READY_TIMEOUT", "5s")
	t.Setenv("TAP_WINDOW", "garbage")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.CacheSize != 16 {
		t.Errorf("CacheSize = %d", cfg.CacheSize)
	}
	if cfg.ReadyTimeout != 5*time.Second {
		t.Errorf("ReadyTimeout = %v", cfg.ReadyTimeout)
	}
	if cfg.TapWindow != 260*time.Millisecond {
		t.Errorf("invalid duration must fall back, got %v", cfg.TapWindow)
	}
}

func TestNegativeIntFallsBack(t *testing.T) {
	t.Setenv("CACHE_SIZE", "-4")
	if got := LoadConfig().CacheSize; got != 10 {
		t.Errorf("CacheSize = %d, want default 10", got)
	}
}
