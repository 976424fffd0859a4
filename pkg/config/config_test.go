package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateWindowOrdering(t *testing.T) {
	c := Default()
	c.Signals.ShortWindow = 200
	c.Signals.LongWindow = 50
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for short >= long")
	}

	c = Default()
	c.Signals.ShortWindow = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}

func TestValidateBackend(t *testing.T) {
	c := Default()
	c.Store.Backend = "postgres"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestQueueRequiresRedis(t *testing.T) {
	c := Default()
	c.Queue.Enabled = true
	c.Cache.Backend = "memory"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for queue without redis")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("signals:\n  short_window: 10\n  long_window: 40\nreport:\n  gain_threshold: 5.5\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Signals.ShortWindow != 10 || c.Signals.LongWindow != 40 {
		t.Fatalf("file override not applied: %+v", c.Signals)
	}
	if c.Report.GainThreshold != 5.5 {
		t.Fatalf("unexpected threshold %v", c.Report.GainThreshold)
	}
	// untouched keys keep defaults
	if c.Report.VolumeWindow != 30 {
		t.Fatalf("default lost: %d", c.Report.VolumeWindow)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MYSQL_HOST", "db.internal")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("STORE_BACKEND", "clickhouse")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Store.MySQL.Host != "db.internal" || c.Store.MySQL.Port != 3307 {
		t.Fatalf("mysql env override not applied: %+v", c.Store.MySQL)
	}
	if c.Store.Backend != "clickhouse" {
		t.Fatalf("backend override not applied: %s", c.Store.Backend)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("log level override not applied: %s", c.Logging.Level)
	}
}
