package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, `{"listen":"0.0.0.0:29901","remoteaddr":"127.0.0.1:29901","key":"secret","mtu":1350,"acknodelay":true,"periodms":250}`)

	cfg := DefaultConfig()
	if err := LoadJSONConfig(&cfg, path); err != nil {
		t.Fatalf("LoadJSONConfig returned error: %v", err)
	}

	if cfg.Listen != "0.0.0.0:29901" || cfg.RemoteAddr != "127.0.0.1:29901" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.Key != "secret" {
		t.Fatalf("expected key to be populated")
	}
	if cfg.MTU != 1350 || !cfg.AckNodelay || cfg.PeriodMS != 250 {
		t.Fatalf("unexpected numeric or boolean fields: %+v", cfg)
	}
}

func TestLoadJSONConfigMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := LoadJSONConfig(&cfg, missing); err == nil {
		t.Fatalf("LoadJSONConfig expected error for missing file")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
