package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backtest.InitialCash != 1_000_000 {
		t.Errorf("InitialCash = %v, want 1000000", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.CommissionRate != 0.0003 || cfg.Backtest.MinCommission != 5 {
		t.Errorf("cost model = %v/%v, want 0.0003/5", cfg.Backtest.CommissionRate, cfg.Backtest.MinCommission)
	}
	if cfg.Backtest.LotSize != 100 || cfg.Backtest.PeriodsPerYear != 252 {
		t.Errorf("lot/ppy = %v/%v, want 100/252", cfg.Backtest.LotSize, cfg.Backtest.PeriodsPerYear)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /tmp/bars
backtest:
  initial_cash: 500000
  slippage_rate: 0.002
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/tmp/bars" {
		t.Errorf("DataDir = %q, want /tmp/bars", cfg.Storage.DataDir)
	}
	if cfg.Backtest.InitialCash != 500_000 {
		t.Errorf("InitialCash = %v, want 500000", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.SlippageRate != 0.002 {
		t.Errorf("SlippageRate = %v, want 0.002", cfg.Backtest.SlippageRate)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Backtest.CommissionRate != 0.0003 {
		t.Errorf("CommissionRate = %v, want default 0.0003", cfg.Backtest.CommissionRate)
	}
	if cfg.Storage.SQLitePath != "./qka.db" {
		t.Errorf("SQLitePath = %q, want default", cfg.Storage.SQLitePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded, want error")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "backtest: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed YAML succeeded, want error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QKA_DATA_DIR", "/env/bars")
	t.Setenv("QKA_INITIAL_CASH", "250000")
	t.Setenv("APCA_API_KEY_ID", "key-id")
	t.Setenv("APCA_API_SECRET_KEY", "secret")
	t.Setenv("LOG_LEVEL", "warn")

	path := writeConfig(t, `
storage:
  data_dir: /file/bars
backtest:
  initial_cash: 500000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Environment wins over the file.
	if cfg.Storage.DataDir != "/env/bars" {
		t.Errorf("DataDir = %q, want /env/bars", cfg.Storage.DataDir)
	}
	if cfg.Backtest.InitialCash != 250_000 {
		t.Errorf("InitialCash = %v, want 250000", cfg.Backtest.InitialCash)
	}
	if cfg.Alpaca.APIKey != "key-id" || cfg.Alpaca.APISecret != "secret" {
		t.Errorf("alpaca creds = %+v", cfg.Alpaca)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestEnvOverrideIgnoresBadNumber(t *testing.T) {
	t.Setenv("QKA_INITIAL_CASH", "not-a-number")
	cfg := Default()
	applyEnvOverrides(cfg)
	if cfg.Backtest.InitialCash != 1_000_000 {
		t.Errorf("InitialCash = %v, want default kept", cfg.Backtest.InitialCash)
	}
}
