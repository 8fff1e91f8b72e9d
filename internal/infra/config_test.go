package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validConfigYAML = `
market:
  coin: PURR
strategy:
  start_px: 0.20
  n_orders: 10
  order_sz: 100
allocation:
  allocated_token: 5000
  allocated_usdc: 1000
`

func TestLoadConfig_ValidAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tuning.IntervalS != defaultIntervalS {
		t.Errorf("expected default interval_s, got %v", cfg.Tuning.IntervalS)
	}
	if cfg.Tuning.ReconcileEvery != defaultReconcileEvery {
		t.Errorf("expected default reconcile_every, got %v", cfg.Tuning.ReconcileEvery)
	}
}

func TestLoadConfig_MissingRequiredFieldsFails(t *testing.T) {
	path := writeTempConfig(t, "market:\n  coin: PURR\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing strategy/allocation fields")
	}
}

func TestLoadConfig_ExplicitTuningOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML+"tuning:\n  interval_s: 1.5\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tuning.IntervalS != 1.5 {
		t.Errorf("expected explicit interval_s to survive, got %v", cfg.Tuning.IntervalS)
	}
}

func TestOverrideWithEnv_WalletAddress(t *testing.T) {
	os.Setenv("HYPERLIQUIDITY_WALLET", "0xdeadbeef")
	defer os.Unsetenv("HYPERLIQUIDITY_WALLET")

	path := writeTempConfig(t, validConfigYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Wallet.Address != "0xdeadbeef" {
		t.Errorf("expected env override, got %q", cfg.Wallet.Address)
	}
}

func TestValidate_AllChecks(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}
