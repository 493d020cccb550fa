package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	// Defaults ship without chain credentials; everything else must pass.
	cfg.Chain.ContractAddress = "0xabc"
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "reconcile"

[chain]
rpc_url = "http://node:8545"
contract_address = "0xabc"

[wallet]
private_key = "0xdeadbeef"

[reconcile]
interval = "30s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "reconcile" {
		t.Errorf("Mode = %q, want reconcile", cfg.Mode)
	}
	if cfg.Chain.RPCURL != "http://node:8545" {
		t.Errorf("RPCURL = %q", cfg.Chain.RPCURL)
	}
	if cfg.Reconcile.Interval.Duration != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Reconcile.Interval.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want 5432", cfg.Postgres.Port)
	}
	if cfg.Reconcile.TransferTTL.Duration != 10*time.Minute {
		t.Errorf("TransferTTL = %v, want 10m", cfg.Reconcile.TransferTTL.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[redis]
addr = "file-redis:6379"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TICKETD_REDIS_ADDR", "env-redis:6379")
	t.Setenv("TICKETD_SERVER_RATE_LIMIT", "25")
	t.Setenv("TICKETD_SERVER_RATE_WINDOW", "2s")
	t.Setenv("TICKETD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "env-redis:6379" {
		t.Errorf("Redis.Addr = %q, want env-redis:6379", cfg.Redis.Addr)
	}
	if cfg.Server.RateLimit != 25 {
		t.Errorf("RateLimit = %d, want 25", cfg.Server.RateLimit)
	}
	if cfg.Server.RateWindow.Duration != 2*time.Second {
		t.Errorf("RateWindow = %v, want 2s", cfg.Server.RateWindow.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	cfg.Chain.RPCURL = ""
	cfg.Chain.ContractAddress = ""
	cfg.Redis.Addr = ""
	cfg.Reconcile.Interval.Duration = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate: want error")
	}
	for _, frag := range []string{
		"chain: rpc_url",
		"chain: contract_address",
		"wallet: either private_key or encrypted_key_path",
		"redis: addr",
		"reconcile: interval",
		"server: port",
	} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("error missing %q:\n%v", frag, err)
		}
	}
}

func TestValidateKeystoreNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "reconcile"
	cfg.Chain.ContractAddress = "0xabc"
	cfg.Wallet.EncryptedKeyPath = "/keys/wallet.json"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "key_password") {
		t.Errorf("Validate = %v, want key_password error", err)
	}

	cfg.Wallet.KeyPassword = "pw"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	out := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"Wallet.PrivateKey":    out.Wallet.PrivateKey,
		"Postgres.Password":    out.Postgres.Password,
		"Redis.Password":       out.Redis.Password,
		"S3.SecretKey":         out.S3.SecretKey,
		"Server.APIKey":        out.Server.APIKey,
		"Notify.TelegramToken": out.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Errorf("%s = %q, want ***", name, got)
		}
	}
	// Original untouched.
	if cfg.Wallet.PrivateKey != "0xdeadbeef" {
		t.Errorf("original mutated: %q", cfg.Wallet.PrivateKey)
	}
	// Empty fields stay empty rather than being replaced.
	if out.Wallet.KeyPassword != "" {
		t.Errorf("KeyPassword = %q, want empty", out.Wallet.KeyPassword)
	}
}
