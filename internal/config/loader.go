package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKETD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKETD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "TICKETD_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "TICKETD_CHAIN_CONTRACT_ADDRESS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "TICKETD_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "TICKETD_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "TICKETD_WALLET_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TICKETD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "TICKETD_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TICKETD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TICKETD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TICKETD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TICKETD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TICKETD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TICKETD_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "TICKETD_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "TICKETD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TICKETD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TICKETD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TICKETD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TICKETD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TICKETD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TICKETD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TICKETD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TICKETD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TICKETD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TICKETD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TICKETD_S3_REGION")
	setStr(&cfg.S3.Bucket, "TICKETD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TICKETD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TICKETD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TICKETD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TICKETD_S3_FORCE_PATH_STYLE")

	// ── Catalog ──
	setStr(&cfg.Catalog.BaseURL, "TICKETD_CATALOG_BASE_URL")

	// ── Reconcile ──
	setDuration(&cfg.Reconcile.Interval, "TICKETD_RECONCILE_INTERVAL")
	setDuration(&cfg.Reconcile.TransferTTL, "TICKETD_RECONCILE_TRANSFER_TTL")
	setDuration(&cfg.Reconcile.SoldKeyRetention, "TICKETD_RECONCILE_SOLD_KEY_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TICKETD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TICKETD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TICKETD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TICKETD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TICKETD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TICKETD_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TICKETD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TICKETD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TICKETD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TICKETD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TICKETD_MODE")
	setStr(&cfg.LogLevel, "TICKETD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
