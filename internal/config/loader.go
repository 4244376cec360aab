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
// built-in defaults, applies AHORRO_* environment variable overrides, and
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

// applyEnvOverrides reads well-known AHORRO_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AHORRO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AHORRO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AHORRO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AHORRO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AHORRO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AHORRO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AHORRO_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AHORRO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AHORRO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AHORRO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AHORRO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AHORRO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AHORRO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AHORRO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AHORRO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AHORRO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AHORRO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AHORRO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AHORRO_S3_REGION")
	setStr(&cfg.S3.Bucket, "AHORRO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AHORRO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AHORRO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AHORRO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AHORRO_S3_FORCE_PATH_STYLE")

	// ── Custody ──
	setStr(&cfg.Custody.BaseURL, "AHORRO_CUSTODY_BASE_URL")
	setStr(&cfg.Custody.APIKey, "AHORRO_CUSTODY_API_KEY")
	setDuration(&cfg.Custody.Timeout, "AHORRO_CUSTODY_TIMEOUT")

	// ── Groups ──
	setDuration(&cfg.Groups.GraceWindow, "AHORRO_GROUPS_GRACE_WINDOW")
	setStr(&cfg.Groups.DebtPolicy, "AHORRO_GROUPS_DEBT_POLICY")
	setDuration(&cfg.Groups.LockTTL, "AHORRO_GROUPS_LOCK_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AHORRO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AHORRO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AHORRO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AHORRO_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AHORRO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AHORRO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AHORRO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AHORRO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AHORRO_MODE")
	setStr(&cfg.LogLevel, "AHORRO_LOG_LEVEL")
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
