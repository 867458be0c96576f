package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Remote queue authority.
	AuthorityURL     string
	AuthorityTimeout time.Duration

	// Polling cadence.
	StatusInterval time.Duration
	NotifyInterval time.Duration

	// Banner auto-dismiss.
	BannerTTL        time.Duration
	CompactBannerTTL time.Duration

	// Ticket/preference slot backend: file unless redis or postgres is set.
	StateDir    string
	RedisURL    string
	DatabaseURL string

	// Alert channel providers.
	PushProvider      string
	PushWebhookURL    string
	PushWebhookToken  string
	SoundProvider     string
	SoundWebhookURL   string
	SoundWebhookToken string

	// bcrypt hash of the admin token; empty disables the admin route.
	AdminTokenHash string

	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		stateDir = "data"
	}

	return Config{
		Port:               port,
		AuthorityURL:       os.Getenv("QUEUE_AUTHORITY_URL"),
		AuthorityTimeout:   readDurationSeconds("QUEUE_AUTHORITY_TIMEOUT_SECONDS", 10),
		StatusInterval:     readDurationSeconds("STATUS_POLL_SECONDS", 30),
		NotifyInterval:     readDurationSeconds("NOTIFICATION_CHECK_SECONDS", 15),
		BannerTTL:          readDurationSeconds("BANNER_SECONDS", 10),
		CompactBannerTTL:   readDurationSeconds("COMPACT_BANNER_SECONDS", 5),
		StateDir:           stateDir,
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DB_DSN"),
		PushProvider:       os.Getenv("PUSH_PROVIDER"),
		PushWebhookURL:     os.Getenv("PUSH_WEBHOOK_URL"),
		PushWebhookToken:   os.Getenv("PUSH_WEBHOOK_TOKEN"),
		SoundProvider:      os.Getenv("SOUND_PROVIDER"),
		SoundWebhookURL:    os.Getenv("SOUND_WEBHOOK_URL"),
		SoundWebhookToken:  os.Getenv("SOUND_WEBHOOK_TOKEN"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
