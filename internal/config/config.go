// Package config holds the process configuration: environment-backed
// settings plus the fixed operational constants (sweep cadences, policy
// thresholds, premium grants).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// Relay policy
	MaxStrikes          = 3
	BlockedWordsRefresh = time.Minute

	// Premium
	DefaultPremiumDays = 90
	ReferralRewardDays = 1

	// Lifecycle cadences. First-run delays keep startup quiet while the
	// gateway connects; correctness does not depend on the exact values.
	ExpirySweepDelay    = 10 * time.Second
	ExpirySweepInterval = time.Hour
	QueueScanDelay      = 15 * time.Second
	QueueScanInterval   = 45 * time.Second
	ReconcileDelay      = 5 * time.Minute
	ReconcileInterval   = 30 * time.Minute

	// Closed rooms are kept this long so history exports and report
	// snapshots stay serviceable, then hard-deleted by the reconciler.
	RoomRetention = 30 * 24 * time.Hour

	// Report triage: this many reports against one user inside the window
	// raises a one-time moderator flag.
	FlagThreshold = 5
	FlagWindow    = 24 * time.Hour

	// Outbound pacing for broadcasts, to stay inside gateway rate limits.
	BroadcastPause = 50 * time.Millisecond

	// Redis cache TTL for the blocked-user flag on the relay hot path.
	BlockedCacheTTL = 5 * time.Minute

	// Bounded timeout for a single store operation.
	StoreTimeout = 5 * time.Second

	// Profile photo limits per surface.
	MaxProfilePhotos  = 10
	MirrorPhotosLimit = 5
	RoomInfoPhotos    = 3
)

// Config carries every environment-backed setting. Load never fails on
// missing values; Validate reports what the bot process cannot run without,
// so the admin CLI can share Load with looser requirements.
type Config struct {
	BotToken     string
	AdminID      int64
	AdminGroupID int64

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	HTTPAddr    string
	JWTSecret   string
	OpsPassword string

	LocalesDir string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		AdminID:       envInt64("ADMIN_ID", 0),
		AdminGroupID:  envInt64("ADMIN_GROUP_ID", 0),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		OpsPassword:   os.Getenv("OPS_PASSWORD"),
		LocalesDir:    envString("LOCALES_DIR", "locales"),
	}
}

// Validate checks the settings the bot process cannot start without.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_ID is not set")
	}
	if c.AdminGroupID == 0 {
		return fmt.Errorf("ADMIN_GROUP_ID is not set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
