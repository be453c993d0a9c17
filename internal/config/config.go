package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Channel ids per environment. Production is selected by APP_ENV=production.
const (
	ProdReviewChannel = "C07DP360WDP" // phish-classification
	ProdFeedChannel   = "C07CX5WELQ6" // fish-feed
	DevReviewChannel  = "C069N64PW4A"
	DevFeedChannel    = "C07DACVT0HG"
)

type Config struct {
	Env  string
	Port string

	// Database (optional; enables the system_logs sink)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional; dispatch stats)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Slack
	SlackBotToken      string
	SlackSigningSecret string
	SlackAPIURL        string
	SlackTimeout       time.Duration
	ReviewChannel      string
	FeedChannel        string
	LogChannel         string
	LogMirrorLevel     slog.Level
	ReviewerEmojis     map[string]string

	// Dispatch
	DispatchInterval time.Duration

	// Intake
	IntakeKey    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Verdict API
	VerdictAPIURL      string
	VerdictAPIKey      string
	VerdictSuccessBody string
	VerdictTimeout     time.Duration

	// Scan API
	ScanAPIURL    string
	ScanAPIKey    string
	ScanPerMinute int

	// Admin
	JWTSecret    string
	AdminUserIDs []string

	SentryDSN   string
	CORSOrigins string
}

func Load() *Config {
	env := getEnv("APP_ENV", "development")
	reviewDefault, feedDefault := DevReviewChannel, DevFeedChannel
	if env == "production" {
		reviewDefault, feedDefault = ProdReviewChannel, ProdFeedChannel
	}
	return &Config{
		Env:  env,
		Port: getEnv("PORT", "3000"),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "phish_review"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),

		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackAPIURL:        getEnv("SLACK_API_URL", ""),
		SlackTimeout:       parseDuration(getEnv("SLACK_TIMEOUT", "10s"), 10*time.Second),
		ReviewChannel:      getEnv("SLACK_REVIEW_CHANNEL", reviewDefault),
		FeedChannel:        getEnv("SLACK_FEED_CHANNEL", feedDefault),
		LogChannel:         getEnv("SLACK_LOG_CHANNEL", ""),
		LogMirrorLevel:     parseLevel(getEnv("LOG_MIRROR_LEVEL", "info")),
		ReviewerEmojis:     parsePairs(getEnv("REVIEWER_EMOJIS", "")),

		DispatchInterval: parseDuration(getEnv("DISPATCH_INTERVAL", "1s"), time.Second),

		IntakeKey:    getEnv("INTAKE_KEY", getEnv("SECRET_KEY", "")),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "reported-domains"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "phish-review"),

		VerdictAPIURL:      getEnv("VERDICT_API_URL", ""),
		VerdictAPIKey:      getEnv("VERDICT_API_KEY", ""),
		VerdictSuccessBody: getEnv("VERDICT_SUCCESS_BODY", "Domain classified"),
		VerdictTimeout:     parseDuration(getEnv("VERDICT_TIMEOUT", "10s"), 10*time.Second),

		ScanAPIURL:    getEnv("SCAN_API_URL", "https://urlscan.io/api/v1/scan/"),
		ScanAPIKey:    getEnv("SCAN_API_KEY", ""),
		ScanPerMinute: parseInt(getEnv("SCAN_PER_MINUTE", "6"), 6),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		AdminUserIDs: splitList(getEnv("ADMIN_USER_IDS", "")),

		SentryDSN:   getEnv("SENTRY_DSN", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// DatabaseEnabled reports whether a Postgres host was configured.
func (c *Config) DatabaseEnabled() bool { return c.DBHost != "" }

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePairs reads "U123:crown,U456:star".
func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(s) {
		k, v, ok := strings.Cut(part, ":")
		k, v = strings.TrimSpace(k), strings.Trim(strings.TrimSpace(v), ":")
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
