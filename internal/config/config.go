package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-medbox/internal/projector"
	commoncfg "wisefido-medbox/owl-common/config"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config wisefido-medbox settings
type Config struct {
	HTTP struct {
		Addr string
	}
	Mongo     commoncfg.MongoConfig
	Redis     commoncfg.RedisConfig
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	MQTT      MQTTConfig
	History   HistoryConfig
	Advisor   AdvisorConfig
	Session   struct {
		TTL time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
}

// MQTTConfig device ingestion (disabled by default)
type MQTTConfig struct {
	Enabled bool
	commoncfg.MQTTConfig
	Topic  string
	Stream string // Redis stream receiving ingestion events
}

// HistoryConfig projection defaults
type HistoryConfig struct {
	Limit         int
	TZOffsetHours float64 // wall-clock shift applied to timestamps
	Ordering      projector.Ordering
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
}

// AdvisorConfig generateContent endpoint used by the questionnaire
type AdvisorConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RetryCount int
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Mongo = commoncfg.MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "medbox",
		Collection:     "sensor_readings",
		ConnectTimeout: 10 * time.Second,
	}
	cfg.Mongo.LoadFromEnv("MONGO")

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	// consultation log is optional
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "medbox",
		SSLMode:  "disable",
		MaxConns: parseInt(getEnv("DB_MAX_CONNS", "10"), 10),
		MaxIdle:  parseInt(getEnv("DB_MAX_IDLE", "2"), 2),
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-medbox-" + uuid.NewString()[:8],
		QoS:      1,
	}
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "medbox/+/sensor")
	cfg.MQTT.Stream = getEnv("STREAM_READINGS", "medbox:reading:stream")

	cfg.History.Limit = parseInt(getEnv("HISTORY_LIMIT", "50"), projector.DefaultLimit)
	cfg.History.TZOffsetHours = parseFloat(getEnv("HISTORY_TZ_OFFSET_HOURS", "7"), 7)
	cfg.History.CacheTTL = parseDuration(getEnv("HISTORY_CACHE_TTL", "30s"), 30*time.Second)
	cfg.History.FetchTimeout = parseDuration(getEnv("HISTORY_FETCH_TIMEOUT", "5s"), 5*time.Second)
	cfg.History.Ordering = projector.ParseOrdering(getEnv("HISTORY_ORDERING", string(projector.OrderReverse)))

	cfg.Advisor.BaseURL = getEnv("ADVISOR_BASE_URL", "https://generativelanguage.googleapis.com")
	cfg.Advisor.APIKey = getEnv("ADVISOR_API_KEY", "")
	cfg.Advisor.Model = getEnv("ADVISOR_MODEL", "gemini-1.5-flash")
	cfg.Advisor.Timeout = parseDuration(getEnv("ADVISOR_TIMEOUT", "30s"), 30*time.Second)
	cfg.Advisor.RetryCount = parseInt(getEnv("ADVISOR_RETRY_COUNT", "2"), 2)

	cfg.Session.TTL = parseDuration(getEnv("SESSION_TTL", "1h"), time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if !projector.ValidOffsetHours(cfg.History.TZOffsetHours) {
		return nil, fmt.Errorf("HISTORY_TZ_OFFSET_HOURS out of range: %v", cfg.History.TZOffsetHours)
	}
	if cfg.History.Limit <= 0 || cfg.History.Limit > projector.MaxLimit {
		return nil, fmt.Errorf("HISTORY_LIMIT must be between 1 and %d", projector.MaxLimit)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
