package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	LogLevel      string
	LogFormat     string

	FeedURL  string
	CacheDir string

	CacheSize            int
	BehindMargin         int
	Hysteresis           int
	BatchTrigger         int
	BatchSize            int
	FullConcurrency      int64
	HighRangeBytes       int64
	BackgroundRangeBytes int64
	FetchRateBytes       int64 // 0 = unlimited

	ReadyTimeout     time.Duration
	PollInterval     time.Duration
	TapWindow        time.Duration
	PlaceholderDelay time.Duration

	MPVBinary     string
	MPVSocketDir  string
	AllowedOrigin string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "reelengine"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),

		FeedURL:  getEnv("FEED_URL", "http://localhost:9090/feed"),
		CacheDir: getEnv("CACHE_DIR", "data/cache"),

		CacheSize:            int(getEnvInt64("CACHE_SIZE", 10)),
		BehindMargin:         int(getEnvInt64("BEHIND_MARGIN", 2)),
		Hysteresis:           int(getEnvInt64("EVICTION_HYSTERESIS", 2)),
		BatchTrigger:         int(getEnvInt64("BATCH_TRIGGER", 5)),
		BatchSize:            int(getEnvInt64("BATCH_SIZE", 5)),
		FullConcurrency:      getEnvInt64("FULL_CONCURRENCY", 2),
		HighRangeBytes:       getEnvInt64("HIGH_RANGE_BYTES", 300<<10),
		BackgroundRangeBytes: getEnvInt64("BACKGROUND_RANGE_BYTES", 200<<10),
		FetchRateBytes:       getEnvInt64("FETCH_RATE_BYTES", 0),

		ReadyTimeout:     getEnvDuration("READY_TIMEOUT", 3*time.Second),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 100*time.Millisecond),
		TapWindow:        getEnvDuration("TAP_WINDOW", 260*time.Millisecond),
		PlaceholderDelay: getEnvDuration("PLACEHOLDER_DELAY", 350*time.Millisecond),

		MPVBinary:     getEnv("MPV_BINARY", "mpv"),
		MPVSocketDir:  getEnv("MPV_SOCKET_DIR", os.TempDir()),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
