package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	StravaBaseURL      string
	StravaTokenURL     string
	StravaClientID     string
	StravaClientSecret string
	FetchTimeout       time.Duration
	ActivityCacheTTL   time.Duration
	DetailConcurrency  int
	ThrottleSpacing    time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration

	AIEndpoint string
	AIAPIKey   string
	AIModel    string

	PolarAPIURL        string
	PolarAPIKey        string
	PolarProductID     string
	PolarSuccessURL    string
	PolarWebhookSecret string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		StravaBaseURL:      readString("STRAVA_BASE_URL", "https://www.strava.com/api/v3"),
		StravaTokenURL:     readString("STRAVA_TOKEN_URL", "https://www.strava.com/oauth/token"),
		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		FetchTimeout:       readDurationSeconds("STRAVA_FETCH_TIMEOUT_SECONDS", 12),
		ActivityCacheTTL:   readDurationSeconds("ACTIVITY_CACHE_TTL_SECONDS", 900),
		DetailConcurrency:  readInt("DETAIL_FETCH_CONCURRENCY", 4),
		ThrottleSpacing:    readDurationMillis("THROTTLE_SPACING_MS", 120),
		RetryMaxAttempts:   readInt("STRAVA_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:     readDurationMillis("STRAVA_RETRY_BASE_DELAY_MS", 1000),

		AIEndpoint: os.Getenv("AI_ENDPOINT"),
		AIAPIKey:   os.Getenv("AI_API_KEY"),
		AIModel:    readString("AI_MODEL", "gpt-4o-mini"),

		PolarAPIURL:        readString("POLAR_API_URL", "https://api.polar.sh"),
		PolarAPIKey:        os.Getenv("POLAR_API_KEY"),
		PolarProductID:     os.Getenv("POLAR_PRODUCT_ID"),
		PolarSuccessURL:    os.Getenv("POLAR_SUCCESS_URL"),
		PolarWebhookSecret: os.Getenv("POLAR_WEBHOOK_SECRET"),
	}
}

func readString(key, fallback string) string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return raw
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

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}
