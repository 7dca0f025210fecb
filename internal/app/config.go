package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr             string
	RequestTimeout       time.Duration
	LogLevel             string
	LogFormat            string
	UserAgent            string
	MusicBrainzEndpoint  string
	MusicBrainzRateRPS   float64
	CoverArtEndpoint     string
	RedisURL             string
	GenreCacheTTL        time.Duration
	GenreCacheDisabled   bool
	DBPath               string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:      time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:           getEnv("SEARCH_USER_AGENT", "RecordsRecord/1.0.0 (records@recordsrecord.app)"),
		MusicBrainzEndpoint: getEnv("MUSICBRAINZ_ENDPOINT", "https://musicbrainz.org/ws/2"),
		MusicBrainzRateRPS:  getEnvFloat("MUSICBRAINZ_RATE_RPS", 1),
		CoverArtEndpoint:    getEnv("COVERART_ENDPOINT", "https://coverartarchive.org"),
		RedisURL:            getEnv("REDIS_URL", ""),
		GenreCacheTTL:       time.Duration(getEnvInt("GENRE_CACHE_TTL_HOURS", 168)) * time.Hour,
		GenreCacheDisabled:  getEnvBool("GENRE_CACHE_DISABLED", false),
		DBPath:              getEnv("DB_PATH", "catalog.db"),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
