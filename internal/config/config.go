package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/newswire/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Sources
	Sources []model.Source

	// Fetch
	FetchTimeout  time.Duration
	FetchMaxSize  int64
	FetchInterval time.Duration

	// Listing
	ListDefaultLimit int
	ListMaxLimit     int

	// Broadcast
	BroadcastFlushSize     int
	BroadcastFlushInterval time.Duration

	// Retention
	RetentionDays int

	// Rate Limit
	RateLimitPoll int

	// Admin
	AdminToken string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	rawSources := os.Getenv("SOURCES")
	if rawSources == "" {
		missing = append(missing, "SOURCES")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	sources, err := ParseSources(rawSources)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SOURCES: %w", err)
	}
	cfg.Sources = sources

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchInterval = getEnvDuration("FETCH_INTERVAL", 10*time.Minute)
	cfg.ListDefaultLimit = getEnvInt("LIST_DEFAULT_LIMIT", 100)
	cfg.ListMaxLimit = getEnvInt("LIST_MAX_LIMIT", 500)
	cfg.BroadcastFlushSize = getEnvInt("BROADCAST_FLUSH_SIZE", 32)
	cfg.BroadcastFlushInterval = getEnvDuration("BROADCAST_FLUSH_INTERVAL", time.Second)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 30)
	cfg.RateLimitPoll = getEnvInt("RATE_LIMIT_POLL", 120)
	cfg.AdminToken = getEnvString("ADMIN_TOKEN", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ParseSources は "id=url,id=url" 形式のソース定義をパースする。
// IDの重複、空のID、http/https以外のURLはエラーとする。
func ParseSources(raw string) ([]model.Source, error) {
	var sources []model.Source
	seen := make(map[string]bool)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		id, rawURL, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid source definition %q (want id=url)", pair)
		}
		id = strings.TrimSpace(id)
		rawURL = strings.TrimSpace(rawURL)

		if id == "" {
			return nil, fmt.Errorf("empty source id in %q", pair)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate source id: %s", id)
		}
		seen[id] = true

		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid source URL for %s: %w", id, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("source %s: unsupported scheme %q", id, parsed.Scheme)
		}

		sources = append(sources, model.Source{ID: id, URL: rawURL})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources defined")
	}

	return sources, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
