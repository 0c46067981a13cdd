// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/notescope/internal/model"
)

// DefaultAPIBaseURL は接続先のノートAPIの既定ベースURL。
const DefaultAPIBaseURL = "https://api.openstreetmap.org"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL   string
	FetchTimeout time.Duration

	// Outbound rate limit（リモートAPIへのリクエスト）
	OutboundRate  float64
	OutboundBurst int

	// Inbound rate limit（クライアントからのリクエスト）
	RateLimitSearch  int
	RateLimitComment int

	// Activity feed
	FeedInterval time.Duration
	FeedBBox     *model.BoundingBox

	// Database（設定ストア）。空の場合は設定機能を無効化する
	DatabaseURL string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 全フィールドに既定値があるため必須環境変数はない。
// API_BASE_URLが不正な形式の場合のみエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(getEnvString("API_BASE_URL", DefaultAPIBaseURL), "/")
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("API_BASE_URL must start with http:// or https://: %s", cfg.APIBaseURL)
	}

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.OutboundRate = getEnvFloat("OUTBOUND_RATE", 2.0)
	cfg.OutboundBurst = getEnvInt("OUTBOUND_BURST", 4)
	cfg.RateLimitSearch = getEnvInt("RATE_LIMIT_SEARCH", 120)
	cfg.RateLimitComment = getEnvInt("RATE_LIMIT_COMMENT", 10)
	cfg.FeedInterval = getEnvDuration("FEED_INTERVAL", 5*time.Minute)

	bbox, err := parseBBoxEnv("FEED_BBOX")
	if err != nil {
		return nil, err
	}
	cfg.FeedBBox = bbox

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseBBoxEnv はwest,south,east,north形式の環境変数をパースする。
// 未設定の場合はnilを返す。
func parseBBoxEnv(key string) (*model.BoundingBox, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%s must be west,south,east,north: %s", key, raw)
	}

	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%s contains a non-numeric value: %s", key, raw)
		}
		values[i] = v
	}

	box := &model.BoundingBox{West: values[0], South: values[1], East: values[2], North: values[3]}
	if !box.Valid() {
		return nil, fmt.Errorf("%s is not a valid bounding box: %s", key, raw)
	}
	return box, nil
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
