// Package config はdevdash-apiの設定を環境変数から読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultJWTSecret は開発用の署名鍵。本番では必ずJWT_SECRETを設定する。
	DefaultJWTSecret = "devdash-dev-secret-change-me"
	// DefaultDatabaseURL はローカル開発用の接続先。
	DefaultDatabaseURL = "postgres://localhost:5432/personal_dashboard?sslmode=disable"

	minBcryptCost = 4
	maxBcryptCost = 31
)

// Config はAPIサーバーの設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort  string
	FrontendURL string
	LogLevel    string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret          string
	JWTSecretIsDefault bool
	TokenTTL           time.Duration
	BcryptCost         int

	// Rate Limit
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Request
	RequestBodyLimit int64
}

// Load は環境変数からConfigを読み込む。
// 全項目に既定値があり、値の範囲が不正な場合のみエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnvString("PORT", "3000"),
		FrontendURL:      getEnvString("FRONTEND_URL", "*"),
		LogLevel:         getEnvString("LOG_LEVEL", "info"),
		DatabaseURL:      getEnvString("DATABASE_URL", DefaultDatabaseURL),
		JWTSecret:        getEnvString("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:         getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:     getEnvInt("RATE_LIMIT_MAX", 100),
		RequestBodyLimit: getEnvInt64("REQUEST_BODY_LIMIT", 10*1024*1024),
	}
	cfg.JWTSecretIsDefault = cfg.JWTSecret == DefaultJWTSecret

	var invalid []string
	if cfg.BcryptCost < minBcryptCost || cfg.BcryptCost > maxBcryptCost {
		invalid = append(invalid, "BCRYPT_COST")
	}
	if cfg.TokenTTL <= 0 {
		invalid = append(invalid, "TOKEN_TTL")
	}
	if cfg.RateLimitWindow <= 0 {
		invalid = append(invalid, "RATE_LIMIT_WINDOW")
	}
	if cfg.RateLimitMax <= 0 {
		invalid = append(invalid, "RATE_LIMIT_MAX")
	}
	if cfg.RequestBodyLimit <= 0 {
		invalid = append(invalid, "REQUEST_BODY_LIMIT")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables have invalid values: %v", invalid)
	}

	return cfg, nil
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
