// Package config はアプリケーション全体の設定を提供する。
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Credential Store
	CredentialDBPath string

	// Rate Limit（クライアント側の送信ペーシング）
	RateLimitPerMinute int
	RateLimitBurst     int

	// Paging
	DefaultPageSize int
	DefaultSortBy   string
	DefaultSortDir  string

	// Mock API
	MockPort string
}

// Load は環境変数からConfigを読み込む。
// APIベースURLが未設定の場合は開発用のデフォルトURLを推定する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = getEnvString("THREADSPACE_API_BASE_URL", inferDevBaseURL())
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid THREADSPACE_API_BASE_URL: %w", err)
	}

	dbPath, err := defaultCredentialDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential store path: %w", err)
	}
	cfg.CredentialDBPath = getEnvString("THREADSPACE_CREDENTIAL_DB", dbPath)

	cfg.RequestTimeout = getEnvDuration("THREADSPACE_REQUEST_TIMEOUT", 15*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("THREADSPACE_RATE_LIMIT", 120)
	cfg.RateLimitBurst = getEnvInt("THREADSPACE_RATE_LIMIT_BURST", 20)
	cfg.DefaultPageSize = getEnvInt("THREADSPACE_PAGE_SIZE", 10)
	cfg.DefaultSortBy = getEnvString("THREADSPACE_SORT_BY", "createdAt")
	cfg.DefaultSortDir = getEnvString("THREADSPACE_SORT_DIR", "desc")
	cfg.MockPort = getEnvString("THREADSPACE_MOCK_PORT", "8080")

	return cfg, nil
}

// inferDevBaseURL は開発環境向けのAPIベースURLを推定する。
// THREADSPACE_DEV_HOSTが設定されていればそのホストの8080番ポート、
// なければローカルホストの8080番ポートを使用する。
func inferDevBaseURL() string {
	if host := os.Getenv("THREADSPACE_DEV_HOST"); host != "" {
		return fmt.Sprintf("http://%s:8080", host)
	}
	return "http://localhost:8080"
}

// defaultCredentialDBPath は認証情報ストアのデフォルト保存先を返す。
// ユーザー設定ディレクトリ配下のthreadspace/credentials.dbを使用する。
func defaultCredentialDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "threadspace", "credentials.db"), nil
}

// validateBaseURL はAPIベースURLがhttpまたはhttpsのURLであることを検証する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required: %q", raw)
	}
	return nil
}

// IsSecure はAPIベースURLがHTTPSかどうかを返す。
func (c *Config) IsSecure() bool {
	return strings.HasPrefix(c.APIBaseURL, "https://")
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
