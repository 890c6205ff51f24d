// Package config loads process configuration from the environment and an
// optional config file via viper, mirroring the teacher's
// cmd/simulator/config viper+pflag wiring.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment input the core reads (spec.md §6).
type Config struct {
	// DatabasePath is the pebble data directory for Local Store.
	DatabasePath string

	// LogLevel is the default logger level; LogLevelOverrides maps a
	// logger category name (e.g. "sync", "queue") to its own level.
	LogLevel          string
	LogLevelOverrides map[string]string

	// SessionSecret is the external-surface session signing key; the core
	// itself never reads cookies but forwards this to surface adapters.
	SessionSecret string

	// OAuthClientID/Secret/RedirectURI are defaults used when a user has
	// not supplied their own during the OAuth exchange.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURI  string

	// BankBaseURL/AuthURL/TokenURL point at the bank's open API and its
	// OAuth 2 endpoints; operator-supplied since the core is bank-agnostic.
	BankBaseURL  string
	BankAuthURL  string
	BankTokenURL string

	SyncInterval       time.Duration
	AutomationInterval time.Duration
	QueueCapacity      int
	QueueWorkers       int
}

const (
	keyDatabasePath       = "database_path"
	keyLogLevel           = "log_level"
	keySessionSecret      = "session_secret"
	keyOAuthClientID      = "oauth_client_id"
	keyOAuthClientSecret  = "oauth_client_secret"
	keyOAuthRedirectURI   = "oauth_redirect_uri"
	keyBankBaseURL        = "bank_base_url"
	keyBankAuthURL        = "bank_auth_url"
	keyBankTokenURL       = "bank_token_url"
	keySyncInterval       = "sync_interval"
	keyAutomationInterval = "automation_interval"
	keyQueueCapacity      = "queue_capacity"
	keyQueueWorkers       = "queue_workers"
)

// Load reads configuration from, in increasing precedence: built-in
// defaults, an optional file at configPath, and POTAUTO_-prefixed
// environment variables.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("potauto")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault(keyDatabasePath, "./data/potauto.db")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySyncInterval, 10*time.Minute)
	v.SetDefault(keyAutomationInterval, 5*time.Minute)
	v.SetDefault(keyQueueCapacity, 100)
	v.SetDefault(keyQueueWorkers, 3)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	overrides := map[string]string{}
	for _, cat := range []string{"sync", "queue", "trigger", "executor", "scheduler", "bank"} {
		key := "log_level_" + cat
		if s := v.GetString(key); s != "" {
			overrides[cat] = s
		}
	}

	return Config{
		DatabasePath:       v.GetString(keyDatabasePath),
		LogLevel:           v.GetString(keyLogLevel),
		LogLevelOverrides:  overrides,
		SessionSecret:      v.GetString(keySessionSecret),
		OAuthClientID:      v.GetString(keyOAuthClientID),
		OAuthClientSecret:  v.GetString(keyOAuthClientSecret),
		OAuthRedirectURI:   v.GetString(keyOAuthRedirectURI),
		BankBaseURL:        v.GetString(keyBankBaseURL),
		BankAuthURL:        v.GetString(keyBankAuthURL),
		BankTokenURL:       v.GetString(keyBankTokenURL),
		SyncInterval:       v.GetDuration(keySyncInterval),
		AutomationInterval: v.GetDuration(keyAutomationInterval),
		QueueCapacity:      v.GetInt(keyQueueCapacity),
		QueueWorkers:       v.GetInt(keyQueueWorkers),
	}, nil
}
