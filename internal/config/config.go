// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/narratorapp/narrator-server/internal/audiocache"
	"github.com/narratorapp/narrator-server/internal/estimate"
	"github.com/narratorapp/narrator-server/internal/service"
	"github.com/narratorapp/narrator-server/internal/store"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Server      ServerConfig
	Data        DataConfig
	Engine      EngineConfig
	TTS         TTSConfig
	Manuscripts ManuscriptsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 60s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DataConfig holds storage configuration.
type DataConfig struct {
	// BasePath is the directory for the plan database (default: ~/Narrator/data)
	BasePath string
}

// EngineConfig holds plan engine tuning.
type EngineConfig struct {
	// MaxRequestBytes is the estimated-size ceiling per segment.
	MaxRequestBytes int
	// SaveDelay is the debounce window for plan persistence.
	SaveDelay time.Duration
}

// TTSConfig holds synthesis provider configuration.
type TTSConfig struct {
	BaseURL         string
	APIKey          string
	AuditionTimeout time.Duration
	// CacheMaxAge is how long rendered auditions stay reusable.
	CacheMaxAge time.Duration
	// CacheMaxBytes bounds the total audio held in memory.
	CacheMaxBytes int
}

// ManuscriptsConfig holds chapter source watching configuration.
type ManuscriptsConfig struct {
	// Path is the watched directory; empty disables the watcher.
	Path string
	// SettleDelay is how long a file must hold still before its change
	// counts.
	SettleDelay time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for plan storage")
	serverName := flag.String("server-name", "", "Name for the server")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	maxRequestBytes := flag.String("max-request-bytes", "", "Per-segment estimated size ceiling in bytes")
	saveDelay := flag.String("save-delay", "", "Debounce window for plan persistence (default: 2s)")

	ttsURL := flag.String("tts-url", "", "Base URL of the synthesis provider")
	ttsAPIKey := flag.String("tts-api-key", "", "API key for the synthesis provider")
	auditionTimeout := flag.String("audition-timeout", "", "Per-audition synthesis deadline (default: 30s)")
	cacheMaxAge := flag.String("audio-cache-max-age", "", "Audition cache entry lifetime (default: 30m)")
	cacheMaxBytes := flag.String("audio-cache-max-bytes", "", "Audition cache size budget in bytes")

	manuscriptsPath := flag.String("manuscripts-path", "", "Directory of chapter source files to watch")
	settleDelay := flag.String("settle-delay", "", "File settle delay for the manuscript watcher (default: 500ms)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Narrator Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Engine: EngineConfig{
			MaxRequestBytes: getIntConfigValue(*maxRequestBytes, "MAX_REQUEST_BYTES", estimate.DefaultMaxRequestBytes),
		},
		TTS: TTSConfig{
			BaseURL:       getConfigValue(*ttsURL, "TTS_URL", "http://localhost:5002"),
			APIKey:        getConfigValue(*ttsAPIKey, "TTS_API_KEY", ""),
			CacheMaxBytes: getIntConfigValue(*cacheMaxBytes, "AUDIO_CACHE_MAX_BYTES", audiocache.DefaultMaxBytes),
		},
		Manuscripts: ManuscriptsConfig{
			Path: getConfigValue(*manuscriptsPath, "MANUSCRIPTS_PATH", ""),
		},
	}

	// Parse durations.
	var err error
	cfg.Engine.SaveDelay, err = getDurationConfigValue(*saveDelay, "SAVE_DELAY", store.DefaultSaveDelay)
	if err != nil {
		return nil, err
	}
	cfg.TTS.AuditionTimeout, err = getDurationConfigValue(*auditionTimeout, "AUDITION_TIMEOUT", service.DefaultAuditionTimeout)
	if err != nil {
		return nil, err
	}
	cfg.TTS.CacheMaxAge, err = getDurationConfigValue(*cacheMaxAge, "AUDIO_CACHE_MAX_AGE", audiocache.DefaultMaxAge)
	if err != nil {
		return nil, err
	}
	cfg.Manuscripts.SettleDelay, err = getDurationConfigValue(*settleDelay, "SETTLE_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// Expand and validate storage paths.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if err := cfg.expandManuscriptsPath(); err != nil {
		return nil, fmt.Errorf("invalid manuscripts path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Engine.MaxRequestBytes <= 0 {
		return fmt.Errorf("max request bytes must be positive, got %d", c.Engine.MaxRequestBytes)
	}

	if c.TTS.BaseURL == "" {
		return errors.New("TTS base URL is required")
	}

	// Manuscripts path may be empty; the watcher is simply not started.

	return nil
}

// DBPath returns the plan database directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Data.BasePath, "plans")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Narrator", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandManuscriptsPath expands ~ and makes the path absolute.
// If empty, leaves it empty so the watcher stays disabled.
func (c *Config) expandManuscriptsPath() error {
	if c.Manuscripts.Path == "" {
		return nil
	}

	expanded, err := expandPath(c.Manuscripts.Path, "")
	if err != nil {
		return err
	}
	c.Manuscripts.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
