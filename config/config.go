package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"script_ai_server/internal/ai"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Mapstructure tags are used to map environment variables and config file keys.
type Config struct {
	// Server Configuration
	ServerAddress string `mapstructure:"SERVER_ADDRESS"` // e.g., ":5000"
	AppEnv        string `mapstructure:"APP_ENV"`        // "production" switches gin to release mode

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`  // debug, info, warn, error
	LogFormat string `mapstructure:"LOG_FORMAT"` // json or console

	// AI Configuration
	AIBaseURL            string  `mapstructure:"AI_BASE_URL"` // OpenAI-compatible endpoint, e.g. LM Studio
	AIAPIKey             string  `mapstructure:"AI_API_KEY"`
	AIModel              string  `mapstructure:"AI_MODEL"`
	AIMaxAttempts        int     `mapstructure:"AI_MAX_ATTEMPTS"`
	AIRetryDelaySeconds  float64 `mapstructure:"AI_RETRY_DELAY_SECONDS"`
	AIMaxTokens          int     `mapstructure:"AI_MAX_TOKENS"`
	AIRequestTimeoutSecs float64 `mapstructure:"AI_REQUEST_TIMEOUT_SECONDS"`

	// Files
	GeneratedScriptsDir string `mapstructure:"GENERATED_SCRIPTS_DIR"` // per-project output directories live here
	FrontendDir         string `mapstructure:"FRONTEND_DIR"`          // templates/index.html and static/

	// CORS
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"` // comma separated, "*" for any
}

var defaults = map[string]any{
	"SERVER_ADDRESS":             ":5000",
	"APP_ENV":                    "development",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"AI_BASE_URL":                "http://127.0.0.1:1234/v1",
	"AI_API_KEY":                 "lm-studio",
	"AI_MODEL":                   "deepseek-r1-distill-qwen-7b",
	"AI_MAX_ATTEMPTS":            3,
	"AI_RETRY_DELAY_SECONDS":     2,
	"AI_MAX_TOKENS":              500,
	"AI_REQUEST_TIMEOUT_SECONDS": 120,
	"GENERATED_SCRIPTS_DIR":      "generated_scripts",
	"FRONTEND_DIR":               "frontend",
	"CORS_ALLOWED_ORIGINS":       "*",
}

// LoadConfig reads configuration from file and environment variables.
// The file (config.yaml in path) is optional; environment variables win over it.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)     // Path to look for the config file in
	v.SetConfigName("config") // Name of config file (without extension)
	v.SetConfigType("yaml")

	v.AutomaticEnv() // Read environment variables that match keys

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the values the service cannot start without.
func (c Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("SERVER_ADDRESS is required")
	}
	if c.GeneratedScriptsDir == "" {
		return errors.New("GENERATED_SCRIPTS_DIR is required")
	}
	if c.AIRetryDelaySeconds < 0 {
		return fmt.Errorf("AI_RETRY_DELAY_SECONDS must be >= 0, got %v", c.AIRetryDelaySeconds)
	}
	if c.AIRequestTimeoutSecs < 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT_SECONDS must be >= 0, got %v", c.AIRequestTimeoutSecs)
	}
	return c.AI().Validate()
}

// AI projects the pipeline settings.
func (c Config) AI() ai.Config {
	return ai.Config{
		BaseURL:        c.AIBaseURL,
		APIKey:         c.AIAPIKey,
		Model:          c.AIModel,
		MaxAttempts:    c.AIMaxAttempts,
		RetryDelay:     seconds(c.AIRetryDelaySeconds),
		MaxTokens:      c.AIMaxTokens,
		RequestTimeout: seconds(c.AIRequestTimeoutSecs),
	}
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
