package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the service.
type Config struct {
	Port        string
	DatabaseURL string
	StaticDir   string
	UploadDir   string
	Gemini      GeminiConfig
	Telegram    TelegramConfig
}

// GeminiConfig holds the inference collaborator settings.
type GeminiConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// TelegramConfig holds the optional ward-notification settings.
type TelegramConfig struct {
	BotToken   string
	WardChatID int64
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	pollInterval, err := strconv.Atoi(getEnv("POLL_INTERVAL_SECONDS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL_SECONDS: %w", err)
	}

	pollTimeout, err := strconv.Atoi(getEnv("POLL_TIMEOUT_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_TIMEOUT_SECONDS: %w", err)
	}

	wardChatID, err := strconv.ParseInt(getEnv("WARD_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WARD_CHAT_ID: %w", err)
	}

	return &Config{
		Port:        getEnv("PORT", "8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		StaticDir:   getEnv("STATIC_DIR", "static"),
		UploadDir:   getEnv("UPLOAD_DIR", os.TempDir()),
		Gemini: GeminiConfig{
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL:      getEnv("GEMINI_BASE_URL", ""),
			PollInterval: time.Duration(pollInterval) * time.Second,
			PollTimeout:  time.Duration(pollTimeout) * time.Second,
		},
		Telegram: TelegramConfig{
			BotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			WardChatID: wardChatID,
		},
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
