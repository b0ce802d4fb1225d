package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderYandex Provider = "yandex"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminUserID      int64  `env:"ADMIN_USER"`

	// Generation settings
	RefinerProvider  Provider `env:"REFINER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string   `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string   `env:"OPENAI_BASE_URL"`
	OpenAIImageModel string   `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-3"`
	OpenAITextModel  string   `env:"OPENAI_TEXT_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string   `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string   `env:"YANDEX_FOLDER_ID"`

	// Storage
	DataDir         string `env:"DATA_DIR" envDefault:"bot_data"`
	LegacyOutputDir string `env:"LEGACY_OUTPUT_DIR"`
	EventLogPath    string `env:"EVENT_LOG_PATH" envDefault:"logs/generations.jsonl"`

	// Cleanup sweep
	CleanupSchedule   string `env:"CLEANUP_SCHEDULE" envDefault:"0 4 * * *"`
	CleanupMaxAgeDays int    `env:"CLEANUP_MAX_AGE_DAYS" envDefault:"30"`

	// Interactive flow
	UploadWaitTimeout time.Duration `env:"UPLOAD_WAIT_TIMEOUT" envDefault:"120s"`

	// Formatting
	MessageParseMode string `env:"MESSAGE_PARSE_MODE" envDefault:"HTML"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
