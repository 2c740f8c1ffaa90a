package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	Engine string

	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	YCOAuthToken  string
	YCFolderID    string

	ExtractTimeout time.Duration
	MaxUploadBytes int64
	MaxImagePixels int
	SessionTTL     time.Duration
	Lang           string

	TelegramBotToken string
	WebhookURL       string

	CookieSecure bool
	LogDev       bool
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		Engine: strings.ToLower(getEnv("OCR_ENGINE", "gemini")),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		YCOAuthToken:  getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:    getEnv("YC_FOLDER_ID", ""),

		Lang: strings.ToLower(getEnv("UI_LANG", "ar")),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}

	var errs []error
	var err error
	if cfg.ExtractTimeout, err = durationEnv("EXTRACT_TIMEOUT", 120*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxUploadBytes, err = intEnv[int64]("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxImagePixels, err = intEnv[int]("MAX_IMAGE_PIXELS", 18_000_000); err != nil {
		errs = append(errs, err)
	}
	if cfg.CookieSecure, err = boolEnv("COOKIE_SECURE", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogDev, err = boolEnv("LOG_DEV", false); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Engine {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			errs = append(errs, errors.New("missing required env GEMINI_API_KEY"))
		}
	case "openai", "gpt":
		cfg.Engine = "openai"
		if cfg.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("missing required env OPENAI_API_KEY"))
		}
	case "yandex":
		if cfg.YCOAuthToken == "" || cfg.YCFolderID == "" {
			errs = append(errs, errors.New("missing required env YC_OAUTH_TOKEN / YC_FOLDER_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("OCR_ENGINE %q: use gemini, openai or yandex", cfg.Engine))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationEnv accepts Go durations ("90s") or plain seconds ("90"). "0" disables.
func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%s must not be negative", k)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", k)
	}
	return d, nil
}

func intEnv[T int | int64](k string, def T) (T, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", k)
	}
	return T(n), nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

// Warnings lists settings that load fine but degrade the output.
func (c *Config) Warnings() []string {
	var w []string
	if c.Engine == "yandex" {
		w = append(w, "OCR_ENGINE=yandex ignores the extraction instruction: results are plain recognized text without Markdown layout")
	}
	return w
}
