package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Rozmova environment variables.
const EnvPrefix = "ROZMOVA_"

// Product describes a purchasable subscription offer.
type Product struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	Addr                  string    `yaml:"addr"`
	DBPath                string    `yaml:"db_path"`
	AudioDir              string    `yaml:"audio_dir"`
	PartnerModel          string    `yaml:"partner_model"`
	ReviewModel           string    `yaml:"review_model"`
	TranscribeModel       string    `yaml:"transcribe_model"`
	MaxTurns              int       `yaml:"max_turns"`
	Products              []Product `yaml:"products"`
	GDriveFolderID        string    `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string    `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Addr:            "127.0.0.1:8787",
		DBPath:          "data/rozmova.db",
		AudioDir:        "data/audio",
		PartnerModel:    "openai/gpt-4o-mini",
		ReviewModel:     "openai/gpt-4o-mini",
		TranscribeModel: "nova-2",
		MaxTurns:        20,
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// KeyForProvider returns the API key matching an llm provider name.
func (c *Config) KeyForProvider(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "PARTNER_MODEL"); v != "" {
		cfg.PartnerModel = v
	}
	if v := os.Getenv(EnvPrefix + "REVIEW_MODEL"); v != "" {
		cfg.ReviewModel = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_MODEL"); v != "" {
		cfg.TranscribeModel = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_TURNS"); v != "" {
		if turns, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && turns > 0 {
			cfg.MaxTurns = turns
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	partnerProvider := providerOf(cfg.PartnerModel)
	if cfg.KeyForProvider(partnerProvider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for partner model %q — chats cannot start. Set %s%s_API_KEY.", cfg.PartnerModel, EnvPrefix, strings.ToUpper(partnerProvider)))
	}

	reviewProvider := providerOf(cfg.ReviewModel)
	if reviewProvider != partnerProvider && cfg.KeyForProvider(reviewProvider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for review model %q — finishing chats is disabled. Set %s%s_API_KEY.", cfg.ReviewModel, EnvPrefix, strings.ToUpper(reviewProvider)))
	}

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured — voice messages are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.GDriveFolderID != "" && cfg.GoogleCredentialsFile == "" {
		warnings = append(warnings, "gdrive_folder_id is set without google_credentials_file — audio backup is disabled.")
	}

	return warnings
}

func providerOf(model string) string {
	provider, _, ok := strings.Cut(model, "/")
	if !ok {
		return ""
	}
	return provider
}
