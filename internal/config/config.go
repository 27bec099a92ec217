package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingTelegramToken = errors.New("missing TELEGRAM_TOKEN")
	ErrMissingJWTSecret     = errors.New("missing JWT_SECRET")
)

type Config struct {
	AppEnv     string           `yaml:"app_env"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	HTTP       HTTPConfig       `yaml:"http"`
	Wiki       WikiConfig       `yaml:"wiki"`
	Morphology MorphologyConfig `yaml:"morphology"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Token       string `yaml:"token"`
	PollTimeout int    `yaml:"poll_timeout" validate:"gte=0,lte=600"`
	Debug       bool   `yaml:"debug"`
}

type WhatsAppConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DevicePath string `yaml:"device_path" validate:"required_if=Enabled true"`
}

type HTTPConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Addr          string  `yaml:"addr" validate:"required_if=Enabled true"`
	JWTSecret     string  `yaml:"jwt_secret"`
	AdminUsername string  `yaml:"admin_username"`
	AdminPassword string  `yaml:"admin_password"`
	UserRate      float64 `yaml:"user_rate" validate:"gte=0"`
	UserBurst     int     `yaml:"user_burst" validate:"gte=0"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" validate:"gt=0"`
}

type WikiConfig struct {
	APIURL           string        `yaml:"api_url" validate:"required,url"`
	SiteURL          string        `yaml:"site_url" validate:"required,url"`
	WikidataURL      string        `yaml:"wikidata_url" validate:"required,url"`
	CommonsURL       string        `yaml:"commons_url" validate:"required,url"`
	CategoryURL      string        `yaml:"category_url" validate:"required,url"`
	Language         string        `yaml:"language" validate:"required"`
	UserAgent        string        `yaml:"user_agent" validate:"required"`
	RequestTimeout   time.Duration `yaml:"request_timeout" validate:"gt=0"`
	LinkTimeout      time.Duration `yaml:"link_timeout" validate:"gt=0"`
	SummarySentences int           `yaml:"summary_sentences" validate:"gt=0,lte=10"`
	ThumbWidth       int           `yaml:"thumb_width" validate:"gt=0"`
}

type MorphologyConfig struct {
	Driver         string        `yaml:"driver" validate:"oneof=http dictionary"`
	URL            string        `yaml:"url" validate:"required_if=Driver http"`
	DictionaryPath string        `yaml:"dictionary_path" validate:"required_if=Driver dictionary"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	// PerSecond is the sustained message rate per chat. Zero disables limiting.
	PerSecond float64 `yaml:"per_second" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		AppEnv: "production",
		Telegram: TelegramConfig{
			Enabled:     true,
			PollTimeout: 60,
		},
		WhatsApp: WhatsAppConfig{
			DevicePath: "devices/whatsapp.db",
		},
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         "0.0.0.0:8080",
			UserRate:     5,
			UserBurst:    10,
			MaxBodyBytes: 1 << 20,
		},
		Wiki: WikiConfig{
			APIURL:           "https://uk.wikipedia.org/w/api.php",
			SiteURL:          "https://uk.wikipedia.org",
			WikidataURL:      "https://www.wikidata.org/w/api.php",
			CommonsURL:       "https://commons.wikimedia.org/w/api.php",
			CategoryURL:      "https://commons.wikimedia.org/wiki/Category:",
			Language:         "uk",
			UserAgent:        "ukwikibot/1.0 (https://uk.wikipedia.org/wiki/User:Ukwikibot)",
			RequestTimeout:   15 * time.Second,
			LinkTimeout:      10 * time.Second,
			SummarySentences: 7,
			ThumbWidth:       800,
		},
		Morphology: MorphologyConfig{
			Driver:  "http",
			URL:     "http://localhost:8090",
			Timeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 1,
			Burst:     5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads .env, the optional YAML file at path and environment
// overrides, applies overrides in order, then validates the result.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.AppEnv = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v, ok := envBool("TELEGRAM_ENABLED"); ok {
		c.Telegram.Enabled = v
	}
	if v, ok := envBool("WHATSAPP_ENABLED"); ok {
		c.WhatsApp.Enabled = v
	}
	if v := os.Getenv("WHATSAPP_DEVICE_PATH"); v != "" {
		c.WhatsApp.DevicePath = v
	}
	if v, ok := envBool("HTTP_ENABLED"); ok {
		c.HTTP.Enabled = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.HTTP.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		c.HTTP.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.HTTP.AdminPassword = v
	}
	if v := os.Getenv("WIKI_USER_AGENT"); v != "" {
		c.Wiki.UserAgent = v
	}
	if v := os.Getenv("MORPHOLOGY_URL"); v != "" {
		c.Morphology.Driver = "http"
		c.Morphology.URL = v
	}
	if v := os.Getenv("MORPHOLOGY_DICTIONARY"); v != "" {
		c.Morphology.Driver = "dictionary"
		c.Morphology.DictionaryPath = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return false, false
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}

// Validate checks struct constraints and the cross-field rules that
// make startup fatal.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return ErrMissingTelegramToken
	}
	if c.HTTP.Enabled && c.HTTP.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// IsTest reports whether the process runs under the test environment.
func (c *Config) IsTest() bool {
	return c.AppEnv == "test"
}
