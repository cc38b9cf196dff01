package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingSecret is returned by Load when a required credential is unset.
var ErrMissingSecret = errors.New("missing required secret")

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	// ProviderNone disables the analyzer; every response carries the
	// degraded placeholder.
	ProviderNone = "none"
)

type Config struct {
	Port string

	AmadeusAPIKey    string
	AmadeusAPISecret string
	AmadeusBaseURL   string
	Currency         string
	HTTPTimeout      time.Duration

	AIProvider      string
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnalyzerTimeout time.Duration

	DeepLinkBaseURL string

	CacheEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	LogLevel  string
	LogFormat string

	RateLimitRPS   float64
	RateLimitBurst int
	// Airport lookups and token exchanges get their own, smaller buckets.
	LocationsRPS   float64
	LocationsBurst int
	TokenRPS       float64
	TokenBurst     int
}

var defaults = map[string]any{
	"port":              "8080",
	"amadeus_base_url":  "https://test.api.amadeus.com",
	"currency_code":     "BRL",
	"http_timeout":      20 * time.Second,
	"ai_provider":       ProviderGemini,
	"gemini_model":      "gemini-1.5-flash",
	"gemini_base_url":   "https://generativelanguage.googleapis.com",
	"openai_model":      "gpt-4o-mini",
	"openai_base_url":   "https://api.openai.com",
	"analyzer_timeout":  45 * time.Second,
	"deeplink_base_url": "www.google.com",
	"cache_enabled":     false,
	"redis_host":        "localhost",
	"redis_port":        "6379",
	"log_level":         "info",
	"log_format":        "json",
	"rate_limit_rps":    10.0,
	"rate_limit_burst":  10,
	"locations_rps":     5.0,
	"locations_burst":   5,
	"token_rps":         1.0,
	"token_burst":       2,
}

// Load reads an optional .env file, then the environment. Flags in fs, when
// given, override both; a flag named "log-level" binds to LOG_LEVEL.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("config: bind flags: %w", bindErr)
		}
	}

	cfg := &Config{
		Port: v.GetString("port"),

		AmadeusAPIKey:    v.GetString("amadeus_api_key"),
		AmadeusAPISecret: v.GetString("amadeus_api_secret"),
		AmadeusBaseURL:   v.GetString("amadeus_base_url"),
		Currency:         strings.ToUpper(v.GetString("currency_code")),
		HTTPTimeout:      v.GetDuration("http_timeout"),

		AIProvider:      strings.ToLower(v.GetString("ai_provider")),
		GeminiAPIKey:    v.GetString("gemini_api_key"),
		GeminiModel:     v.GetString("gemini_model"),
		GeminiBaseURL:   v.GetString("gemini_base_url"),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		OpenAIModel:     v.GetString("openai_model"),
		OpenAIBaseURL:   v.GetString("openai_base_url"),
		AnalyzerTimeout: v.GetDuration("analyzer_timeout"),

		DeepLinkBaseURL: v.GetString("deeplink_base_url"),

		CacheEnabled:  v.GetBool("cache_enabled"),
		RedisHost:     v.GetString("redis_host"),
		RedisPort:     v.GetString("redis_port"),
		RedisPassword: v.GetString("redis_password"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		RateLimitRPS:   v.GetFloat64("rate_limit_rps"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),
		LocationsRPS:   v.GetFloat64("locations_rps"),
		LocationsBurst: v.GetInt("locations_burst"),
		TokenRPS:       v.GetFloat64("token_rps"),
		TokenBurst:     v.GetInt("token_burst"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AmadeusAPIKey == "" {
		return fmt.Errorf("%w: AMADEUS_API_KEY", ErrMissingSecret)
	}
	if c.AmadeusAPISecret == "" {
		return fmt.Errorf("%w: AMADEUS_API_SECRET", ErrMissingSecret)
	}

	switch c.AIProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingSecret)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingSecret)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("config: unknown AI_PROVIDER %q", c.AIProvider)
	}

	if c.HTTPTimeout <= 0 || c.AnalyzerTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("config: CURRENCY_CODE must be a three-letter code, got %q", c.Currency)
	}
	return nil
}
