package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	Engine          string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModel     string
	MaxPredictions  int
	ClassifyTimeout time.Duration

	Cache CacheConfig

	// APIURL is the base URL front-ends (web form, bot, CLI) post to.
	APIURL  string
	WebPort string
	BotPort string

	TelegramBotToken string
	WebhookURL       string
}

type CacheConfig struct {
	Backend       string // none | postgres | redis
	MaxAge        time.Duration
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("read_timeout_sec", 15)
	v.SetDefault("write_timeout_sec", 90)
	v.SetDefault("shutdown_timeout_sec", 30)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("engine", "gpt")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "https://api.openai.com")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("max_predictions", 3)
	v.SetDefault("classify_timeout_sec", 60)

	v.SetDefault("cache_backend", "none")
	v.SetDefault("cache_max_age_hours", 168)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("web_port", "3000")
	v.SetDefault("bot_port", "8081")

	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("webhook_url", "")
}

// Load reads configuration from the environment, optionally layered over a
// YAML file named by CONFIG_FILE (or ./config.yaml when present).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if f := strings.TrimSpace(os.Getenv("CONFIG_FILE")); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Port:            strings.TrimSpace(v.GetString("port")),
		Host:            strings.TrimSpace(v.GetString("host")),
		ReadTimeout:     time.Duration(v.GetInt("read_timeout_sec")) * time.Second,
		WriteTimeout:    time.Duration(v.GetInt("write_timeout_sec")) * time.Second,
		ShutdownTimeout: time.Duration(v.GetInt("shutdown_timeout_sec")) * time.Second,

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),

		Engine:          strings.ToLower(strings.TrimSpace(v.GetString("engine"))),
		OpenAIAPIKey:    strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIModel:     v.GetString("openai_model"),
		OpenAIBaseURL:   v.GetString("openai_base_url"),
		GeminiAPIKey:    strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:     v.GetString("gemini_model"),
		MaxPredictions:  v.GetInt("max_predictions"),
		ClassifyTimeout: time.Duration(v.GetInt("classify_timeout_sec")) * time.Second,

		Cache: CacheConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("cache_backend"))),
			MaxAge:        time.Duration(v.GetInt("cache_max_age_hours")) * time.Hour,
			DatabaseURL:   resolveDSN(v),
			RedisAddr:     v.GetString("redis_addr"),
			RedisPassword: v.GetString("redis_password"),
			RedisDB:       v.GetInt("redis_db"),
		},

		APIURL:  strings.TrimRight(strings.TrimSpace(v.GetString("api_url")), "/"),
		WebPort: strings.TrimSpace(v.GetString("web_port")),
		BotPort: strings.TrimSpace(v.GetString("bot_port")),

		TelegramBotToken: strings.TrimSpace(v.GetString("telegram_bot_token")),
		WebhookURL:       strings.TrimSpace(v.GetString("webhook_url")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	switch c.Engine {
	case "gpt", "openai", "gemini":
	default:
		return fmt.Errorf("invalid engine: %s (must be gpt or gemini)", c.Engine)
	}
	if c.MaxPredictions < 1 {
		return fmt.Errorf("MAX_PREDICTIONS must be >= 1, got %d", c.MaxPredictions)
	}
	if c.ClassifyTimeout <= 0 {
		return fmt.Errorf("CLASSIFY_TIMEOUT_SEC must be > 0")
	}

	switch c.Cache.Backend {
	case "none", "redis":
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("CACHE_BACKEND=postgres needs DATABASE_URL or POSTGRES_* vars")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be none, postgres, or redis)", c.Cache.Backend)
	}

	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid API_URL %q: %w", c.APIURL, err)
	}
	return nil
}

// Addr is the listen address for HTTP servers.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// WebAddr is the listen address of the form server.
func (c *Config) WebAddr() string {
	return net.JoinHostPort(c.Host, c.WebPort)
}

// BotAddr is the listen address of the bot's webhook and health server.
func (c *Config) BotAddr() string {
	return net.JoinHostPort(c.Host, c.BotPort)
}

// EngineKeySet reports whether the selected engine has credentials.
func (c *Config) EngineKeySet() bool {
	if c.Engine == "gemini" {
		return c.GeminiAPIKey != ""
	}
	return c.OpenAIAPIKey != ""
}

// resolveDSN prefers DATABASE_URL and otherwise builds one from POSTGRES_* / PG* vars.
// It returns "" when nothing database-related is set.
func resolveDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("database_url")); dsn != "" {
		return dsn
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := os.Getenv("PGHOST")
	if pass == "" && host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenvDefault("POSTGRES_USER", "hscode"), pass),
		Host:     net.JoinHostPort(getenvDefault("PGHOST", "db"), getenvDefault("PGPORT", "5432")),
		Path:     "/" + getenvDefault("POSTGRES_DB", "hscode"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// SafeDSNSummary renders a DSN without its password, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
