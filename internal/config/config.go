package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string
	Addr          string
	PublicURL     *url.URL
	DBDSN         string
	SessionSecret string
	SessionTTL    time.Duration
	LogLevel      string

	GoogleWebClientID string
	AppleServiceID    string

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	RedisAddr       string
	RedisPassword   string
	JourneyCacheTTL time.Duration

	CleanupInterval time.Duration
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:           getenv("APP_ENV"),
		Addr:          getenv("APP_ADDR"),
		DBDSN:         getenv("APP_DB_DSN"),
		LogLevel:      getenv("APP_LOG_LEVEL"),
		SessionSecret: getenv("APP_SESSION_SECRET"),

		GoogleWebClientID: getenv("APP_GOOGLE_WEB_CLIENT_ID"),
		AppleServiceID:    getenv("APP_APPLE_SERVICE_ID"),

		SMTPHost:      getenv("APP_SMTP_HOST"),
		SMTPUsername:  getenv("APP_SMTP_USERNAME"),
		SMTPPassword:  getenv("APP_SMTP_PASSWORD"),
		SMTPFromName:  getenv("APP_SMTP_FROM_NAME"),
		SMTPFromEmail: getenv("APP_SMTP_FROM_EMAIL"),

		RedisAddr:     getenv("APP_REDIS_ADDR"),
		RedisPassword: getenv("APP_REDIS_PASSWORD"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.SMTPFromName == "" {
		cfg.SMTPFromName = "Bord"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = durationEnv(getenv, "APP_SESSION_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.JourneyCacheTTL, err = durationEnv(getenv, "APP_JOURNEY_CACHE_TTL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CleanupInterval, err = durationEnv(getenv, "APP_CLEANUP_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}

	portRaw := getenv("APP_SMTP_PORT")
	if portRaw == "" {
		cfg.SMTPPort = 587
	} else {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, errors.New("APP_SMTP_PORT: must be a valid port")
		}
		cfg.SMTPPort = port
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.SessionSecret) < 32 {
			return Config{}, errors.New("APP_SESSION_SECRET: must be at least 32 bytes in prod")
		}
		if cfg.SMTPHost == "" {
			return Config{}, errors.New("APP_SMTP_HOST: required in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

// PublicURLString is the origin used in outbound links, without a
// trailing slash.
func (c Config) PublicURLString() string {
	if c.PublicURL == nil {
		return "http://" + c.Addr
	}
	return strings.TrimRight(c.PublicURL.String(), "/")
}

// LoadDotEnv reads KEY=VALUE pairs from .env in the working directory,
// if present. Values already set in the environment win.
func LoadDotEnv() error {
	err := loadDotEnvFile(".env", os.Setenv, os.Getenv)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadDotEnvFile(path string, setenv func(k, v string) error, getenv func(string) string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if getenv(key) != "" {
			continue
		}
		if err := setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func durationEnv(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}
