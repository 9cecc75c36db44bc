// Package config loads the registration settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "REGISTRATION_"

type Config struct {
	ActivationDays         int    `json:"activation_days"`
	AuthenticateOnActivate bool   `json:"authenticate_on_activate"`
	SendActivationEmail    bool   `json:"send_activation_email"`
	RequireTOS             bool   `json:"require_tos"`
	UseHashid              bool   `json:"use_hashid"`
	SiteIdentifier         string `json:"site_identifier"`
	SiteName               string `json:"site_name"`
	DefaultFromEmail       string `json:"default_from_email"`
	StaticURL              string `json:"static_url"`
	Debug                  bool   `json:"debug"`

	HTTPAddr    string `json:"http_addr"`
	DBDriver    string `json:"db_driver"`
	DatabaseDSN string `json:"-"`

	SMTPHost        string `json:"smtp_host"`
	SMTPPort        string `json:"smtp_port"`
	SMTPUsername    string `json:"smtp_username"`
	SMTPPassword    string `json:"-"`
	SMTPImplicitTLS bool   `json:"smtp_implicit_tls"`

	SessionSecret string        `json:"-"`
	SessionTTL    time.Duration `json:"session_ttl"`

	RedisAddr     string   `json:"redis_addr"`
	RedisPassword string   `json:"-"`
	RedisDB       int      `json:"redis_db"`
	KafkaBrokers  []string `json:"kafka_brokers"`
	KafkaTopic    string   `json:"kafka_topic"`
}

var _ registration.Config = (*Config)(nil)

// Load reads the optional dotenv files and then the environment.
// Missing dotenv files are not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse dotenv file")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment, using defaults for unset keys.
func FromEnv() *Config {
	return &Config{
		ActivationDays:         getInt("ACTIVATION_DAYS", 7),
		AuthenticateOnActivate: getBool("AUTHENTICATE_ON_ACTIVATE", false),
		SendActivationEmail:    getBool("SEND_ACTIVATION_EMAIL", true),
		RequireTOS:             getBool("REQUIRE_TOS", false),
		UseHashid:              getBool("USE_HASHID", false),
		SiteIdentifier:         getEnv("SITE_IDENTIFIER", "localhost:8080"),
		SiteName:               getEnv("SITE_NAME", "Registration"),
		DefaultFromEmail:       getEnv("DEFAULT_FROM_EMAIL", "noreply@example.com"),
		StaticURL:              getEnv("STATIC_URL", "/static/"),
		Debug:                  getBool("DEBUG", false),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseDSN: getEnv("DATABASE_DSN", "file:registration.db?cache=shared"),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPImplicitTLS: getBool("SMTP_IMPLICIT_TLS", false),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		KafkaBrokers:  getList("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "registration.events"),
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	verr := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(c,
			validation.Field(&c.ActivationDays, validation.Required, validation.Min(1)),
			validation.Field(&c.SiteIdentifier, validation.Required),
			validation.Field(&c.DefaultFromEmail, validation.Required, is.EmailFormat),
			validation.Field(&c.DBDriver, validation.Required, validation.In("sqlite", "postgres")),
			validation.Field(&c.DatabaseDSN, validation.Required),
			validation.Field(&c.SessionSecret, validation.By(requiredIf(c.AuthenticateOnActivate))),
		)
	}, "Invalid registration configuration")
	if verr != nil {
		return verr
	}
	return nil
}

func requiredIf(required bool) validation.RuleFunc {
	return func(value any) error {
		if !required {
			return nil
		}
		return validation.Validate(value, validation.Required)
	}
}

func (c *Config) GetActivationDays() int          { return c.ActivationDays }
func (c *Config) GetAuthenticateOnActivate() bool { return c.AuthenticateOnActivate }
func (c *Config) GetSendActivationEmail() bool    { return c.SendActivationEmail }
func (c *Config) GetSiteIdentifier() string       { return c.SiteIdentifier }
func (c *Config) GetSiteName() string             { return c.SiteName }
func (c *Config) GetDefaultFromEmail() string     { return c.DefaultFromEmail }
func (c *Config) GetStaticURL() string            { return c.StaticURL }
func (c *Config) GetUseHashid() bool              { return c.UseHashid }

func getEnv(key, fallback string) string {
	if v := os.Getenv(Prefix + key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
