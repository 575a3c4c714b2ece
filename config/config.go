package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Kathmandu must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const (
	DefaultQuoteAPIURL = "https://nepsetty.kokomo.workers.dev/api"
	DefaultSymbols     = "SSHL,HIDCL,NABIL"
	DefaultTimezone    = "Asia/Kathmandu"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development production test"`

	QuoteAPIURL string   `validate:"required,url"`
	Symbols     []string `validate:"min=1,dive,required"`

	// Schedule is a standard 5-field cron expression evaluated in Location.
	Schedule   string         `validate:"required"`
	Timezone   string         `validate:"required"`
	Location   *time.Location `validate:"-"`
	RunOnStart bool

	FetchTimeout     time.Duration `validate:"gt=0"`
	CycleTimeout     time.Duration `validate:"gtefield=FetchTimeout"`
	FetchConcurrency int           `validate:"min=1,max=32"`

	RefreshMaxPerWindow int           `validate:"min=1"`
	RefreshWindow       time.Duration `validate:"gt=0"`

	// RedisAddr enables snapshot fan-out to Redis when set.
	RedisAddr    string `validate:"omitempty,hostname_port"`
	RedisChannel string `validate:"required"`
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig loads environment variables, from .env first when present
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		glog.Info("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the process environment
func FromEnv() (*Config, error) {
	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	secondsEnv := func(key string, def int) time.Duration {
		return time.Duration(intEnv(key, def)) * time.Second
	}

	config := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		QuoteAPIURL:         getEnv("QUOTE_API_URL", DefaultQuoteAPIURL),
		Symbols:             parseSymbols(getEnv("SYMBOLS", DefaultSymbols)),
		Timezone:            getEnv("TIMEZONE", DefaultTimezone),
		FetchTimeout:        secondsEnv("FETCH_TIMEOUT_SEC", 10),
		CycleTimeout:        secondsEnv("CYCLE_TIMEOUT_SEC", 120),
		FetchConcurrency:    intEnv("FETCH_CONCURRENCY", 3),
		RefreshMaxPerWindow: intEnv("REFRESH_MAX_PER_WINDOW", 3),
		RefreshWindow:       secondsEnv("REFRESH_WINDOW_SEC", 60),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisChannel:        getEnv("REDIS_CHANNEL", "nepse:snapshots"),
	}

	runOnStart, err := strconv.ParseBool(getEnv("RUN_ON_START", "false"))
	if err != nil {
		errs = append(errs, errors.Errorf("RUN_ON_START: %q is not a boolean", os.Getenv("RUN_ON_START")))
	}
	config.RunOnStart = runOnStart

	config.Schedule = getEnv("SCHEDULE_CRON", "")
	if config.Schedule == "" {
		hour := intEnv("SCHEDULE_HOUR", 15)
		minute := intEnv("SCHEDULE_MINUTE", 1)
		config.Schedule = fmt.Sprintf("%d %d * * %s", minute, hour, getEnv("SCHEDULE_DAYS", "0-4"))
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, the cron expression and the timezone,
// and resolves Location.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", c.Schedule)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errors.Wrapf(err, "invalid timezone %q", c.Timezone)
	}
	c.Location = loc
	return nil
}

// parseSymbols splits a comma separated list. Symbols are opaque and keep
// their case.
func parseSymbols(csv string) []string {
	var symbols []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}
