package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string `env:"PORT" env-default:"8080"`
	DBAdapter     string `env:"DB_ADAPTER" env-default:"sqlite"`
	SQLiteFile    string `env:"SQLITE_FILE" env-default:"./data/hoaxify.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR" env-default:"./migrations"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
	Env           string `env:"ENV,NODE_ENV" env-default:"development"`
	// PostgreSQL connection settings
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresHost     string `env:"POSTGRES_HOST,DB_HOST" env-default:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT,DB_PORT" env-default:"5432"`
	PostgresUser     string `env:"POSTGRES_USER,DB_USER" env-default:"hoaxify"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,DB_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB,DB_NAME" env-default:"hoaxify"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE,DB_SSLMODE" env-default:"disable"`

	TokenExpiry        time.Duration `env:"TOKEN_EXPIRY" env-default:"168h"`
	TokenSweepSchedule string        `env:"TOKEN_SWEEP_SCHEDULE" env-default:"@hourly"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_LIMIT_PER_MINUTE" env-default:"60"`

	SMTP SMTP
}

// SMTP settings. An empty host disables delivery; activation links are
// logged instead.
type SMTP struct {
	Host          string `env:"SMTP_HOST"`
	Port          string `env:"SMTP_PORT" env-default:"587"`
	User          string `env:"SMTP_USER"`
	Password      string `env:"SMTP_PASSWORD"`
	From          string `env:"SMTP_FROM"`
	ActivationURL string `env:"ACTIVATION_URL" env-default:"http://localhost:8080/#/login"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// New reads .env (when present) and the process environment.
func New() (*Config, error) {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()

	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
		if c.IsProduction() {
			return errors.New("DB_ADAPTER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be positive, got %s", c.TokenExpiry)
	}
	if c.LoginRatePerMinute < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.LoginRatePerMinute)
	}
	return nil
}
