package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort        string        `envconfig:"GRPC_PORT" default:"50051"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DBDriver       string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath         string `envconfig:"DB_PATH" default:"./bookstore.db"`
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"DB_NAME" default:"bookstore"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/repository/migrations"`

	// Optional backends; empty disables them.
	RedisAddr     string   `envconfig:"REDIS_ADDR"`
	MongoURI      string   `envconfig:"MONGO_URI"`
	MongoDatabase string   `envconfig:"MONGO_DATABASE" default:"bookstore"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`

	CacheCheckInterval time.Duration `envconfig:"CACHE_CHECK_INTERVAL" default:"1h"`
	CacheCheckFix      bool          `envconfig:"CACHE_CHECK_FIX" default:"false"`
}

// Load reads the environment, after applying a .env file when one exists in
// the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case repository.DriverSQLite, repository.DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.CacheCheckInterval <= 0 {
		return fmt.Errorf("CACHE_CHECK_INTERVAL must be positive, got %s", c.CacheCheckInterval)
	}
	return nil
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		MigrationsDirPath: c.MigrationsPath,
	}
}
