package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is read from a YAML file and then overridden from the environment.
// Environment keys are SECTION_FIELD, e.g. HTTP_PORT or POSTGRES_SSL_MODE.
type Config struct {
	Env        string     `yaml:"env" envconfig:"APP_ENV"`
	LogLevel   string     `yaml:"log_level" envconfig:"LOG_LEVEL"`
	ShortCode  ShortCode  `yaml:"short_code" envconfig:"SHORT_CODE"`
	Storage    Storage    `yaml:"storage" envconfig:"STORAGE"`
	HTTPServer HTTPServer `yaml:"http_server" envconfig:"HTTP"`
	Postgres   Postgres   `yaml:"postgres" envconfig:"POSTGRES"`
	Redis      Redis      `yaml:"redis" envconfig:"REDIS"`
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type ShortCode struct {
	Length     int    `yaml:"length" split_words:"true"`
	Alphabet   string `yaml:"alphabet" split_words:"true"`
	MaxRetries int    `yaml:"max_retries" split_words:"true"`
}

var defaultShortCode = ShortCode{
	Length:     7,
	MaxRetries: 5,
}

type Storage struct {
	Driver string `yaml:"driver" split_words:"true"`
}

type HTTPServer struct {
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" split_words:"true"`
	CertFile        string        `yaml:"cert_file" split_words:"true"`
	KeyFile         string        `yaml:"key_file" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

var defaultHTTPServer = HTTPServer{
	Port:            8080,
	ReadTimeout:     5 * time.Second,
	WriteTimeout:    10 * time.Second,
	IdleTimeout:     time.Minute,
	MaxHeaderBytes:  1 << 20,
	ShutdownTimeout: 10 * time.Second,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user" split_words:"true"`
	Password        string        `yaml:"password" split_words:"true"`
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	DB              string        `yaml:"db" split_words:"true"`
	SSLMode         string        `yaml:"sslmode" split_words:"true"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`
	MigrationsPath  string        `yaml:"migrations_path" split_words:"true"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	MigrationsPath:  "file://migrations",
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr         string        `yaml:"addr" split_words:"true"`
	Password     string        `yaml:"password" split_words:"true"`
	DB           int           `yaml:"db" split_words:"true"`
	KeyPrefix    string        `yaml:"key_prefix" split_words:"true"`
	PoolSize     int           `yaml:"pool_size" split_words:"true"`
	DialTimeout  time.Duration `yaml:"dial_timeout" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
}

var defaultRedis = Redis{
	Addr:         "localhost:6379",
	KeyPrefix:    "short-link:",
	PoolSize:     10,
	DialTimeout:  5 * time.Second,
	ReadTimeout:  3 * time.Second,
	WriteTimeout: 3 * time.Second,
}

// Load reads the YAML file at path on top of the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to process env: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres, StorageRedis:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.ShortCode.Length < 1 {
		return fmt.Errorf("%w: short code length must be positive", ErrInvalidConfig)
	}

	if c.ShortCode.MaxRetries < 1 {
		return fmt.Errorf("%w: short code max retries must be positive", ErrInvalidConfig)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.ShortCode = defaultShortCode
	cfg.Storage = Storage{Driver: StorageMemory}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
}
