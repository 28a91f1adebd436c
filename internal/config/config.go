// Package config загружает конфигурацию сервисов Integrator.
//
// Источники по возрастанию приоритета: значения по умолчанию,
// env.yaml, переменные окружения INTEGRATOR_<SECTION>_<KEY>
// (например, INTEGRATOR_DATABASE_URL).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile — файл конфигурации по умолчанию.
const DefaultFile = "env.yaml"

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "INTEGRATOR"

// Драйверы хранилища runs и расписаний.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// ErrInvalid — некорректная конфигурация.
var ErrInvalid = errors.New("invalid config")

// Config — конфигурация сервисов.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Log            LogConfig            `mapstructure:"log"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	RabbitMQ       RabbitMQConfig       `mapstructure:"rabbitmq"`
	BusinessConfig BusinessConfigSource `mapstructure:"business_config"`
	Artifact       ArtifactConfig       `mapstructure:"artifact"`
	SCM            SCMConfig            `mapstructure:"scm"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
}

// ServerConfig — HTTP сервер.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr возвращает адрес для net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig — параметры логирования.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig — хранилище runs и расписаний.
type DatabaseConfig struct {
	// Driver — postgres | redis | memory.
	Driver string `mapstructure:"driver"`

	// URL — DSN PostgreSQL (для driver=postgres).
	URL string `mapstructure:"url"`
}

// RedisConfig — Redis (для driver=redis).
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// RabbitMQConfig — брокер событий runs.
type RabbitMQConfig struct {
	// Enabled — api потребляет runs.trigger и публикует runs.finished.
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// BusinessConfigSource — откуда читать JSON-файлы бизнес-конфигурации.
// Задаётся либо Dir, либо S3.Bucket.
type BusinessConfigSource struct {
	Dir string        `mapstructure:"dir"`
	TTL time.Duration `mapstructure:"ttl"`
	S3  S3Config      `mapstructure:"s3"`
}

// S3Config — бакет с файлами конфигурации.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// ArtifactConfig — реестр артефактов (последние версии пакетов).
type ArtifactConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SCMConfig — клиент GitLab.
type SCMConfig struct {
	// RateLimit — запросов в секунду на все проекты.
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig — cron-планировщик.
type SchedulerConfig struct {
	// Addr — адрес /healthz и /metrics процесса integrator-scheduler.
	Addr         string        `mapstructure:"addr"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	Timezone     string        `mapstructure:"timezone"`
}

// Load читает конфигурацию из path (или env.yaml, если path пуст)
// и переменных окружения. Отсутствие env.yaml при пустом path не ошибка.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность секций.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres"))
		}
	case DriverRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if c.BusinessConfig.Dir == "" && c.BusinessConfig.S3.Bucket == "" {
		errs = append(errs, errors.New("business_config.dir or business_config.s3.bucket is required"))
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("rabbitmq.url is required when rabbitmq is enabled"))
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Location возвращает часовой пояс расписаний (default: UTC).
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
