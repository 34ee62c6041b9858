// Package config loads the task engine's configuration from a config file
// layered with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds all configuration for the task engine.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Queues   QueueConfig    `mapstructure:"queues"`
	Pools    PoolConfig     `mapstructure:"pools"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Version  string         `mapstructure:"version"`
}

// ServiceConfig identifies the running instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME" default:"taskengine"`
	Environment string `mapstructure:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// QueueConfig bounds the InputQueue/OutputQueue and submission retries.
type QueueConfig struct {
	InputSize           int `mapstructure:"input_queue_size" envconfig:"INPUT_QUEUE_SIZE" default:"1000"`
	OutputSize          int `mapstructure:"output_queue_size" envconfig:"OUTPUT_QUEUE_SIZE" default:"10000"`
	MaxQueueFullRetries int `mapstructure:"max_queue_full_retries" envconfig:"MAX_QUEUE_FULL_RETRIES" default:"3"`
}

// PoolConfig sizes the CPU-bound and IO-bound worker process groups.
type PoolConfig struct {
	CPUBoundCount     int `mapstructure:"cpu_bound_count" envconfig:"CPU_BOUND_COUNT" default:"1"`
	IOBoundCount      int `mapstructure:"io_bound_count" envconfig:"IO_BOUND_COUNT"`
	CPUBoundTaskLimit int `mapstructure:"cpu_bound_task_limit" envconfig:"CPU_BOUND_TASK_LIMIT" default:"1"`
	IOBoundTaskLimit  int `mapstructure:"io_bound_task_limit" envconfig:"IO_BOUND_TASK_LIMIT" default:"20"`
}

// DispatchConfig controls the parent-side dispatcher threads and polling.
type DispatchConfig struct {
	QueueThreadCount    int           `mapstructure:"queue_thread_count" envconfig:"QUEUE_THREAD_COUNT" default:"4"`
	QueuePollTimeout    time.Duration `mapstructure:"queue_poll_timeout" envconfig:"QUEUE_POLL_TIMEOUT" default:"1s"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	WorkerStatusTimeout time.Duration `mapstructure:"worker_status_timeout" envconfig:"WORKER_STATUS_TIMEOUT" default:"100ms"`
}

// CacheConfig sizes the sharded result cache.
type CacheConfig struct {
	ShardCount  int `mapstructure:"shard_count" envconfig:"CACHE_SHARD_COUNT" default:"16"`
	MaxPerShard int `mapstructure:"max_per_shard" envconfig:"CACHE_MAX_PER_SHARD" default:"100"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// Load loads configuration from a config file (if present) and environment
// variables, with environment variables taking precedence.
func Load(serviceName string) (*Config, error) {
	var cfg Config

	cfg.Service.Name = serviceName

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; continue with defaults and env vars.
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.Pools.IOBoundCount <= 0 {
		cfg.Pools.IOBoundCount = defaultIOBoundCount()
	}

	if version := os.Getenv("VERSION"); version != "" {
		cfg.Version = version
	} else if cfg.Version == "" {
		cfg.Version = "dev"
	}

	return &cfg, nil
}

// defaultIOBoundCount mirrors the spec's max(1, CPU_CORES-1) default.
func defaultIOBoundCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}
