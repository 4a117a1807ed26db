package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// LLMConfig contains the remote-model integration settings. When the API key
// is empty the remote extraction strategy is disabled and items are enriched
// with the local strategy only.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	ModelName       string        `mapstructure:"model_name"       validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout"          validate:"required,gt=0"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" validate:"required,gt=0"`
}

// TaskConfig contains the background task runner settings.
type TaskConfig struct {
	WorkerCount            int           `mapstructure:"worker_count"              validate:"required,gt=0"`
	QueueSize              int           `mapstructure:"queue_size"                validate:"required,gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"required,gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"required,gt=0"`
}

// NotifyConfig contains the status-notification settings.
type NotifyConfig struct {
	// Channel is the pub/sub channel name that enrichment results are
	// published on and that live connections subscribe to.
	Channel string `mapstructure:"channel" validate:"required"`

	// SubscriberBuffer is the per-subscriber event buffer size. A subscriber
	// that falls further behind than this starts dropping events.
	SubscriberBuffer int `mapstructure:"subscriber_buffer" validate:"required,gt=0"`
}
