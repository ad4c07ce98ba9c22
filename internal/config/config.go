// Package config loads runtime settings for the api and worker processes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mirror backends
const (
	MirrorNone   = "none"
	MirrorSheets = "sheets"
	MirrorKafka  = "kafka"
)

// Config is the root configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Trace        TraceConfig        `mapstructure:"trace"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Mirror       MirrorConfig       `mapstructure:"mirror"`
	Email        EmailConfig        `mapstructure:"email"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"` // gin mode: debug, release, test
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TraceConfig struct {
	// Output is "stdout" to export spans to stdout; anything else disables export.
	Output string `mapstructure:"output"`
}

// OrchestratorConfig bounds every post-decision step.
type OrchestratorConfig struct {
	MaterializeTimeout time.Duration `mapstructure:"materialize_timeout"`
	MirrorTimeout      time.Duration `mapstructure:"mirror_timeout"`
	NotifyTimeout      time.Duration `mapstructure:"notify_timeout"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

type MirrorConfig struct {
	Backend string       `mapstructure:"backend"`
	Sheets  SheetsConfig `mapstructure:"sheets"`
	Kafka   KafkaConfig  `mapstructure:"kafka"`
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	BaseURL      string `mapstructure:"base_url"`
}

// Enabled reports whether the email channel should be registered.
func (e EmailConfig) Enabled() bool {
	return e.ResendAPIKey != ""
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	BaseURL  string `mapstructure:"base_url"`
}

// Enabled reports whether the telegram channel should be registered.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether the asynq task queue is available.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	SweepInterval string        `mapstructure:"sweep_interval"` // asynq cron spec, e.g. "@every 5m"
	SweepBatch    int           `mapstructure:"sweep_batch"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Mode:        "debug",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "marketplace",
			SSLMode:  "disable",
		},
		Log:   LogConfig{Level: "info", Format: "console"},
		Trace: TraceConfig{Output: ""},
		Orchestrator: OrchestratorConfig{
			MaterializeTimeout: 10 * time.Second,
			MirrorTimeout:      15 * time.Second,
			NotifyTimeout:      10 * time.Second,
			RetryDelay:         time.Minute,
		},
		Mirror: MirrorConfig{
			Backend: MirrorNone,
			Kafka:   KafkaConfig{TopicPrefix: "marketplace."},
		},
		Email: EmailConfig{
			From:    "Marketplace <onboarding@resend.dev>",
			BaseURL: "https://api.resend.com",
		},
		Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		Worker: WorkerConfig{
			Concurrency:   5,
			SweepInterval: "@every 5m",
			SweepBatch:    50,
			TaskTimeout:   time.Minute,
		},
	}
}

// Validate checks settings that would make a process misbehave at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Auth.JWTSecret == "" && c.Server.Mode == "release" {
		errs = append(errs, errors.New("auth.jwt_secret is required in release mode"))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("db.host and db.name are required"))
	}

	for name, d := range map[string]time.Duration{
		"orchestrator.materialize_timeout": c.Orchestrator.MaterializeTimeout,
		"orchestrator.mirror_timeout":      c.Orchestrator.MirrorTimeout,
		"orchestrator.notify_timeout":      c.Orchestrator.NotifyTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	switch strings.ToLower(c.Mirror.Backend) {
	case "", MirrorNone:
	case MirrorSheets:
		if c.Mirror.Sheets.SpreadsheetID == "" || c.Mirror.Sheets.CredentialsFile == "" {
			errs = append(errs, errors.New("mirror.sheets requires spreadsheet_id and credentials_file"))
		}
	case MirrorKafka:
		if len(c.Mirror.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("mirror.kafka requires at least one broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mirror backend %q", c.Mirror.Backend))
	}

	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}
