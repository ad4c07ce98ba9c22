package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that may set them.
// The first name is the legacy one the deployment scripts already export.
var envBindings = map[string][]string{
	"server.port":                      {"PORT", "SERVER_PORT"},
	"server.mode":                      {"GIN_MODE", "SERVER_MODE"},
	"server.cors_origins":              {"CORS_ORIGINS"},
	"db.host":                          {"DB_HOST"},
	"db.port":                          {"DB_PORT"},
	"db.user":                          {"DB_USER"},
	"db.password":                      {"DB_PASSWORD"},
	"db.name":                          {"DB_NAME"},
	"db.sslmode":                       {"DB_SSLMODE"},
	"auth.jwt_secret":                  {"JWT_SECRET"},
	"log.level":                        {"LOG_LEVEL"},
	"log.format":                       {"LOG_FORMAT"},
	"trace.output":                     {"TRACE_OUTPUT"},
	"orchestrator.materialize_timeout": {"MATERIALIZE_TIMEOUT"},
	"orchestrator.mirror_timeout":      {"MIRROR_TIMEOUT"},
	"orchestrator.notify_timeout":      {"NOTIFY_TIMEOUT"},
	"orchestrator.retry_delay":         {"RETRY_DELAY"},
	"mirror.backend":                   {"MIRROR_BACKEND"},
	"mirror.sheets.spreadsheet_id":     {"GOOGLE_SHEETS_SPREADSHEET_ID"},
	"mirror.sheets.credentials_file":   {"GOOGLE_SHEETS_CREDENTIALS_FILE"},
	"mirror.kafka.brokers":             {"KAFKA_BROKERS"},
	"mirror.kafka.topic_prefix":        {"KAFKA_TOPIC_PREFIX"},
	"email.resend_api_key":             {"RESEND_API_KEY"},
	"email.from":                       {"EMAIL_FROM"},
	"email.base_url":                   {"RESEND_BASE_URL"},
	"telegram.bot_token":               {"TELEGRAM_BOT_TOKEN"},
	"telegram.chat_id":                 {"TELEGRAM_CHAT_ID"},
	"telegram.base_url":                {"TELEGRAM_BASE_URL"},
	"redis.addr":                       {"REDIS_ADDR"},
	"redis.password":                   {"REDIS_PASSWORD"},
	"redis.db":                         {"REDIS_DB"},
	"worker.concurrency":               {"WORKER_CONCURRENCY"},
	"worker.sweep_interval":            {"WORKER_SWEEP_INTERVAL"},
	"worker.sweep_batch":               {"WORKER_SWEEP_BATCH"},
	"worker.task_timeout":              {"WORKER_TASK_TIMEOUT"},
}

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	envFile    string
	configFile string
}

// NewLoader creates a loader reading configs/.env when present.
func NewLoader() *Loader {
	return &Loader{
		v:       viper.New(),
		envFile: "configs/.env",
	}
}

// SetEnvFile overrides the dotenv file path. An empty path skips dotenv loading.
func (l *Loader) SetEnvFile(path string) {
	l.envFile = path
}

// SetConfigFile sets an explicit YAML config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load resolves configuration with precedence defaults < config file < env vars.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// Missing .env is normal in containers where env comes from the orchestrator.
		_ = godotenv.Load(l.envFile)
	}

	cfg := DefaultConfig()
	l.setDefaults(cfg)

	if err := l.bindEnv(); err != nil {
		return nil, err
	}

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Mirror.Backend = strings.ToLower(cfg.Mirror.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) bindEnv() error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := l.v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)

	v.SetDefault("db.host", cfg.Database.Host)
	v.SetDefault("db.port", cfg.Database.Port)
	v.SetDefault("db.user", cfg.Database.User)
	v.SetDefault("db.password", cfg.Database.Password)
	v.SetDefault("db.name", cfg.Database.Name)
	v.SetDefault("db.sslmode", cfg.Database.SSLMode)

	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("trace.output", cfg.Trace.Output)

	v.SetDefault("orchestrator.materialize_timeout", cfg.Orchestrator.MaterializeTimeout)
	v.SetDefault("orchestrator.mirror_timeout", cfg.Orchestrator.MirrorTimeout)
	v.SetDefault("orchestrator.notify_timeout", cfg.Orchestrator.NotifyTimeout)
	v.SetDefault("orchestrator.retry_delay", cfg.Orchestrator.RetryDelay)

	v.SetDefault("mirror.backend", cfg.Mirror.Backend)
	v.SetDefault("mirror.sheets.spreadsheet_id", cfg.Mirror.Sheets.SpreadsheetID)
	v.SetDefault("mirror.sheets.credentials_file", cfg.Mirror.Sheets.CredentialsFile)
	v.SetDefault("mirror.kafka.brokers", cfg.Mirror.Kafka.Brokers)
	v.SetDefault("mirror.kafka.topic_prefix", cfg.Mirror.Kafka.TopicPrefix)

	v.SetDefault("email.resend_api_key", cfg.Email.ResendAPIKey)
	v.SetDefault("email.from", cfg.Email.From)
	v.SetDefault("email.base_url", cfg.Email.BaseURL)

	v.SetDefault("telegram.bot_token", cfg.Telegram.BotToken)
	v.SetDefault("telegram.chat_id", cfg.Telegram.ChatID)
	v.SetDefault("telegram.base_url", cfg.Telegram.BaseURL)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)

	v.SetDefault("worker.concurrency", cfg.Worker.Concurrency)
	v.SetDefault("worker.sweep_interval", cfg.Worker.SweepInterval)
	v.SetDefault("worker.sweep_batch", cfg.Worker.SweepBatch)
	v.SetDefault("worker.task_timeout", cfg.Worker.TaskTimeout)
}
