package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader() *Loader {
	l := NewLoader()
	l.SetEnvFile("")
	return l
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, MirrorNone, cfg.Mirror.Backend)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.MaterializeTimeout)
	assert.False(t, cfg.Email.Enabled())
	assert.False(t, cfg.Telegram.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MIRROR_BACKEND", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MIRROR_TIMEOUT", "3s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, MirrorKafka, cfg.Mirror.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Mirror.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.MirrorTimeout)
	assert.True(t, cfg.Telegram.Enabled())
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=from_dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DB_NAME") })

	l := NewLoader()
	l.SetEnvFile(path)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Database.Name)
}

func TestValidateRejectsIncompleteMirror(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mirror.Backend = MirrorSheets
	assert.ErrorContains(t, cfg.Validate(), "spreadsheet_id")

	cfg = DefaultConfig()
	cfg.Mirror.Backend = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown mirror backend")

	cfg = DefaultConfig()
	cfg.Orchestrator.NotifyTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "orchestrator.notify_timeout")

	cfg = DefaultConfig()
	cfg.Server.Mode = "release"
	assert.ErrorContains(t, cfg.Validate(), "auth.jwt_secret")
	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=1 sslmode=disable", d.DSN())
}
