package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROXY_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg := Load()

	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, "https://danryoku.com", cfg.Upstream.BaseURL)
	assert.Equal(t, "https://danryoku.com/", cfg.Upstream.Referer)
	assert.Equal(t, "ja,en;q=0.9", cfg.Upstream.AcceptLanguage)
	assert.Equal(t, 10*time.Second, cfg.Upstream.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.Upstream.ReadTimeout)
	assert.Equal(t, 3, cfg.DetailRetryBudget)
	assert.Zero(t, cfg.DetailRetryBackoff)
	assert.Nil(t, cfg.Upstream.Proxies)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.MongoURI)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROXY_CONFIG_PATH", "")
	t.Setenv("UPSTREAM_BASE_URL", "http://mirror.local/")
	t.Setenv("READ_TIMEOUT", "5")
	t.Setenv("DETAIL_RETRY_BACKOFF", "250ms")
	t.Setenv("DETAIL_RETRY_BUDGET", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "http://mirror.local", cfg.Upstream.BaseURL)
	assert.Equal(t, "http://mirror.local/", cfg.Upstream.Referer)
	assert.Equal(t, 5*time.Second, cfg.Upstream.ReadTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.DetailRetryBackoff)
	assert.Equal(t, 3, cfg.DetailRetryBudget)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.OTELEnabled)
}

func TestLoadProxies(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid map", func(t *testing.T) {
		path := filepath.Join(dir, "proxy.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"HTTP": "http://127.0.0.1:7890", "https": " http://127.0.0.1:7890 ", "ftp": ""}`), 0o644))

		proxies := loadProxies(path)
		assert.Equal(t, map[string]string{
			"http":  "http://127.0.0.1:7890",
			"https": "http://127.0.0.1:7890",
		}, proxies)
	})

	t.Run("empty map means direct", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
		assert.Nil(t, loadProxies(path))
	})

	t.Run("malformed file means direct", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"http":`), 0o644))
		assert.Nil(t, loadProxies(path))
	})

	t.Run("missing file means direct", func(t *testing.T) {
		assert.Nil(t, loadProxies(filepath.Join(dir, "nope.json")))
	})
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
