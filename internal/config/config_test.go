package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LABELER_API_URL",
		"LABELER_RECORDS_URL",
		"LABELER_HTTP_TIMEOUT",
		"LABELER_JOURNAL_PATH",
		"LABELER_PORT",
		"LABELER_LOG_LEVEL",
		"LABELER_LOG_FORMAT",
	} {
		if v, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.URL)
	assert.Equal(t, "http://localhost:8000", cfg.API.RecordsURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, "labeler.db", cfg.Journal.Path)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "labeler.yaml")
	yamlData := `
api:
  url: https://queue.example.com/
  timeout: 5s
server:
  port: "9000"
journal:
  path: /tmp/journal.db
logging:
  level: DEBUG
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://queue.example.com", cfg.API.URL)
	assert.Equal(t, "https://queue.example.com", cfg.API.RecordsURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	t.Setenv("LABELER_RECORDS_URL", "http://records:9001")
	t.Setenv("LABELER_HTTP_TIMEOUT", "12")
	t.Setenv("LABELER_PORT", "7000")
	t.Setenv("LABELER_JOURNAL_PATH", "")

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://queue.example.com", cfg.API.URL)
	assert.Equal(t, "http://records:9001", cfg.API.RecordsURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Empty(t, cfg.Journal.Path, "empty env value disables the journal")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad url", env: map[string]string{"LABELER_API_URL": "localhost:8000"}},
		{name: "bad timeout", env: map[string]string{"LABELER_HTTP_TIMEOUT": "soon"}},
		{name: "bad level", env: map[string]string{"LABELER_LOG_LEVEL": "loud"}},
		{name: "bad format", env: map[string]string{"LABELER_LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Logging{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "crop", "img1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"crop":"img1"`)

	buf.Reset()
	Logging{Format: "text"}.NewLogger(&buf).Info("plain", "k", "v")
	assert.Contains(t, buf.String(), "msg=plain")
}
