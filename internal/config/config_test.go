package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// The package reads the global viper instance, so every test starts from a
// clean slate.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoadEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("ANKI_CONNECT_URL", "http://anki.internal:8765")
	t.Setenv("ANKI_CONNECT_API_KEY", "hunter2")
	t.Setenv("ANKI_CONNECT_TIMEOUT", "2.5")
	t.Setenv("ANKI_CONNECT_VERSION", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://anki.internal:8765", cfg.Endpoint)
	assert.Equal(t, "hunter2", cfg.APIKey)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout())
	assert.Equal(t, 5, cfg.Version)
	assert.Equal(t, zapcore.DebugLevel, cfg.ZapLevel())
}

func TestLoadRejectsNonNumericTimeout(t *testing.T) {
	resetViper(t)
	t.Setenv("ANKI_CONNECT_TIMEOUT", "abc")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
	assert.Contains(t, err.Error(), "abc")
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	resetViper(t)
	t.Setenv("ANKI_CONNECT_TIMEOUT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	resetViper(t)

	for _, raw := range []string{"six", "0", "-1"} {
		t.Run(raw, func(t *testing.T) {
			resetViper(t)
			t.Setenv("ANKI_CONNECT_VERSION", raw)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidVersion)
		})
	}
}

func TestLoadRejectsBadEndpoint(t *testing.T) {
	for _, raw := range []string{"not a url", "ftp://host:21", "://missing-scheme"} {
		t.Run(raw, func(t *testing.T) {
			resetViper(t)
			t.Setenv("ANKI_CONNECT_URL", raw)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	resetViper(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestZapLevelCaseInsensitive(t *testing.T) {
	cfg := Config{LogLevel: "WARN"}
	assert.Equal(t, zapcore.WarnLevel, cfg.ZapLevel())
}
