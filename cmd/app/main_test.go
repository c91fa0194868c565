package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerReadsDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=warn\nAPP_ENV=test\n"), 0o600))

	// godotenv never overrides a variable that is already set
	for _, key := range []string{"LOG_LEVEL", "APP_ENV"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	logger := newLogger(envFile)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}
