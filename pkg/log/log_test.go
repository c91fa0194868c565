package log

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Setenv("LOG_LEVEL", "panic")
	os.Exit(m.Run())
}

func TestNewLoggerIsSingleton(t *testing.T) {
	assert.Same(t, NewLogger(), NewLogger())
}

func TestErrorWithTraceIDReusesRequestID(t *testing.T) {
	traceID := ErrorWithTraceID(Fields{RequestIDKey: "01HREQ"}, "failed")
	assert.Equal(t, "01HREQ", traceID)
}

func TestErrorWithTraceIDGeneratesUUID(t *testing.T) {
	for _, fields := range []Fields{nil, {RequestIDKey: "unknown"}} {
		traceID := ErrorWithTraceID(fields, "failed")
		_, err := uuid.Parse(traceID)
		assert.NoError(t, err)
	}
}
