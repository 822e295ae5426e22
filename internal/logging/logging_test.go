package logging

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatEntry(t *testing.T, entry *log.Entry) string {
	t.Helper()
	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	return string(out)
}

func TestLogFormatter_WithRequestID(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2026, 2, 14, 9, 31, 7, 0, time.Local),
		Level:   log.InfoLevel,
		Message: "intercepted error reply\n",
		Data:    log.Fields{"request_id": "abc12345"},
	}

	line := formatEntry(t, entry)
	assert.Contains(t, line, "[2026-02-14 09:31:07]")
	assert.Contains(t, line, "[abc12345]")
	assert.Contains(t, line, "[info ]")
	assert.Contains(t, line, "intercepted error reply")
	assert.NotContains(t, line, "request_id=")
}

func TestLogFormatter_DefaultsAndFields(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Now(),
		Level:   log.WarnLevel,
		Message: "provider switch skipped",
		Data:    log.Fields{"session": "qq:group:42"},
	}

	line := formatEntry(t, entry)
	assert.Contains(t, line, "[--------]")
	assert.Contains(t, line, "[warn ]")
	assert.Contains(t, line, "session=qq:group:42")
}
