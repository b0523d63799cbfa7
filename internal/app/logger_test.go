package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"course-pilot/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("pilot-api", config.LogConfig{Level: "debug"})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.Equal(t, "pilot-api", logger.Data[COMPONENT])

	NewLogger("pilot-api", config.LogConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestFormatterFieldNames(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(newFormatter())

	l.WithField(COMPONENT, "study-reminder").Warn("hello")

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "hello", m[MESSAGE])
	assert.Equal(t, "warning", m[SEVERITY])
	assert.Contains(t, m, TIMESTAMP)
	assert.Equal(t, "study-reminder", m[COMPONENT])
}
