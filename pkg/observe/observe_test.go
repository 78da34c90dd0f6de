package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestFormatFieldsEmpty(t *testing.T) {
	assert.Equal(t, "", formatFields(nil))
	assert.Equal(t, "", formatFields(map[string]any{}))
}

func TestFormatFieldsSortsKeys(t *testing.T) {
	got := formatFields(map[string]any{"b": 2, "a": 1})
	assert.Equal(t, " a=1 b=2", got)
}

func TestSetLevelSuppressesBelowThreshold(t *testing.T) {
	l := New("test", LevelWarn)
	// Below the threshold should be a no-op, not a panic or write failure.
	l.Debug("ignored", nil)
	l.Info("ignored", nil)
	l.Warn("shown", map[string]any{"k": "v"})
	l.Error("shown", nil)

	l.SetLevel(LevelDebug)
	l.Debug("now shown", nil)
}
