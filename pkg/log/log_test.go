package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected Config
	}{
		{
			name:   "Default config",
			config: DefaultConfig(),
			expected: Config{
				Level:  InfoLevel,
				Format: TextFormat,
			},
		},
		{
			name: "Custom config",
			config: Config{
				Level:  DebugLevel,
				Format: JSONFormat,
			},
			expected: Config{
				Level:  DebugLevel,
				Format: JSONFormat,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config)
		})
	}
}

func TestLoggerSetup(t *testing.T) {
	var buf bytes.Buffer

	textCfg := Config{
		Level:  InfoLevel,
		Format: TextFormat,
	}
	logger := SetupWithOutput(textCfg, &buf)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")
	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()

	jsonCfg := Config{
		Level:  InfoLevel,
		Format: JSONFormat,
	}
	logger = SetupWithOutput(jsonCfg, &buf)
	require.NotNil(t, logger)

	logger.Info("json message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "json message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := SetupWithOutput(Config{Level: WarnLevel, Format: TextFormat}, &buf)
	logger.Debug("should be dropped")
	logger.Info("should be dropped too")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "should appear")
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOutput(Config{Level: DebugLevel, Format: TextFormat}, &buf)

	ctx := WithLogger(context.Background(), logger)
	assert.Equal(t, logger, FromContext(ctx))

	// A bare context falls back to the default logger.
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	DebugContext(ctx, "context message")
	assert.Contains(t, buf.String(), "context message")
}

func TestWithNamespace(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOutput(Config{Level: InfoLevel, Format: TextFormat}, &buf)

	WithNamespace(logger, "team-a").Info("scoped")
	assert.Contains(t, buf.String(), "namespace=team-a")

	buf.Reset()

	// Empty namespace is rendered as the wildcard.
	WithNamespace(logger, "").Info("unscoped")
	assert.True(t, strings.Contains(buf.String(), `namespace=*`))
}
