package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewVariants(t *testing.T) {
	t.Run("json format logs expected fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.InfoLevel), "json", false)

		log.Info().Str("key", "value").Msg("json_test")

		require.Contains(t, buf.String(), `"message":"json_test"`)
		require.Contains(t, buf.String(), `"key":"value"`)
	})

	t.Run("console format logs human readable output", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.DebugLevel), "console", false)

		log.Debug().Str("env", "test").Msg("console_log")

		require.Contains(t, buf.String(), "console_log")
		require.Contains(t, buf.String(), "env=test")
	})

	t.Run("level filtering drops debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.WarnLevel), "json", false)

		log.Info().Msg("hidden")
		log.Warn().Msg("shown")

		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "shown")
	})

	t.Run("sampler keeps first of every five", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, int(zerolog.InfoLevel), "json", true)

		for i := 0; i < 5; i++ {
			log.Info().Msg("sampled")
		}

		require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("sampled")))
	})
}
