package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output with service attribute", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithService("billingd"),
		)
		log.Info("started", slog.String("addr", ":8080"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "started", record["msg"])
		assert.Equal(t, "billingd", record["service"])
		assert.Equal(t, ":8080", record["addr"])
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithLevel(slog.LevelWarn),
		)
		log.Info("dropped")
		assert.Empty(t, buf.String())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatText),
		)
		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("panics on invalid format", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			logger.New(logger.WithFormat("xml"))
		})
	})
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.FromConfig(
		logger.Config{Level: "debug", Format: logger.FormatJSON},
		logger.WithOutput(&buf),
	)
	log.Debug("verbose")
	assert.Contains(t, buf.String(), "verbose")
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "error", logger.Error(assert.AnError).Key)
	assert.Equal(t, "event", logger.Event("checkout_created").Key)
	assert.Equal(t, slog.Attr{}, logger.CompanyID(nil))
	assert.Equal(t, "company_id", logger.CompanyID("c1").Key)
}
