package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Info("subscription activated", logger.Plan("MONTHLY"), logger.Status("ACTIVE"))
	entry := decode(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "subscription activated", entry["msg"])
	assert.Equal(t, "MONTHLY", entry["plan"])
	assert.Equal(t, "ACTIVE", entry["status"])
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantEnv   string
		wantJSON  bool
		wantDebug bool
	}{
		{env: "production", wantEnv: logger.EnvProduction, wantJSON: true},
		{env: "prod", wantEnv: logger.EnvProduction, wantJSON: true},
		{env: "Staging", wantEnv: logger.EnvStaging, wantJSON: true},
		{env: "development", wantEnv: logger.EnvDevelopment, wantDebug: true},
		{env: "", wantEnv: logger.EnvDevelopment, wantDebug: true},
		{env: "local", wantEnv: logger.EnvDevelopment, wantDebug: true},
	}
	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := logger.New(logger.WithEnvironment(tt.env, "billingd"), logger.WithOutput(buf))

			log.Debug("reconcile")
			if !tt.wantDebug {
				assert.Zero(t, buf.Len(), "debug must be filtered")
				log.Info("reconcile")
			}

			if tt.wantJSON {
				entry := decode(t, buf)
				assert.Equal(t, "billingd", entry["service"])
				assert.Equal(t, tt.wantEnv, entry["env"])
				return
			}
			assert.Contains(t, buf.String(), "service=billingd")
			assert.Contains(t, buf.String(), "env="+tt.wantEnv)
		})
	}
}

func TestWithEnvironment_Overrides(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithEnvironment("production", "billingd"),
		logger.WithFormat(logger.FormatText),
		logger.WithLevel(slog.LevelWarn),
		logger.WithOutput(buf),
	)
	log.Info("renewal applied")
	assert.Zero(t, buf.Len())

	log.Warn("ledger unavailable", logger.EventID("evt_1"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "event_id=evt_1")
	assert.Contains(t, buf.String(), "env=production")
}

func TestWithFormat_Invalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestWithContextExtractors(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	userFromCtx := func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(ctxKey{}).(string); ok {
			return logger.UserID(v), true
		}
		return slog.Attr{}, false
	}

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithAttr(slog.String("component", "reconciler")),
		logger.WithContextExtractors(nil, userFromCtx),
	)

	log.InfoContext(context.WithValue(context.Background(), ctxKey{}, "u-42"), "event applied")
	entry := decode(t, buf)
	assert.Equal(t, "u-42", entry["user_id"])
	assert.Equal(t, "reconciler", entry["component"])

	buf.Reset()
	log.With(logger.Component("gateway")).InfoContext(context.Background(), "no user")
	entry = decode(t, buf)
	assert.NotContains(t, entry, "user_id")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		" error ": slog.LevelError,
		"error+2": slog.LevelError + 2,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(in), "input %q", in)
	}
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, buf)["msg"])
}
