package config

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, LogLevel("debug"))
	assert.Equal(t, log.WarnLevel, LogLevel("WARN"))
	assert.Equal(t, log.InfoLevel, LogLevel(""))
	assert.Equal(t, log.InfoLevel, LogLevel("loud"))
}

func TestLogFileName(t *testing.T) {
	assert.Equal(t, "gamesvc-3f2a9c1e.log", LogFileName("gamesvc", "3f2a9c1e-0b7d-4e43-9a51-2f6c8d0e1a22"))
	assert.Equal(t, "sweepsvc.log", LogFileName("sweepsvc", ""))
}

func TestOrigins(t *testing.T) {
	assert.Equal(t, []string{defaultCORSOrigin}, Origins(""))
	assert.Equal(t, []string{defaultCORSOrigin}, Origins(" , "))
	assert.Equal(t, []string{"https://play.example.com", "http://localhost:3000"},
		Origins("https://play.example.com, http://localhost:3000"))
}

func TestFormatter(t *testing.T) {
	assert.IsType(t, &log.JSONFormatter{}, Formatter("json"))
	assert.IsType(t, &log.TextFormatter{}, Formatter(""))
}

func TestLoggingWritesPerInstanceFile(t *testing.T) {
	std := log.StandardLogger()
	out, level, formatter := std.Out, std.GetLevel(), std.Formatter
	t.Cleanup(func() {
		std.SetOutput(out)
		std.SetLevel(level)
		std.SetFormatter(formatter)
	})

	dir := t.TempDir()
	t.Setenv("LOG_DIR", dir)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	Logging("gamesvc", "abcd1234-ffff")
	assert.Equal(t, log.DebugLevel, std.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, std.Formatter)

	body, err := os.ReadFile(dir + "/gamesvc-abcd1234.log")
	require.NoError(t, err)
	assert.Contains(t, string(body), `"instance":"abcd1234-ffff"`)
}

func TestCustomLoggerMiddleware(t *testing.T) {
	std := log.StandardLogger()
	out := std.Out
	std.SetOutput(io.Discard)
	t.Cleanup(func() { std.SetOutput(out) })
	hook := test.NewGlobal()
	t.Cleanup(hook.Reset)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(CustomLoggerMiddleware())
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) })
	r.Get("/gone", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusGone) })
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	cases := []struct {
		path   string
		status int
		level  log.Level
	}{
		{"/ok", http.StatusOK, log.InfoLevel},
		{"/gone", http.StatusGone, log.WarnLevel},
		{"/boom", http.StatusInternalServerError, log.ErrorLevel},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			hook.Reset()
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, tc.status, rec.Code)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tc.level, entry.Level)
			assert.Equal(t, tc.status, entry.Data["status"])
			assert.Equal(t, tc.path, entry.Data["path"])
			assert.NotEmpty(t, entry.Data["request_id"])
		})
	}

	hook.Reset()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, 5, hook.LastEntry().Data["bytes"])
}
