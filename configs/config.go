package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

const (
	defaultLogDir     = ".l_g"
	defaultCORSOrigin = "http://localhost:5173"
)

var InstanceId string

func LoadEnv(service string) {
	log.Infof("%s: loading configuration", service)
	if err := godotenv.Load("./.env"); err != nil {
		// containers pass the environment directly
		log.Warnf("%s: no .env file loaded, using process environment: %s", service, err)
		return
	}
	log.Infof("%s: .env file loaded", service)
}

// CreateUniqueInstance tags this process with a fresh id used in log file
// names and the socket relay subjects.
func CreateUniqueInstance(service string) string {
	id, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("%s: generate instance id: %s", service, err)
	}
	InstanceId = id.String()
	log.WithField("instance", InstanceId).Infof("%s service is ready", service)
	return InstanceId
}

func GetInstanceId() string {
	return InstanceId
}

// CORS allows the origins listed in CORS_ORIGINS (comma separated). The
// local web client is allowed when the variable is empty.
func CORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   Origins(os.Getenv("CORS_ORIGINS")),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func Origins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{defaultCORSOrigin}
	}
	return out
}

// Logging sends the process log to <LOG_DIR>/<service>-<instance>.log. With
// LOG_DIR set to "-" it stays on stderr. LOG_FORMAT=json switches the formatter.
func Logging(service, instance string) {
	log.SetLevel(LogLevel(os.Getenv("LOG_LEVEL")))
	log.SetFormatter(Formatter(os.Getenv("LOG_FORMAT")))

	dir := os.Getenv("LOG_DIR")
	if dir == "-" {
		return
	}
	if dir == "" {
		dir = defaultLogDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warnf("%s: unable to create log dir %s: %s", service, dir, err)
		return
	}

	path := filepath.Join(dir, LogFileName(service, instance))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("%s: open log file %s: %s", service, path, err)
	}
	log.SetOutput(file)
	log.WithField("instance", instance).Infof("%s: logging to %s", service, path)
}

// LogFileName keeps the first block of the instance uuid, enough to tell
// replicas apart in one directory.
func LogFileName(service, instance string) string {
	short, _, _ := strings.Cut(instance, "-")
	if short == "" {
		return service + ".log"
	}
	return service + "-" + short + ".log"
}

// LogLevel parses a logrus level name, falling back to info.
func LogLevel(name string) log.Level {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func Formatter(name string) log.Formatter {
	if strings.EqualFold(name, "json") {
		return &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}
	return &log.TextFormatter{FullTimestamp: true}
}

// CustomLoggerMiddleware writes one entry per request. Server errors are
// logged at error level and client errors at warn.
func CustomLoggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				entry := log.WithFields(log.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"remote":     r.RemoteAddr,
					"status":     status,
					"bytes":      ww.BytesWritten(),
					"latency":    time.Since(start).String(),
				})
				switch {
				case status >= 500:
					entry.Error(http.StatusText(status))
				case status >= 400:
					entry.Warn(http.StatusText(status))
				default:
					entry.Info(http.StatusText(status))
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
