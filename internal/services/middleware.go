package services

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	goahttp "goa.design/goa/v3/http"
	httpmdlwr "goa.design/goa/v3/http/middleware"
	goamdlwr "goa.design/goa/v3/middleware"

	"oikos/internal/config"
	"oikos/internal/metrics"
)

// Handler wraps mux with the middleware chain, outermost first: security
// headers, CORS, request IDs, request logging, panic recovery and Prometheus.
func Handler(mux http.Handler, cfg *config.Config, logger zerolog.Logger) http.Handler {
	var h http.Handler = mux
	h = metrics.PrometheusMiddleware(h)
	h = Recover(logger)(h)
	h = RequestLogging(logger)(h)
	h = httpmdlwr.PopulateRequestContext()(h)
	h = httpmdlwr.RequestID()(h)
	h = CORS(cfg.CORS, cfg.App.Debug)(h)
	h = SecurityHeaders(cfg.App.Debug)(h)
	return h
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders(debugMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			// HSTS (only in production with HTTPS)
			if !debugMode && r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers browser preflights for the form endpoints. Preflights get a
// 200 so older browsers accept them.
func CORS(cfg config.CORSConfig, debugMode bool) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       cfg.AllowedOrigins,
		AllowedMethods:       cfg.AllowedMethods,
		AllowedHeaders:       cfg.AllowedHeaders,
		ExposedHeaders:       []string{"X-Request-ID"},
		MaxAge:               cfg.MaxAge,
		OptionsSuccessStatus: http.StatusOK,
		Debug:                debugMode,
	})
	return c.Handler
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// RequestLogging logs all incoming requests and their responses
func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip logging for health checks to reduce noise
			if r.URL.Path == HealthPath {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			reqID, _ := r.Context().Value(goamdlwr.RequestIDKey).(string)
			event := logger.Info()
			if wrapped.statusCode >= http.StatusInternalServerError {
				event = logger.Error()
			} else if wrapped.statusCode >= http.StatusBadRequest {
				event = logger.Warn()
			}
			event.
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

// Recover turns a panic in a handler into a generic JSON server error. The
// panic value and stack are logged, never returned.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqID, _ := r.Context().Value(goamdlwr.RequestIDKey).(string)
				logger.Error().
					Str("request_id", reqID).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				ctx := jsonContext(r.Context())
				enc := goahttp.ResponseEncoder(ctx, w)
				w.WriteHeader(http.StatusInternalServerError)
				_ = enc.Encode(&FormResponse{Message: MsgServerError})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
