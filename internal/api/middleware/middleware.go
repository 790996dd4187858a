package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InitDataHeader carries the Telegram Mini App initData.
const InitDataHeader = "X-Telegram-Init-Data"

// Logger adds structured logging to HTTP requests and puts a request scoped
// logger on the context.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			reqLog := log.With().Str("request_id", RequestIDFromContext(r.Context())).Logger()
			ctx := logger.WithContext(r.Context(), reqLog)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			reqLog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// CORS adds Cross-Origin Resource Sharing headers.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+InitDataHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Recovery recovers from panics and returns a 500 error.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("error", err).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered")

					WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID adds a unique request ID to the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ProtectedPrefix marks the routes that need a resolved user once
// signatures are checked.
const ProtectedPrefix = "/api/"

// TelegramAuth resolves the Telegram user from initData and stores the
// derived identity on the context. With a bot token configured, API requests
// without valid initData are rejected with 401. Without one the validator
// trusts the unsigned user field and requests lacking it continue
// anonymously.
func TelegramAuth(v *identity.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			strict := v.Verifying() && strings.HasPrefix(r.URL.Path, ProtectedPrefix)

			initData := InitData(r)
			if initData == "" {
				if strict {
					WriteError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrIdentityUnresolved))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := v.Validate(initData)
			if err != nil {
				log := logger.FromContext(r.Context())
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected Telegram initData")
				if strict {
					WriteError(w, http.StatusUnauthorized, domain.UserMessage(err))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithUser(r.Context(), user.StoreID())
			ctx = logger.WithContext(ctx, logger.WithUser(logger.FromContext(ctx), user.StoreID()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InitData reads initData from the dedicated header or from
// "Authorization: tma <initData>".
func InitData(r *http.Request) string {
	if v := r.Header.Get(InitDataHeader); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "tma") {
		return strings.TrimSpace(rest)
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Context key for request ID.
type contextKey string

const requestIDKey contextKey = "requestID"

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
