package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/security"
)

type contextKey struct{ name string }

var (
	clientIPKey  = contextKey{"client_ip"}
	validatorKey = contextKey{"validator_claims"}
)

const bearerPrefix = "bearer "

// ClientIP returns the caller's IP recorded by the router, or "" outside a request.
// It matches audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// ValidatorClaims returns the authenticated validator, if the request carried a valid bearer token.
func ValidatorClaims(ctx context.Context) (*security.ValidatorClaims, bool) {
	c, ok := ctx.Value(validatorKey).(*security.ValidatorClaims)
	return c, ok && c != nil
}

// clientIP stores the remote host (already rewritten by middleware.RealIP) in the context.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
	})
}

// bearerAuth requires a valid validator token when tokens is non-nil.
func bearerAuth(tokens TokenValidator, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				deny(w, r)
				return
			}
			claims, err := tokens.ValidateValidatorToken(token)
			if err != nil {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), validatorKey, claims)))
		})
	}
}

// extractBearer returns the token from an Authorization header, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// observe logs each request and records HTTP metrics by route pattern.
func observe(log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			d := time.Since(start)
			m.ObserveHTTP(r.Method, route, status, d)
			if route == "/healthz" || route == "/readyz" || route == "/metrics" {
				return
			}
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", d),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("client_ip", ClientIP(r.Context())),
			)
		})
	}
}

func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("http panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
