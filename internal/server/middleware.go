package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vitolahq/vitola/internal/api"
	"github.com/vitolahq/vitola/internal/appctx"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/ratelimit"
)

// requestLoggerMiddleware attaches a request-scoped logger to the request
// context. Handlers retrieve it with appctx.GetLogger; the access log
// inherits its fields.
//
// Must run AFTER middleware.RequestID so GetReqID returns a non-empty value.
func requestLoggerMiddleware(base *slog.Logger, trustedProxies *TrustedProxies, allowSensitive bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := "unknown"
			if trustedProxies != nil {
				clientIP = trustedProxies.GetClientIPString(r)
			}

			logPath := r.URL.Path
			if !allowSensitive {
				logPath = redactPath(logPath)
			}

			reqLogger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", logPath, // path only, no query string
				"client_ip", clientIP,
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redactPath hides the capability token in public share paths. Whoever
// reads the logs must not be able to open the humidors they describe.
func redactPath(path string) string {
	const prefix = "/public/humidors/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return prefix + "[REDACTED]" + rest[i:]
	}
	return prefix + "[REDACTED]"
}

// accessLogMiddleware logs one line per request using slog.
// It uses the request-scoped logger from context, which already carries
// request_id, method, path and client_ip; only response fields are added
// here, or the keys would duplicate.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logger, ok := appctx.LoggerFromContext(r.Context())
			if !ok {
				// Fallback: recompute base fields when the context logger
				// is missing (chain mounted without requestLoggerMiddleware)
				logPath := r.URL.Path
				if !s.cfg.Logging.AllowSensitive {
					logPath = redactPath(logPath)
				}
				logger = s.logger.With(
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", logPath,
					"client_ip", s.trustedProxies.GetClientIPString(r),
				)
			}

			logger.Info("request",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware enforces session authentication.
// Public endpoints (health, login, public share views) bypass auth.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if this path requires authentication
		if !IsAuthRequired(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Extract session token from cookie or header
		sessionToken := extractSessionToken(r)
		if sessionToken == "" {
			api.WriteUnauthorized(w, "authentication required")
			return
		}

		// Validate session
		session, err := s.deps.SessionRepo.Get(r.Context(), sessionToken)
		if errors.Is(err, identity.ErrSessionExpired) {
			api.WriteUnauthorized(w, "session has expired")
			return
		}
		if err != nil {
			api.WriteUnauthorized(w, "session not found")
			return
		}

		// Get associated user
		user, err := s.deps.Store.GetUser(r.Context(), session.UserID)
		if err != nil {
			api.WriteUnauthorized(w, "session user not found")
			return
		}

		// Deactivation must cut off existing sessions, not only new logins
		if !user.IsActive {
			api.WriteUnauthorized(w, "account is disabled")
			return
		}

		// Add user and session to context
		ctx := appctx.WithUser(r.Context(), user)
		ctx = appctx.WithSession(ctx, session)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractSessionToken gets the session token from cookie or Authorization header.
func extractSessionToken(r *http.Request) string {
	// Try cookie first
	cookie, err := r.Cookie("session")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Try Authorization header (Bearer token)
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}

// rateLimitMiddleware throttles the route groups in s.limiters by client IP.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Find matching rate limiter
		var limiter *ratelimit.Limiter
		var matchedPath string
		for path, l := range s.limiters {
			if pathMatchesPrefix(r.URL.Path, path) {
				limiter = l
				matchedPath = path
				break
			}
		}

		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := s.trustedProxies.GetClientIPString(r)

		result, err := limiter.Allow(r.Context(), clientIP)
		if err != nil {
			// A broken counter backend must not take every login down
			// with it; let the request through and say so
			s.logger.Warn("rate limiter unavailable",
				"path", matchedPath,
				"error", err.Error(),
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			s.logger.Warn("rate limit exceeded",
				"path", matchedPath,
				"client_ip", clientIP,
			)
			retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.WriteTooManyRequests(w, "too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
