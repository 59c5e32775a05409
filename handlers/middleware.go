// winrahi/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"winrahi/auth"
	"winrahi/utils"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const ClaimsKey ContextKey = "claims"

// GetClaims retrieves the session claims from the request context, or nil
// for unauthenticated requests.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// RequireAuth validates the Bearer token and adds claims to the context.
func RequireAuth(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing or invalid authorization header."}, app)
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateToken(app.JWTSecret(), tokenStr)
			if err != nil {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token."}, app)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth adds claims to the context when a valid Bearer token is
// present, but lets anonymous requests through. Used for report submission.
func OptionalAuth(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				if claims, err := auth.ValidateToken(app.JWTSecret(), strings.TrimPrefix(header, "Bearer ")); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ClaimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates a route on the profile's admin flag. The flag is
// re-checked against the database so a revoked admin loses access before
// their token expires.
func RequireAdmin(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated."}, app)
				return
			}
			profile, err := app.DB().GetProfile(claims.UserID)
			if err != nil {
				app.Logger().Error("Failed to load profile for admin check", "user_id", claims.UserID, "error", err)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database error."}, app)
				return
			}
			if profile == nil || !profile.IsAdmin {
				respondJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required."}, app)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// NewStructuredLogger logs every request through the application's slog
// logger.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", utils.GetIPAddress(r),
			)
		})
	}
}

// SecurityHeadersMiddleware sets baseline response headers for the API.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
