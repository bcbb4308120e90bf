package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bobmcallan/stacker/internal/common"
)

// HeaderUserID carries the caller identity when no bearer token is sent,
// for trusted deployments behind an authenticating proxy.
const HeaderUserID = "X-Stacker-User-ID"

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// recoveryMiddleware catches panics and returns 500.
func recoveryMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Str("panic", fmt.Sprintf("%v", rec)).
						Str("path", r.URL.Path).
						Msg("Panic recovered in HTTP handler")
					WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// correlationIDMiddleware extracts or generates a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get("X-Request-ID")
		if corrID == "" {
			corrID = r.Header.Get("X-Correlation-ID")
		}
		if corrID == "" {
			corrID = uuid.New().String()[:8]
		}
		w.Header().Set("X-Correlation-ID", corrID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			event := logger.Trace()
			if rw.statusCode >= 500 {
				event = logger.Error()
			} else if rw.statusCode >= 400 {
				event = logger.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", rw.statusCode).
				Int("bytes", rw.bytesWritten).
				Dur("duration", time.Since(start)).
				Str("correlation_id", w.Header().Get("X-Correlation-ID")).
				Msg("HTTP request")
		})
	}
}

// validateJWT parses an HS256 token signed with secret.
func validateJWT(tokenString string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// authMiddleware resolves the caller into a UserContext. A bearer token wins
// over the X-Stacker-User-ID header; an invalid token is rejected outright.
// Requests with neither pass through without a UserContext.
func authMiddleware(config *common.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				claims, err := validateJWT(strings.TrimPrefix(authHeader, "Bearer "), []byte(config.Auth.JWTSecret))
				if err != nil {
					w.Header().Set("WWW-Authenticate", "Bearer")
					WriteError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				sub, _ := claims["sub"].(string)
				if sub == "" {
					w.Header().Set("WWW-Authenticate", "Bearer")
					WriteError(w, http.StatusUnauthorized, "invalid token claims")
					return
				}
				email, _ := claims["email"].(string)
				uc := &common.UserContext{UserID: sub, Email: email, Source: "bearer"}
				next.ServeHTTP(w, r.WithContext(common.WithUserContext(r.Context(), uc)))
				return
			}

			if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
				uc := &common.UserContext{UserID: userID, Source: "header"}
				r = r.WithContext(common.WithUserContext(r.Context(), uc))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// applyMiddleware wraps a handler with the middleware stack.
func applyMiddleware(handler http.Handler, logger *common.Logger, config *common.Config) http.Handler {
	// Apply in reverse order (last applied = first executed)
	handler = authMiddleware(config)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = correlationIDMiddleware(handler)
	handler = recoveryMiddleware(logger)(handler)
	return handler
}
