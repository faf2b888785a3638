package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bptrack/internal/service"

	"go.uber.org/zap"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxToken
)

// UserIDFromContext user id set by RequireAuth, "" outside authenticated routes.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

func tokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxToken).(string)
	return v
}

// RequireAuth resolves `Authorization: Bearer <token>` and rejects the request with 401
// when the session is missing or expired.
func RequireAuth(auth service.AuthService, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, TokenExpired("missing bearer token"))
				return
			}
			userID, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					writeJSON(w, http.StatusUnauthorized, TokenExpired("token expired or invalid"))
					return
				}
				logger.Error("session lookup failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, Fail("internal server error"))
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			ctx = context.WithValue(ctx, ctxToken, token)
			next(w, r.WithContext(ctx))
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog logs one line per request.
func AccessLog(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
