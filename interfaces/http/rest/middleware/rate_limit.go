package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"citegraph/pkg/common"
	pkgerrors "citegraph/pkg/errors"

	"go.uber.org/zap"
)

// VoteLimiter is satisfied by the in-process and DynamoDB-backed limiters.
type VoteLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// RateLimit rejects requests once the caller exhausts its budget. Callers
// are keyed by user id, falling back to the remote address. A limiter that
// fails open reports allowed with an error; the request proceeds and the
// error is logged.
func RateLimit(limiter VoteLimiter, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := common.GetUserID(r.Context())
			if !ok {
				key = clientIP(r)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if !allowed {
					errorHandler.Handle(w, r, err)
					return
				}
				logger.Warn("rate limiter degraded", zap.String("key", key), zap.Error(err))
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(60/max(limiter.Limit(), 1)+1))
				errorHandler.Handle(w, r, pkgerrors.NewRateLimitError(limiter.Limit(), "minute").
					WithCode(pkgerrors.CodeRateLimited))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
