package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HTTPObserver records request metrics
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

// Logger creates a logging middleware. observer may be nil.
func Logger(logger *zap.Logger, observer HTTPObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if observer != nil {
				observer.ObserveHTTP(r.Method, routePattern(r), status, duration)
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", duration),
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("remoteAddr", r.RemoteAddr),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("HTTP Request", fields...)
				return
			}
			logger.Info("HTTP Request", fields...)
		})
	}
}

// routePattern keeps metric cardinality bounded by the route table
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
