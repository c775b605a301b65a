// internal/common/server/middleware.go
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meminator/internal/common/logger"
	"meminator/internal/common/observability"
)

// RequestLogger logs one line per request with the chi request id.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			if log == nil {
				return
			}
			fields := map[string]interface{}{
				"requestId": middleware.GetReqID(r.Context()),
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    status(ww),
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start).String(),
			}
			if status(ww) >= http.StatusInternalServerError {
				log.Warn("request completed with server error", fields)
				return
			}
			log.Info("request completed", fields)
		})
	}
}

// RequestMetrics records the OTel request counter and duration histogram,
// labelled by chi route pattern so path parameters do not explode cardinality.
func RequestMetrics(obs *observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if obs == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			obs.RecordRequestProcessed(r.Context(), route, status(ww))
			obs.RecordRequestDuration(r.Context(), time.Since(start), route, status(ww))
		})
	}
}

func status(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
