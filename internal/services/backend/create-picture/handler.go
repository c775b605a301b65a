// internal/services/backend/create-picture/handler.go
package createpicture

import (
	"net/http"
	"strconv"

	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/metrics"
)

const Route = "/createPicture"

// Handler exposes the Aggregator over HTTP. Rendered bytes are passed
// through untouched; any failure becomes a generic 500.
type Handler struct {
	aggregator *Aggregator
	errors     *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(aggregator *Aggregator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"route": Route})
	return &Handler{
		aggregator: aggregator,
		errors:     errors.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := h.aggregator.Execute(r.Context())
	if err != nil {
		metrics.PictureRequests.WithLabelValues(metrics.OutcomeFailure).Inc()
		h.errors.WriteHTTPError(w, r, err)
		return
	}

	metrics.PictureRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	if result.ImageDegraded || result.PhraseDegraded {
		h.logger.Info("picture composed from fallback data", map[string]interface{}{
			"imageDegraded":  result.ImageDegraded,
			"phraseDegraded": result.PhraseDegraded,
		})
	}

	rendered := result.Image
	if rendered.ContentType != "" {
		w.Header().Set("Content-Type", rendered.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Bytes)))
	w.WriteHeader(rendered.StatusCode)
	_, _ = w.Write(rendered.Bytes)
}
