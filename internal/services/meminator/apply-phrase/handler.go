// internal/services/meminator/apply-phrase/handler.go
package applyphrase

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/validation"
	"meminator/internal/models"
)

const (
	Route = "/applyPhraseToPicture"

	maxBodyBytes = 1 << 20
)

// ImageAcquirer resolves an image URL into a local asset without failing.
type ImageAcquirer interface {
	Acquire(ctx context.Context, url string) *models.ImageAsset
}

// Handler serves the render endpoint: download, then compose.
type Handler struct {
	config     *Config
	downloader ImageAcquirer
	compositor *Compositor
	errors     *errors.ErrorHandler
	logger     logger.Logger
	tracer     trace.Tracer
}

func NewHandler(cfg *Config, downloader ImageAcquirer, compositor *Compositor, log logger.Logger, tracer trace.Tracer) *Handler {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("apply-phrase")
	}
	l := log.WithFields(map[string]interface{}{"route": Route})
	return &Handler{
		config:     cfg,
		downloader: downloader,
		compositor: compositor,
		errors:     errors.NewErrorHandler(l),
		logger:     l,
		tracer:     tracer,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.errors.WriteHTTPError(w, r, errors.NewInvalidRequestError(fmt.Sprintf("read body: %v", err)))
		return
	}

	input, err := h.ParseInput(body)
	if err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}

	rendered, err := h.Execute(r.Context(), input)
	if err != nil {
		if stderrors.Is(err, errors.ErrMissingLocalAsset) {
			h.errors.WriteHTTPText(w, r, err, errors.NewMissingLocalAssetError("").Message)
			return
		}
		h.errors.WriteHTTPError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Bytes)))
	w.WriteHeader(rendered.StatusCode)
	_, _ = w.Write(rendered.Bytes)
}

// ParseInput applies the request defaults. An absent or falsy JSON body
// (null, {}, [], false, 0, "") means {"phrase": DefaultPhrase}; within an
// object a missing phrase or imageUrl gets its own placeholder.
func (h *Handler) ParseInput(body []byte) (*Input, error) {
	var doc interface{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("malformed JSON: %v", err))
		}
	}

	obj, _ := doc.(map[string]interface{})
	switch {
	case isFalsy(doc):
		obj = map[string]interface{}{"phrase": h.config.DefaultPhrase}
	default:
		if result := validation.RenderRequestSchema.Validate(doc); !result.Valid {
			return nil, errors.NewInvalidRequestError(result.Summary())
		}
	}

	input := &Input{
		Phrase:   h.config.MissingPhrase,
		ImageURL: h.config.MissingImageURL,
	}
	if phrase, ok := obj["phrase"].(string); ok {
		input.Phrase = phrase
	}
	if imageURL, ok := obj["imageUrl"].(string); ok {
		input.ImageURL = imageURL
	}
	return input, nil
}

func isFalsy(doc interface{}) bool {
	switch v := doc.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	}
	return false
}

// Execute downloads the image and captions it. A downloaded input is removed
// once the rendered bytes are in memory; the fallback asset is never removed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.RenderedImage, error) {
	ctx, span := h.tracer.Start(ctx, "applyPhraseToPicture")
	defer span.End()

	span.SetAttributes(
		attribute.String("phrase", input.Phrase),
		attribute.String("imageUrl", input.ImageURL),
	)

	asset := h.downloader.Acquire(ctx, input.ImageURL)
	span.SetAttributes(attribute.Bool("image.degraded", asset.Degraded))
	if !asset.Degraded {
		defer func() {
			if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
				h.logger.Warn("failed to remove downloaded image", map[string]interface{}{
					"path":  asset.Path,
					"error": err.Error(),
				})
			}
		}()
	}

	rendered, err := h.compositor.Compose(ctx, asset.Path, input.Phrase)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	h.logger.Info("picture rendered", map[string]interface{}{
		"imageUrl": input.ImageURL,
		"degraded": asset.Degraded,
		"bytes":    len(rendered.Bytes),
	})
	return rendered, nil
}
