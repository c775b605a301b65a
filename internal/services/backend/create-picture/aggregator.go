// internal/services/backend/create-picture/aggregator.go
package createpicture

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"meminator/internal/common/config"
	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/metrics"
	"meminator/internal/common/upstream"
	"meminator/internal/common/validation"
	"meminator/internal/models"
)

const (
	SourceImage  = "image"
	SourcePhrase = "phrase"

	fieldImageURL = "imageUrl"
	fieldPhrase   = "phrase"
)

// Aggregator fetches an image and a phrase, degrading each independently,
// and asks the render stage to combine them.
type Aggregator struct {
	config  *Config
	fetcher upstream.Fetcher
	logger  logger.Logger
	tracer  trace.Tracer
}

func NewAggregator(cfg *Config, fetcher upstream.Fetcher, log logger.Logger, tracer trace.Tracer) *Aggregator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("create-picture")
	}
	return &Aggregator{
		config:  cfg,
		fetcher: fetcher,
		logger:  log.WithFields(map[string]interface{}{"component": "aggregator"}),
		tracer:  tracer,
	}
}

// Execute runs one composition. Data-source failures never fail the request;
// a render failure always does.
func (a *Aggregator) Execute(ctx context.Context) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "createPicture")
	defer span.End()

	var (
		imageFields, phraseFields     map[string]interface{}
		imageDegraded, phraseDegraded bool
	)

	// Neither fetch returns an error; the group only joins them.
	var g errgroup.Group
	g.Go(func() error {
		imageFields, imageDegraded = a.fetchImage(ctx)
		return nil
	})
	g.Go(func() error {
		phraseFields, phraseDegraded = a.fetchPhrase(ctx)
		return nil
	})
	_ = g.Wait()

	req := Compose(phraseFields, imageFields, a.config)
	span.SetAttributes(
		attribute.String("render.phrase", req.Phrase),
		attribute.String("render.imageUrl", req.ImageURL),
		attribute.Bool("image.degraded", imageDegraded),
		attribute.Bool("phrase.degraded", phraseDegraded),
	)

	rendered, err := a.render(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &Result{
		Image:          *rendered,
		Request:        req,
		ImageDegraded:  imageDegraded,
		PhraseDegraded: phraseDegraded,
	}, nil
}

func (a *Aggregator) fetchImage(ctx context.Context) (map[string]interface{}, bool) {
	return a.fetchSource(ctx, source{
		span:     "fetch_from_image_picker",
		service:  config.UpstreamImageSource,
		name:     SourceImage,
		schema:   validation.ImagePayloadSchema,
		field:    fieldImageURL,
		attr:     "image_url",
		fallback: a.config.FallbackImageURL,
	})
}

func (a *Aggregator) fetchPhrase(ctx context.Context) (map[string]interface{}, bool) {
	return a.fetchSource(ctx, source{
		span:     "fetch_from_phrase_picker",
		service:  config.UpstreamPhraseSource,
		name:     SourcePhrase,
		schema:   validation.PhrasePayloadSchema,
		field:    fieldPhrase,
		attr:     "phrase",
		fallback: a.config.FallbackPhrase,
	})
}

// source describes one degradable data source.
type source struct {
	span     string
	service  string
	name     string
	schema   *validation.Schema
	field    string
	attr     string
	fallback string
}

// fetchSource returns the upstream payload when the call succeeds and the
// payload carries a usable field, otherwise the fallback and true.
func (a *Aggregator) fetchSource(ctx context.Context, src source) (map[string]interface{}, bool) {
	ctx, span := a.tracer.Start(ctx, src.span)
	defer span.End()

	result := a.fetcher.Fetch(ctx, src.service, http.MethodGet, nil)

	reason := ""
	misconfigured := false
	switch {
	case result == nil:
		reason = "no result"
	case !result.OK && result.Err != nil:
		reason = result.Err.Error()
		misconfigured = errors.IsConfigurationError(result.Err)
	case !result.OK:
		reason = "upstream call failed"
	default:
		if check := src.schema.Validate(result.Payload); !check.Valid {
			reason = "unusable payload: " + check.Summary()
		}
	}

	if reason == "" {
		span.SetAttributes(
			attribute.String(src.name+"_result", metrics.OutcomeSuccess),
			attribute.String(src.attr, result.Payload[src.field].(string)),
		)
		return result.Payload, false
	}

	metrics.FallbackSubstitutions.WithLabelValues(src.name).Inc()
	fields := map[string]interface{}{
		"service":  src.service,
		"source":   src.name,
		"reason":   reason,
		"fallback": src.fallback,
	}
	if misconfigured {
		a.logger.Error("data source misconfigured, using fallback", fields)
	} else {
		a.logger.Warn("data source unavailable, using fallback", fields)
	}
	span.SetStatus(codes.Error, "Failed to fetch "+src.name)
	span.SetAttributes(
		attribute.String(src.name+"_result", metrics.OutcomeFallback),
		attribute.String(src.attr, src.fallback),
	)
	return map[string]interface{}{src.field: src.fallback}, true
}

func (a *Aggregator) render(ctx context.Context, req models.RenderRequest) (*models.RenderedImage, error) {
	ctx, span := a.tracer.Start(ctx, "fetch_from_meminator")
	defer span.End()

	result := a.fetcher.Fetch(ctx, config.UpstreamRender, http.MethodPost, req)

	var stdErr *errors.StandardError
	switch {
	case result == nil:
		stdErr = errors.NewRenderFailedError(nil)
	case !result.OK:
		stdErr = errors.NewRenderFailedError(result.Err)
	case len(result.Body) == 0:
		stdErr = errors.NewEmptyRenderBodyError(result.StatusCode)
	}
	if stdErr != nil {
		a.logger.Error(stdErr.Message, stdErr.LogFields())
		span.SetAttributes(attribute.String("meminator.response", stdErr.Details))
		span.SetStatus(codes.Error, stdErr.Message)
		return nil, stdErr
	}

	span.SetAttributes(
		attribute.Int("http.status_code", result.StatusCode),
		attribute.Int("picture.size", len(result.Body)),
	)
	return &models.RenderedImage{
		Bytes:       result.Body,
		ContentType: result.ContentType,
		StatusCode:  result.StatusCode,
	}, nil
}

// Compose merges the phrase-source fields, then the image-source fields, so
// image fields win on collision. Only non-empty strings take part. Missing
// values are filled from the fallbacks and the phrase is upper-cased.
func Compose(phraseFields, imageFields map[string]interface{}, cfg *Config) models.RenderRequest {
	merged := make(map[string]string, 2)
	for _, fields := range []map[string]interface{}{phraseFields, imageFields} {
		for k, v := range fields {
			if s, ok := v.(string); ok && s != "" {
				merged[k] = s
			}
		}
	}

	req := models.RenderRequest{
		Phrase:   merged[fieldPhrase],
		ImageURL: merged[fieldImageURL],
	}
	if req.Phrase == "" {
		req.Phrase = cfg.FallbackPhrase
	}
	if req.ImageURL == "" {
		req.ImageURL = cfg.FallbackImageURL
	}
	req.Phrase = strings.ToUpper(req.Phrase)
	return req
}
