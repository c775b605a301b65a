// internal/services/meminator/apply-phrase/compositor.go
package applyphrase

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/metrics"
	"meminator/internal/models"
	downloadimage "meminator/internal/services/meminator/download-image"
)

const ContentTypePNG = "image/png"

// Compositor captions a local image through an Annotator.
type Compositor struct {
	config    *Config
	annotator Annotator
	logger    logger.Logger
	tracer    trace.Tracer
}

func NewCompositor(cfg *Config, annotator Annotator, log logger.Logger, tracer trace.Tracer) *Compositor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("apply-phrase")
	}
	return &Compositor{
		config:    cfg,
		annotator: annotator,
		logger:    log.WithFields(map[string]interface{}{"component": "compositor"}),
		tracer:    tracer,
	}
}

// Compose renders phrase, upper-cased, onto the image at imagePath. All
// failures are fatal and returned as *errors.StandardError.
func (c *Compositor) Compose(ctx context.Context, imagePath, phrase string) (*models.RenderedImage, error) {
	ctx, span := c.tracer.Start(ctx, "annotate_image")
	defer span.End()

	if _, err := os.Stat(imagePath); err != nil {
		stdErr := errors.NewMissingLocalAssetError(imagePath)
		c.logger.Error(stdErr.Message, map[string]interface{}{"path": imagePath})
		span.SetAttributes(attribute.String("error_message", stdErr.Message))
		span.SetStatus(codes.Error, stdErr.Message)
		return nil, stdErr
	}

	text := strings.ToUpper(phrase)
	output := downloadimage.RandomFilename(c.config.TempDir, imagePath)
	defer os.Remove(output)

	span.SetAttributes(
		attribute.String("input.path", imagePath),
		attribute.String("output.path", output),
		attribute.String("phrase", text),
	)

	start := time.Now()
	err := c.annotator.Annotate(ctx, AnnotateRequest{
		InputPath:  imagePath,
		OutputPath: output,
		Text:       text,
		MaxWidth:   c.config.MaxWidth,
		MaxHeight:  c.config.MaxHeight,
		Gravity:    c.config.Gravity,
		PointSize:  c.config.PointSize,
		Fill:       c.config.Fill,
		Undercolor: c.config.Undercolor,
		Font:       c.config.Font,
	})
	metrics.AnnotationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.toolFailure(span, err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, c.toolFailure(span, fmt.Errorf("read output: %w", err))
	}
	if len(data) == 0 {
		return nil, c.toolFailure(span, fmt.Errorf("empty output %s", output))
	}

	metrics.Annotations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	span.SetAttributes(attribute.Int("output.size", len(data)))

	return &models.RenderedImage{
		Bytes:       data,
		ContentType: ContentTypePNG,
		StatusCode:  http.StatusOK,
	}, nil
}

func (c *Compositor) toolFailure(span trace.Span, err error) *errors.StandardError {
	stdErr := errors.NewExternalToolFailureError(c.config.Binary, err)
	metrics.Annotations.WithLabelValues(metrics.OutcomeFailure).Inc()
	c.logger.Error("failed to annotate image", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
	span.RecordError(stdErr)
	span.SetStatus(codes.Error, stdErr.Message)
	return stdErr
}
