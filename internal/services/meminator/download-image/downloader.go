// internal/services/meminator/download-image/downloader.go
package downloadimage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/metrics"
	"meminator/internal/models"
)

const (
	BranchSuccess  = "success"
	BranchFallback = "fallback"
)

// Downloader turns a remote image URL into a local file. It never fails:
// anything other than a 200 yields the bundled fallback asset.
type Downloader struct {
	config     *Config
	httpClient *http.Client
	logger     logger.Logger
	tracer     trace.Tracer
}

func NewDownloader(cfg *Config, log logger.Logger, tracer trace.Tracer) *Downloader {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("download-image")
	}
	return &Downloader{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     log.WithFields(map[string]interface{}{"component": "downloader"}),
		tracer:     tracer,
	}
}

// Acquire fetches url into a freshly named file under the temp root.
func (d *Downloader) Acquire(ctx context.Context, url string) *models.ImageAsset {
	ctx, span := d.tracer.Start(ctx, "download_image")
	defer span.End()

	span.SetAttributes(attribute.String("image.url", url))

	dest := RandomFilename(d.config.TempDir, url)
	status, size, err := d.fetch(ctx, url, dest)
	if status != 0 {
		span.SetAttributes(attribute.Int("response.status_code", status))
	}

	if err != nil {
		stdErr := errors.NewDownloadFailureError(url, status, err)
		d.logger.Warn("image download failed, using fallback asset", map[string]interface{}{
			"url":          url,
			"statusCode":   status,
			"errorCode":    string(stdErr.Code),
			"details":      stdErr.Details,
			"fallbackPath": d.config.FallbackImagePath,
		})
		span.SetAttributes(
			attribute.String("branch", BranchFallback),
			attribute.String("fallback.filename", d.config.FallbackImagePath),
		)
		metrics.ImageDownloads.WithLabelValues(BranchFallback).Inc()
		return d.fallback()
	}

	span.SetAttributes(
		attribute.String("branch", BranchSuccess),
		attribute.String("random.filename", dest),
	)
	metrics.ImageDownloads.WithLabelValues(BranchSuccess).Inc()
	d.logger.Debug("image downloaded", map[string]interface{}{
		"url":  url,
		"path": dest,
		"size": size,
	})

	return &models.ImageAsset{
		Path:      dest,
		Size:      size,
		Extension: filepath.Ext(dest),
	}
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) (int, int64, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return resp.StatusCode, 0, fmt.Errorf("create %s: %w", dest, err)
	}

	size, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return resp.StatusCode, 0, fmt.Errorf("write %s: %w", dest, err)
	}

	return resp.StatusCode, size, nil
}

func (d *Downloader) fallback() *models.ImageAsset {
	asset := &models.ImageAsset{
		Path:      d.config.FallbackImagePath,
		Extension: filepath.Ext(d.config.FallbackImagePath),
		Degraded:  true,
	}
	if info, err := os.Stat(d.config.FallbackImagePath); err == nil {
		asset.Size = info.Size()
	}
	return asset
}

// RandomFilename returns <tempDir>/<uuid without dashes><ext>, where ext is
// everything from the last "." in source. A candidate containing a path
// separator is discarded.
func RandomFilename(tempDir, source string) string {
	return filepath.Join(tempDir, strings.ReplaceAll(uuid.NewString(), "-", "")+Extension(source))
}

// Extension returns the suffix of source starting at its last ".", or "".
func Extension(source string) string {
	idx := strings.LastIndex(source, ".")
	if idx < 0 {
		return ""
	}
	ext := source[idx:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
