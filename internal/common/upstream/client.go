// internal/common/upstream/client.go
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/metrics"
	"meminator/pkg/registry"
)

// FetchResult is the uniform outcome of one upstream call. Payload and Body are
// set iff OK; Err is set iff !OK.
type FetchResult struct {
	OK          bool
	Payload     map[string]interface{}
	Body        []byte
	ContentType string
	StatusCode  int
	Err         *errors.StandardError
}

// Fetcher is the capability the aggregator depends on.
type Fetcher interface {
	Fetch(ctx context.Context, service, method string, body interface{}) *FetchResult
}

// Client performs single HTTP calls against services resolved from a Registry.
type Client struct {
	registry   *registry.Registry
	httpClient *http.Client
	logger     logger.Logger
	tracer     trace.Tracer
}

// NewClient creates a client. A nil tracer disables span recording.
func NewClient(reg *registry.Registry, log logger.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("upstream")
	}
	return &Client{
		registry:   reg,
		httpClient: &http.Client{},
		logger:     log.WithFields(map[string]interface{}{"component": "upstream-client"}),
		tracer:     tracer,
	}
}

// Fetch calls the named upstream. It never panics and never returns a nil
// result: every failure is folded into FetchResult.Err.
func (c *Client) Fetch(ctx context.Context, service, method string, body interface{}) *FetchResult {
	ctx, span := c.tracer.Start(ctx, "fetch_from_"+service, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	method = strings.ToUpper(strings.TrimSpace(method))
	span.SetAttributes(
		attribute.String("service.name", service),
		attribute.String("http.method", method),
	)

	desc, ok := c.registry.Lookup(service)
	if !ok {
		return c.configFailure(span, service, errors.NewUnknownUpstreamError(service))
	}
	if (method != http.MethodGet && method != http.MethodPost) || !desc.AllowsMethod(method) {
		return c.configFailure(span, service, errors.NewUnsupportedMethodError(service, method))
	}
	span.SetAttributes(attribute.String("http.url", desc.URL))

	start := time.Now()
	result := c.do(ctx, desc, method, body)
	metrics.UpstreamRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if result.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.status_code", result.StatusCode))
	}

	if !result.OK {
		metrics.UpstreamRequests.WithLabelValues(service, metrics.OutcomeFailure).Inc()
		c.logger.Error("error fetching data from upstream", map[string]interface{}{
			"service":    service,
			"url":        desc.URL,
			"method":     method,
			"statusCode": result.StatusCode,
			"errorCode":  string(result.Err.Code),
			"details":    result.Err.Details,
		})
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		return result
	}

	metrics.UpstreamRequests.WithLabelValues(service, metrics.OutcomeSuccess).Inc()
	span.AddEvent("Request Successful", trace.WithAttributes(attribute.Int("status_code", result.StatusCode)))
	c.logger.Debug("upstream call succeeded", map[string]interface{}{
		"service":    service,
		"statusCode": result.StatusCode,
		"bytes":      len(result.Body),
	})
	return result
}

func (c *Client) do(ctx context.Context, desc registry.Descriptor, method string, body interface{}) *FetchResult {
	if desc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, desc.Timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if method == http.MethodPost {
		data, err := json.Marshal(body)
		if err != nil {
			return failure(errors.NewTransportError(desc.Name, 0, fmt.Errorf("encode request body: %w", err)))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, desc.URL, reqBody)
	if err != nil {
		return failure(errors.NewTransportError(desc.Name, 0, err))
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failure(errors.NewUpstreamTimeoutError(desc.Name, err))
		}
		return failure(errors.NewTransportError(desc.Name, 0, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return failureWithStatus(errors.NewUpstreamTimeoutError(desc.Name, err), resp.StatusCode)
		}
		return failureWithStatus(errors.NewTransportError(desc.Name, resp.StatusCode, err), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failureWithStatus(
			errors.NewTransportError(desc.Name, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)),
			resp.StatusCode,
		)
	}

	contentType := resp.Header.Get("Content-Type")
	payload := map[string]interface{}{}
	trimmed := bytes.TrimSpace(data)
	switch {
	case isJSON(contentType) && len(trimmed) > 0:
		if err := json.Unmarshal(data, &payload); err != nil {
			return failureWithStatus(
				errors.NewTransportError(desc.Name, resp.StatusCode, fmt.Errorf("decode response body: %w", err)),
				resp.StatusCode,
			)
		}
	case bytes.HasPrefix(trimmed, []byte("{")):
		// Mislabelled JSON, e.g. text/plain. Anything undecodable stays raw.
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			payload = map[string]interface{}{}
		}
	}

	return &FetchResult{
		OK:          true,
		Payload:     payload,
		Body:        data,
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
	}
}

// configFailure handles caller/configuration defects: logged distinctly, still returned as a value.
func (c *Client) configFailure(span trace.Span, service string, err *errors.StandardError) *FetchResult {
	metrics.UpstreamRequests.WithLabelValues(service, metrics.OutcomeConfigError).Inc()
	fields := err.LogFields()
	fields["service"] = service
	c.logger.Error("upstream call rejected: configuration defect", fields)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("Configuration Error", trace.WithAttributes(attribute.String("error.code", string(err.Code))))
	return failure(err)
}

func failure(err *errors.StandardError) *FetchResult {
	return &FetchResult{OK: false, StatusCode: err.StatusCode, Err: err}
}

func failureWithStatus(err *errors.StandardError, status int) *FetchResult {
	err.StatusCode = status
	return &FetchResult{OK: false, StatusCode: status, Err: err}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
