// internal/services/backend/create-picture/aggregator_test.go
package createpicture

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"meminator/internal/common/config"
	"meminator/internal/common/errors"
	"meminator/internal/common/logger"
	"meminator/internal/common/upstream"
	"meminator/internal/models"
)

// ==========================
// Test Doubles
// ==========================

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, service, method string, body interface{}) *upstream.FetchResult {
	args := m.Called(service, method, body)
	return args.Get(0).(*upstream.FetchResult)
}

// ==========================
// Test Helper Functions
// ==========================

const fallbackURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/8/8a/Banana-Single.jpg/1360px-Banana-Single.jpg"

var picture = []byte("\x89PNG\r\n\x1a\nfinal-picture")

func createTestConfig() *Config {
	return LoadConfig(config.FallbackConfig{})
}

func ok(payload map[string]interface{}) *upstream.FetchResult {
	return &upstream.FetchResult{OK: true, Payload: payload, StatusCode: http.StatusOK, ContentType: "application/json"}
}

func failed(service string, status int) *upstream.FetchResult {
	return &upstream.FetchResult{
		OK:         false,
		StatusCode: status,
		Err:        errors.NewTransportError(service, status, stderrors.New("boom")),
	}
}

func rendered() *upstream.FetchResult {
	return &upstream.FetchResult{
		OK:          true,
		Payload:     map[string]interface{}{},
		Body:        picture,
		ContentType: "image/png",
		StatusCode:  http.StatusOK,
	}
}

func newTestAggregator(t *testing.T, fetcher upstream.Fetcher) (*Aggregator, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewAggregator(createTestConfig(), fetcher, logger.NewTestLogger(t), tp.Tracer("test")), recorder
}

func spanNamed(recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func attrValue(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

// ==========================
// Core Functionality Tests
// ==========================

func TestAggregator_Execute_AllHealthy(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"imageUrl": "http://images.example/cat.jpg"}))
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"phrase": "such wow"}))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, models.RenderRequest{
		Phrase:   "SUCH WOW",
		ImageURL: "http://images.example/cat.jpg",
	}).Return(rendered())

	agg, recorder := newTestAggregator(t, fetcher)
	result, err := agg.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, picture, result.Image.Bytes)
	assert.Equal(t, "image/png", result.Image.ContentType)
	assert.Equal(t, http.StatusOK, result.Image.StatusCode)
	assert.False(t, result.ImageDegraded)
	assert.False(t, result.PhraseDegraded)
	assert.Equal(t, "SUCH WOW", result.Request.Phrase)
	fetcher.AssertExpectations(t)

	imageSpan := spanNamed(recorder, "fetch_from_image_picker")
	require.NotNil(t, imageSpan)
	assert.Equal(t, "success", attrValue(imageSpan, "image_result"))
	assert.Equal(t, "http://images.example/cat.jpg", attrValue(imageSpan, "image_url"))
}

func TestAggregator_Execute_BothSourcesFail(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(failed(config.UpstreamImageSource, http.StatusServiceUnavailable))
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(failed(config.UpstreamPhraseSource, 0))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, models.RenderRequest{
		Phrase:   "THIS IS SPARTA",
		ImageURL: fallbackURL,
	}).Return(rendered())

	agg, recorder := newTestAggregator(t, fetcher)
	result, err := agg.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, picture, result.Image.Bytes)
	assert.True(t, result.ImageDegraded)
	assert.True(t, result.PhraseDegraded)
	fetcher.AssertExpectations(t)

	imageSpan := spanNamed(recorder, "fetch_from_image_picker")
	require.NotNil(t, imageSpan)
	assert.Equal(t, "fallback", attrValue(imageSpan, "image_result"))
	assert.Equal(t, fallbackURL, attrValue(imageSpan, "image_url"))

	phraseSpan := spanNamed(recorder, "fetch_from_phrase_picker")
	require.NotNil(t, phraseSpan)
	assert.Equal(t, "fallback", attrValue(phraseSpan, "phrase_result"))
	assert.Equal(t, "This is sparta", attrValue(phraseSpan, "phrase"))
}

func TestAggregator_Execute_UnknownServiceDegrades(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(&upstream.FetchResult{Err: errors.NewUnknownUpstreamError(config.UpstreamImageSource)})
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"phrase": "hello"}))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, models.RenderRequest{
		Phrase:   "HELLO",
		ImageURL: fallbackURL,
	}).Return(rendered())

	agg, _ := newTestAggregator(t, fetcher)
	result, err := agg.Execute(context.Background())

	require.NoError(t, err)
	assert.True(t, result.ImageDegraded)
	assert.False(t, result.PhraseDegraded)
	fetcher.AssertExpectations(t)
}

func TestAggregator_Execute_FallbackLogLevels(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(&upstream.FetchResult{Err: errors.NewUnknownUpstreamError(config.UpstreamImageSource)})
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(failed(config.UpstreamPhraseSource, http.StatusBadGateway))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, mock.Anything).Return(rendered())

	core, logs := observer.New(zapcore.InfoLevel)
	agg := NewAggregator(createTestConfig(), fetcher, logger.NewZapAdapter(zap.New(core)), nil)

	_, err := agg.Execute(context.Background())
	require.NoError(t, err)

	misconfigured := logs.FilterMessage("data source misconfigured, using fallback").All()
	require.Len(t, misconfigured, 1)
	assert.Equal(t, zapcore.ErrorLevel, misconfigured[0].Level)
	assert.Equal(t, SourceImage, misconfigured[0].ContextMap()["source"])

	unavailable := logs.FilterMessage("data source unavailable, using fallback").All()
	require.Len(t, unavailable, 1)
	assert.Equal(t, zapcore.WarnLevel, unavailable[0].Level)
	assert.Equal(t, SourcePhrase, unavailable[0].ContextMap()["source"])
}

func TestAggregator_Execute_UnusablePayloadDegrades(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"url": "http://images.example/wrong-key.jpg"}))
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"phrase": 42.0}))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, models.RenderRequest{
		Phrase:   "THIS IS SPARTA",
		ImageURL: fallbackURL,
	}).Return(rendered())

	agg, _ := newTestAggregator(t, fetcher)
	_, err := agg.Execute(context.Background())

	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}

// ==========================
// Render Failure Tests
// ==========================

func TestAggregator_Execute_RenderFailure(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"imageUrl": "http://images.example/cat.jpg"}))
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"phrase": "hi"}))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, mock.Anything).
		Return(failed(config.UpstreamRender, http.StatusInternalServerError))

	agg, recorder := newTestAggregator(t, fetcher)
	result, err := agg.Execute(context.Background())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRenderFailed))
	assert.True(t, stderrors.Is(err, errors.ErrTransport), "cause is preserved")

	span := spanNamed(recorder, "fetch_from_meminator")
	require.NotNil(t, span)
	assert.NotEmpty(t, attrValue(span, "meminator.response"))
}

func TestAggregator_Execute_EmptyRenderBody(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", config.UpstreamImageSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"imageUrl": "http://images.example/cat.jpg"}))
	fetcher.On("Fetch", config.UpstreamPhraseSource, http.MethodGet, nil).
		Return(ok(map[string]interface{}{"phrase": "hi"}))
	fetcher.On("Fetch", config.UpstreamRender, http.MethodPost, mock.Anything).
		Return(&upstream.FetchResult{OK: true, Payload: map[string]interface{}{}, StatusCode: http.StatusOK})

	agg, _ := newTestAggregator(t, fetcher)
	_, err := agg.Execute(context.Background())

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRenderFailed))
}

// ==========================
// Compose Tests
// ==========================

func TestCompose(t *testing.T) {
	cfg := createTestConfig()

	tests := []struct {
		name   string
		phrase map[string]interface{}
		image  map[string]interface{}
		want   models.RenderRequest
	}{
		{
			name:   "disjoint fields",
			phrase: map[string]interface{}{"phrase": "hello"},
			image:  map[string]interface{}{"imageUrl": "http://x/a.png"},
			want:   models.RenderRequest{Phrase: "HELLO", ImageURL: "http://x/a.png"},
		},
		{
			name:   "image fields win on collision",
			phrase: map[string]interface{}{"phrase": "from phrase", "imageUrl": "http://phrase/b.png"},
			image:  map[string]interface{}{"phrase": "from image", "imageUrl": "http://x/a.png"},
			want:   models.RenderRequest{Phrase: "FROM IMAGE", ImageURL: "http://x/a.png"},
		},
		{
			name:   "empty image value does not override",
			phrase: map[string]interface{}{"phrase": "kept"},
			image:  map[string]interface{}{"phrase": "", "imageUrl": "http://x/a.png"},
			want:   models.RenderRequest{Phrase: "KEPT", ImageURL: "http://x/a.png"},
		},
		{
			name:   "non-string values ignored",
			phrase: map[string]interface{}{"phrase": 3.0},
			image:  map[string]interface{}{"imageUrl": true},
			want:   models.RenderRequest{Phrase: "THIS IS SPARTA", ImageURL: fallbackURL},
		},
		{
			name: "nil inputs",
			want: models.RenderRequest{Phrase: "THIS IS SPARTA", ImageURL: fallbackURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.phrase, tt.image, cfg))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.FallbackConfig{ImageURL: "http://x/fallback.png", Phrase: "custom"})
	assert.Equal(t, "http://x/fallback.png", cfg.FallbackImageURL)
	assert.Equal(t, "custom", cfg.FallbackPhrase)

	defaults := LoadConfig(config.FallbackConfig{})
	assert.Equal(t, fallbackURL, defaults.FallbackImageURL)
	assert.Equal(t, "This is sparta", defaults.FallbackPhrase)
}
