// internal/services/meminator/download-image/downloader_test.go
package downloadimage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"meminator/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

var pngBytes = []byte("\x89PNG\r\n\x1a\nnot-really-a-png")

func createTestConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	fallback := filepath.Join(dir, "BusinessWitch.png")
	require.NoError(t, os.WriteFile(fallback, []byte("fallback-image"), 0o644))
	return &Config{
		TempDir:           dir,
		FallbackImagePath: fallback,
		Timeout:           2 * time.Second,
	}
}

func newTestDownloader(t *testing.T, cfg *Config) (*Downloader, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewDownloader(cfg, logger.NewTestLogger(t), tp.Tracer("test")), recorder
}

func imageServer(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

// ==========================
// Core Functionality Tests
// ==========================

func TestDownloader_Acquire_Success(t *testing.T) {
	cfg := createTestConfig(t)
	server := imageServer(t, http.StatusOK, pngBytes)
	d, recorder := newTestDownloader(t, cfg)

	asset := d.Acquire(context.Background(), server.URL+"/cats/tabby.jpg")

	require.NotNil(t, asset)
	assert.False(t, asset.Degraded)
	assert.Equal(t, cfg.TempDir, filepath.Dir(asset.Path))
	assert.True(t, strings.HasSuffix(asset.Path, ".jpg"), asset.Path)
	assert.Equal(t, ".jpg", asset.Extension)
	assert.Equal(t, int64(len(pngBytes)), asset.Size)

	data, err := os.ReadFile(asset.Path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "download_image", spans[0].Name())
	branch, _ := spanAttr(spans[0], "branch")
	assert.Equal(t, BranchSuccess, branch)
	status, _ := spanAttr(spans[0], "response.status_code")
	assert.Equal(t, "200", status)
}

func TestDownloader_Acquire_NoExtension(t *testing.T) {
	cfg := createTestConfig(t)
	server := imageServer(t, http.StatusOK, pngBytes)
	d, _ := newTestDownloader(t, cfg)

	// httptest URLs contain dots in the host; the path has none.
	asset := d.Acquire(context.Background(), server.URL+"/random")

	require.False(t, asset.Degraded)
	assert.Empty(t, asset.Extension)
	assert.Len(t, filepath.Base(asset.Path), 32)
}

// ==========================
// Fallback Tests
// ==========================

func TestDownloader_Acquire_Non200UsesFallback(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusNoContent} {
		cfg := createTestConfig(t)
		server := imageServer(t, status, []byte("nope"))
		d, recorder := newTestDownloader(t, cfg)

		asset := d.Acquire(context.Background(), server.URL+"/missing.png")

		assert.True(t, asset.Degraded)
		assert.Equal(t, cfg.FallbackImagePath, asset.Path)
		assert.Equal(t, int64(len("fallback-image")), asset.Size)

		entries, err := os.ReadDir(cfg.TempDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "only the fallback asset should exist")

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		branch, _ := spanAttr(spans[0], "branch")
		assert.Equal(t, BranchFallback, branch)
	}
}

func TestDownloader_Acquire_TransportFailureUsesFallback(t *testing.T) {
	cfg := createTestConfig(t)
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	d, _ := newTestDownloader(t, cfg)

	asset := d.Acquire(context.Background(), url+"/gone.png")
	assert.True(t, asset.Degraded)
	assert.Equal(t, cfg.FallbackImagePath, asset.Path)
}

func TestDownloader_Acquire_UnparseableURLUsesFallback(t *testing.T) {
	cfg := createTestConfig(t)
	d, _ := newTestDownloader(t, cfg)

	asset := d.Acquire(context.Background(), "http://missing.booo/no-url-here.png\x7f")
	assert.True(t, asset.Degraded)
}

func TestDownloader_Acquire_TimeoutUsesFallback(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Timeout = 50 * time.Millisecond
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	d, _ := newTestDownloader(t, cfg)
	asset := d.Acquire(context.Background(), server.URL+"/slow.gif")

	assert.True(t, asset.Degraded)
}

func TestDownloader_Acquire_UnwritableTempDirUsesFallback(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.TempDir = filepath.Join(cfg.TempDir, "does", "not", "exist")
	server := imageServer(t, http.StatusOK, pngBytes)
	d, _ := newTestDownloader(t, cfg)

	asset := d.Acquire(context.Background(), server.URL+"/ok.png")
	assert.True(t, asset.Degraded)
}

// ==========================
// Filename Tests
// ==========================

func TestExtension(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"http://images.example/cat.jpg", ".jpg"},
		{"http://images.example/cat.tar.gz", ".gz"},
		{"noextension", ""},
		{"http://images.example/random", ""},
		{"/tmp/abc123.png", ".png"},
		{`C:\images.dir\cat`, ""},
		{"trailing.", "."},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.source))
		})
	}
}

func TestRandomFilename_UniqueUnderConcurrency(t *testing.T) {
	const workers = 64
	const perWorker = 50

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, RandomFilename("/tmp", "http://images.example/same.png"))
			}
			mu.Lock()
			for _, name := range local {
				seen[name] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	for name := range seen {
		assert.True(t, strings.HasPrefix(name, "/tmp/"))
		assert.True(t, strings.HasSuffix(name, ".png"))
		assert.NotContains(t, filepath.Base(name), "-")
	}
}

func TestDownloader_Acquire_ConcurrentSameURL(t *testing.T) {
	cfg := createTestConfig(t)
	server := imageServer(t, http.StatusOK, pngBytes)
	d, _ := newTestDownloader(t, cfg)

	const n = 20
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i] = d.Acquire(context.Background(), server.URL+"/same.png").Path
		}(i)
	}
	wg.Wait()

	unique := make(map[string]struct{}, n)
	for _, p := range paths {
		unique[p] = struct{}{}
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, data)
	}
	assert.Len(t, unique, n)
}
