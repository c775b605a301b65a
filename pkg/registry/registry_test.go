package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meminator/internal/common/config"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   []Descriptor
		wantErr string
	}{
		{
			name:  "valid",
			input: []Descriptor{{Name: "image-source", URL: "http://img", Method: "get"}},
		},
		{
			name:    "missing name",
			input:   []Descriptor{{URL: "http://img", Method: "GET"}},
			wantErr: "name is required",
		},
		{
			name:    "missing url",
			input:   []Descriptor{{Name: "render", Method: "POST"}},
			wantErr: "url is required",
		},
		{
			name:    "unsupported method",
			input:   []Descriptor{{Name: "render", URL: "http://r", Method: "PUT"}},
			wantErr: "not supported",
		},
		{
			name: "duplicate",
			input: []Descriptor{
				{Name: "render", URL: "http://a", Method: "POST"},
				{Name: "render", URL: "http://b", Method: "POST"},
			},
			wantErr: "registered twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := New(tt.input...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			d, ok := reg.Lookup("image-source")
			require.True(t, ok)
			assert.Equal(t, "GET", d.Method)
		})
	}
}

func TestFromConfig(t *testing.T) {
	reg, err := FromConfig(map[string]config.UpstreamConfig{
		"image-source":  {URL: "http://image-picker:10116/imageUrl", Method: "GET", Timeout: 500},
		"phrase-source": {URL: "http://phrase-picker:10118/phrase", Method: "GET", Timeout: 500},
		"render":        {URL: "http://meminator:10117/applyPhraseToPicture", Method: "POST", Timeout: 2000},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"image-source", "phrase-source", "render"}, reg.Names())

	render, ok := reg.Lookup("render")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, render.Timeout)
	assert.True(t, render.AllowsMethod("POST"))
	assert.False(t, render.AllowsMethod("GET"))

	_, ok = reg.Lookup("meminator")
	assert.False(t, ok)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upstreams.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "1",
		"upstreams": [
			{"name": "image-source", "url": "http://localhost:10116/imageUrl", "method": "GET", "timeoutMs": 250},
			{"name": "render", "url": "http://localhost:10117/applyPhraseToPicture", "method": "POST"}
		]
	}`), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	img, ok := reg.Lookup("image-source")
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, img.Timeout)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRegistry_Require(t *testing.T) {
	reg, err := New(
		Descriptor{Name: config.UpstreamImageSource, URL: "http://img", Method: "GET"},
		Descriptor{Name: config.UpstreamPhraseSource, URL: "http://phrase", Method: "GET"},
	)
	require.NoError(t, err)

	assert.NoError(t, reg.Require(config.UpstreamImageSource, config.UpstreamPhraseSource))

	err = reg.Require(config.RequiredUpstreams...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required upstreams: render")
}
