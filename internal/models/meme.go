package models

// RenderRequest is the body sent to the render stage. Both fields are always populated.
type RenderRequest struct {
	Phrase   string `json:"phrase"`
	ImageURL string `json:"imageUrl"`
}

// ImageAsset is a locally available input image.
type ImageAsset struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	// Degraded is true when Path points at the bundled fallback asset.
	Degraded bool `json:"degraded"`
}

// RenderedImage is the terminal artifact handed back to the caller unchanged.
type RenderedImage struct {
	Bytes       []byte `json:"-"`
	ContentType string `json:"contentType"`
	StatusCode  int    `json:"statusCode"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}
