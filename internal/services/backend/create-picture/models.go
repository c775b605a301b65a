// internal/services/backend/create-picture/models.go
package createpicture

import "meminator/internal/models"

// Result is the outcome of one composition.
type Result struct {
	Image          models.RenderedImage `json:"image"`
	Request        models.RenderRequest `json:"request"`
	ImageDegraded  bool                 `json:"imageDegraded"`
	PhraseDegraded bool                 `json:"phraseDegraded"`
}
