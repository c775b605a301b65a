// internal/services/meminator/apply-phrase/models.go
package applyphrase

// Input is a render request after defaults have been applied.
type Input struct {
	Phrase   string `json:"phrase"`
	ImageURL string `json:"imageUrl"`
}

// AnnotateRequest is everything the external tool needs for one invocation.
type AnnotateRequest struct {
	InputPath  string
	OutputPath string
	Text       string
	MaxWidth   int
	MaxHeight  int
	Gravity    string
	PointSize  int
	Fill       string
	Undercolor string
	Font       string
}
