// pkg/registry/schema.go
package registry

import "time"

// UpstreamFile is the on-disk JSON form of the registry.
type UpstreamFile struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Upstreams   []Descriptor `json:"upstreams"`
}

// Descriptor names one upstream service, its address and the only method it accepts.
type Descriptor struct {
	Name    string        `json:"name"`
	URL     string        `json:"url"`
	Method  string        `json:"method"`
	Timeout time.Duration `json:"-"`

	TimeoutMillis int `json:"timeoutMs,omitempty"`
}

// AllowsMethod reports whether method is compatible with the descriptor.
func (d Descriptor) AllowsMethod(method string) bool {
	return d.Method == method
}
