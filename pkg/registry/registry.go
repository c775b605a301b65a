// pkg/registry/registry.go
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"meminator/internal/common/config"
)

// Registry is the static name → Descriptor table. It is never mutated after construction.
type Registry struct {
	descriptors map[string]Descriptor
}

// New validates descriptors and builds a registry.
func New(descriptors ...Descriptor) (*Registry, error) {
	reg := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}

	for _, d := range descriptors {
		d.Name = strings.TrimSpace(d.Name)
		d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
		if d.Timeout == 0 && d.TimeoutMillis > 0 {
			d.Timeout = time.Duration(d.TimeoutMillis) * time.Millisecond
		}

		if d.Name == "" {
			return nil, fmt.Errorf("upstream name is required")
		}
		if d.URL == "" {
			return nil, fmt.Errorf("upstream %q: url is required", d.Name)
		}
		if d.Method != http.MethodGet && d.Method != http.MethodPost {
			return nil, fmt.Errorf("upstream %q: method %q not supported", d.Name, d.Method)
		}
		if _, exists := reg.descriptors[d.Name]; exists {
			return nil, fmt.Errorf("upstream %q registered twice", d.Name)
		}

		reg.descriptors[d.Name] = d
	}

	return reg, nil
}

// FromConfig builds the registry from the upstreams configuration section.
func FromConfig(upstreams map[string]config.UpstreamConfig) (*Registry, error) {
	descriptors := make([]Descriptor, 0, len(upstreams))
	for name, u := range upstreams {
		descriptors = append(descriptors, Descriptor{
			Name:    name,
			URL:     u.URL,
			Method:  u.Method,
			Timeout: config.GetDuration(u.Timeout),
		})
	}
	return New(descriptors...)
}

// LoadRegistry reads and validates a JSON registry file.
func LoadRegistry(path string) (*Registry, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(file.Upstreams...)
}

// Lookup resolves a logical name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Require fails when any of names is not registered.
func (r *Registry) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := r.descriptors[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required upstreams: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
