// pkg/registry/file.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReadFile parses a registry file without validating its descriptors.
func ReadFile(path string) (*UpstreamFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file UpstreamFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &file, nil
}

// NewFile returns an empty registry file.
func NewFile() *UpstreamFile {
	return &UpstreamFile{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Upstreams:   []Descriptor{},
	}
}

// Find returns the index of the named descriptor or -1.
func (f *UpstreamFile) Find(name string) int {
	for i := range f.Upstreams {
		if f.Upstreams[i].Name == name {
			return i
		}
	}
	return -1
}

// Validate runs the same checks New applies at startup.
func (f *UpstreamFile) Validate() error {
	if len(f.Upstreams) == 0 {
		return fmt.Errorf("registry contains no upstreams")
	}
	_, err := New(f.Upstreams...)
	return err
}

// Save writes the file as indented JSON, creating parent directories.
func (f *UpstreamFile) Save(path string) error {
	f.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
