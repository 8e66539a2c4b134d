// Package catalog reads the services catalog maintained by the CMS.
// The gateway only consumes it to build AI prompt context; the catalog
// file itself is owned by the admin backend.
package catalog

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Service describes one entry of the services catalog.
type Service struct {
	Name         string   `json:"name"`
	Icon         string   `json:"icon,omitempty"`
	Description  string   `json:"description,omitempty"`
	Details      []string `json:"details,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// Reader provides the current services catalog. Missing or unreadable
// catalogs yield an empty slice, never an error: prompt assembly degrades
// gracefully.
type Reader interface {
	Services() []Service
}

// FileReader reads the catalog JSON file on every call, so admin edits are
// picked up without a restart.
type FileReader struct {
	path string
}

func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

func (r *FileReader) Services() []Service {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read services catalog", "path", r.path, "error", err)
		}
		return nil
	}

	var services []Service
	if err := json.Unmarshal(data, &services); err != nil {
		slog.Warn("failed to parse services catalog", "path", r.path, "error", err)
		return nil
	}
	return services
}

// StaticReader serves a fixed catalog. Used by tests.
type StaticReader []Service

func (r StaticReader) Services() []Service {
	return r
}
