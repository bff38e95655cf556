// Package registry provides the ordered, name-keyed set of vendor extractors.
package registry

import (
	"errors"
	"fmt"

	"github.com/ArionMiles/receiptor/pkg/api"
)

var (
	// ErrExtractorNotFound is returned when no extractor is registered under a name.
	ErrExtractorNotFound = errors.New("extractor not found")

	// ErrExtractorExists is returned when registering a duplicate name.
	ErrExtractorExists = errors.New("extractor already registered")
)

// Registry keeps extractors in registration order. Order matters: vendors are
// processed, and summary entries appended, in this order.
type Registry struct {
	order  []string
	byName map[string]api.Extractor
}

// New creates a registry holding the given extractors.
func New(extractors ...api.Extractor) (*Registry, error) {
	r := &Registry{byName: make(map[string]api.Extractor)}
	for _, ext := range extractors {
		if err := r.Register(ext); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an extractor at the end of the order.
func (r *Registry) Register(ext api.Extractor) error {
	name := ext.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrExtractorExists, name)
	}
	r.byName[name] = ext
	r.order = append(r.order, name)
	return nil
}

// Get returns an extractor by name.
func (r *Registry) Get(name string) (api.Extractor, error) {
	ext, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrExtractorNotFound, name)
	}
	return ext, nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every extractor in order.
func (r *Registry) All() []api.Extractor {
	all := make([]api.Extractor, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.byName[name])
	}
	return all
}

// Select returns the extractors named in names, in registry order. An empty names
// selects everything. Unknown names are an error.
func (r *Registry) Select(names []string) ([]api.Extractor, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}

	selected := make([]api.Extractor, 0, len(wanted))
	for _, name := range r.order {
		if wanted[name] {
			selected = append(selected, r.byName[name])
		}
	}
	return selected, nil
}

// DisplayName returns the display name for an extractor, or "Unknown" when the name is
// not registered.
func (r *Registry) DisplayName(name string) string {
	ext, exists := r.byName[name]
	if !exists {
		return "Unknown"
	}
	if dn := ext.DisplayName(); dn != "" {
		return dn
	}
	return ext.Name()
}
