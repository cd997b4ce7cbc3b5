package registry

import (
	"errors"
	"fmt"
	"strings"

	"banking-rag/internal/config"
)

// ErrNotFound is returned by Get for an id absent from the registry.
var ErrNotFound = errors.New("datasource not found")

// Registry holds the validated datasource set. Read-only after New; the
// pipeline never mutates it at runtime.
type Registry struct {
	byID  map[string]*config.Datasource
	order []string
}

// New builds a registry from an already validated configuration.
func New(cfg *config.Config) *Registry {
	r := &Registry{byID: make(map[string]*config.Datasource, len(cfg.Datasources))}
	for i := range cfg.Datasources {
		ds := &cfg.Datasources[i]
		r.byID[ds.ID] = ds
		r.order = append(r.order, ds.ID)
	}
	return r
}

func (r *Registry) Get(id string) (*config.Datasource, error) {
	ds, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return ds, nil
}

// All returns the datasources in configuration order.
func (r *Registry) All() []*config.Datasource {
	out := make([]*config.Datasource, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the known datasource ids in configuration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Has reports whether id names a known datasource, by exact match only.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Describe renders one line per datasource for the routing instruction.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, id := range r.order {
		ds := r.byID[id]
		desc := ds.Description
		if desc == "" {
			desc = ds.DisplayName
		}
		fmt.Fprintf(&b, "- '%s': %s\n", id, desc)
	}
	return b.String()
}
