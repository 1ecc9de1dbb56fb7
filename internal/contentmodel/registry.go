// Package contentmodel holds the registry of object types known to the
// index data service and the content models each of them declares.
package contentmodel

import (
	"fmt"
	"slices"
	"sync"
)

// ObjectType is a kind of repository object the service knows about.
type ObjectType interface {
	Name() string
}

// ContentModelDeclarer is implemented by object types that declare the
// content models an object must carry to be of that type. Only declarers
// contribute to the discovery catalog.
type ContentModelDeclarer interface {
	ContentModels() []string
}

// Registry is the set of object types, kept in registration order.
// It is built at startup and passed to whatever needs it.
type Registry struct {
	mu    sync.RWMutex
	types []ObjectType
	names map[string]struct{}
}

// NewRegistry creates a registry holding the given types.
func NewRegistry(types ...ObjectType) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{})}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an object type. Names must be unique.
func (r *Registry) Register(t ObjectType) error {
	if t == nil {
		return fmt.Errorf("object type cannot be nil")
	}
	if t.Name() == "" {
		return fmt.Errorf("object type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[t.Name()]; exists {
		return fmt.Errorf("object type %q is already registered", t.Name())
	}
	r.names[t.Name()] = struct{}{}
	r.types = append(r.types, t)
	return nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.types)
}

// Catalog returns one group per type declaring at least one content model,
// each group in the type's declared order. It is computed on every call.
func (r *Registry) Catalog() [][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([][]string, 0, len(r.types))
	for _, t := range r.types {
		models := declaredModels(t)
		if len(models) == 0 {
			continue
		}
		catalog = append(catalog, models)
	}
	return catalog
}

// BestMatch returns the type whose declared content models are all present
// in models, preferring the type declaring the most of them. Ties go to the
// earlier registration. It returns nil when no type matches.
func (r *Registry) BestMatch(models []string) ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      ObjectType
		bestCount int
	)
	for _, t := range r.types {
		declared := declaredModels(t)
		if len(declared) == 0 || len(declared) <= bestCount {
			continue
		}
		if containsAll(models, declared) {
			best, bestCount = t, len(declared)
		}
	}
	return best
}

func declaredModels(t ObjectType) []string {
	declarer, ok := t.(ContentModelDeclarer)
	if !ok {
		return nil
	}
	return slices.Clone(declarer.ContentModels())
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
