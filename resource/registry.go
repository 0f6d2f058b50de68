package resource

import (
	"errors"
	"sort"
	"sync"

	"github.com/kroma-labs/apiwrap-go/apiclient"
)

// ErrModelNotFound is matched by every *ModelNotFoundError.
var ErrModelNotFound = errors.New("model not found")

// ModelNotFoundError is returned when no factory is registered for a name.
type ModelNotFoundError struct {
	Name string
}

func (e *ModelNotFoundError) Error() string {
	return "model not exists: " + e.Name
}

// Is reports whether target is ErrModelNotFound.
func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// Factory builds a model bound to req.
type Factory func(req *apiclient.Request) any

// Registry maps model names to factories. Names are normalized with
// UpperCamelCase, so "order_bot" and "OrderBot" are the same entry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[UpperCamelCase(name)] = f
	return r
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[UpperCamelCase(name)]
	if !ok || f == nil {
		return nil, &ModelNotFoundError{Name: name}
	}
	return f, nil
}

// Names returns the normalized names of all registered models, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
