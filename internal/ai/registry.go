package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Provider bound to a concrete model identifier.
type Factory func(ctx context.Context, model string) (Provider, error)

// Registry maps provider names to factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register installs a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[normalize(name)] = f
	r.mu.Unlock()
}

// Get builds a provider for the named backend and model.
func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: no provider registered as %q (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(ctx, model)
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
