// Package functions is a registry of named server functions callable through
// the backend contract.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/pkg/apperr"
)

// Handler is one server function. The payload is the raw request body; the
// returned value is serialized into the response envelope.
type Handler func(ctx context.Context, principal *auth.Principal, payload json.RawMessage) (any, error)

// Registry holds named handlers. Registration happens at startup; Invoke is
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Handler)}
}

// Register adds a handler under name, replacing any previous one.
func (r *Registry) Register(name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names lists the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// Invoke runs the named function. An unknown name resolves to not_found.
func (r *Registry) Invoke(ctx context.Context, name string, principal *auth.Principal, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("function %q not found", name))
	}
	return fn(ctx, principal, payload)
}
