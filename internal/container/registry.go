// Package container holds the process-wide resource factory registry. It maps
// a resource kind to a constructor and a scope, and is the only place that
// decides whether a resolve returns a shared instance or a fresh one.
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/pkg/logger"
)

// Scope declares an entry's instance lifetime.
type Scope string

const (
	// ScopeSingleton constructs at most once per process, lazily, and caches.
	ScopeSingleton Scope = "singleton"
	// ScopePerRequest constructs a fresh instance on every resolve.
	ScopePerRequest Scope = "per-request"
)

// Constructor builds a resource instance. Per-request constructors receive the
// request's context; the singleton constructor receives the context of
// whichever resolve arrives first.
type Constructor func(ctx context.Context) (interface{}, error)

type entry struct {
	scope Scope
	build Constructor

	once     sync.Once
	instance interface{}
	err      error
}

// Registry is created once at process start and treated as read-only after
// startup registration; construction order is: config, logger, registry,
// registrations, Validate, then serving.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     *logger.Logger
}

// New creates an empty registry.
func New(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault("container")
	}
	return &Registry{entries: make(map[string]*entry), log: log}
}

// Register adds a kind. Registering the same kind twice is a programming
// error and fails loudly.
func (r *Registry) Register(kind string, scope Scope, build Constructor) error {
	if build == nil {
		return fmt.Errorf("register %q: nil constructor", kind)
	}
	if scope != ScopeSingleton && scope != ScopePerRequest {
		return fmt.Errorf("register %q: unknown scope %q", kind, scope)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[kind]; exists {
		return fmt.Errorf("register %q: already registered", kind)
	}
	r.entries[kind] = &entry{scope: scope, build: build}
	return nil
}

// Validate checks that every kind the application will resolve is registered.
// Called at startup so an unknown kind fails the boot, not a request.
func (r *Registry) Validate(kinds ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, kind := range kinds {
		if _, ok := r.entries[kind]; !ok {
			return errors.UnknownResource(kind)
		}
	}
	return nil
}

// Resolve returns an instance for the kind. Singleton construction is
// serialized; once built, subsequent resolutions read the cached instance
// without further synchronization cost. Per-request kinds always construct.
func (r *Registry) Resolve(ctx context.Context, kind string) (interface{}, error) {
	r.mu.RLock()
	e, ok := r.entries[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.UnknownResource(kind)
	}

	switch e.scope {
	case ScopeSingleton:
		e.once.Do(func() {
			e.instance, e.err = e.build(ctx)
			if e.err != nil {
				r.log.WithError(e.err).Errorf("constructing singleton %q failed", kind)
			}
		})
		return e.instance, e.err
	default:
		return e.build(ctx)
	}
}

// Resolve is the typed counterpart of Registry.Resolve.
func Resolve[T any](ctx context.Context, r *Registry, kind string) (T, error) {
	var zero T
	raw, err := r.Resolve(ctx, kind)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q has type %T, want %T", kind, raw, zero)
	}
	return typed, nil
}
