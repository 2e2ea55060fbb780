package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"convo/core"
	"convo/logging"
	"convo/model"
)

// Provider is a source of externally discovered tools, typically a remote
// tool server. Discovery failures are soft: a failing provider contributes
// no tools but never prevents the runtime from starting.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Discover lists the tools the provider currently offers.
	Discover(ctx context.Context) ([]Tool, error)
}

// Registry is the named collection of tools exposed to the model. Local
// tools are registered directly; remote tools come in through
// DiscoverProviders. Once frozen the tool surface is immutable for the
// registry's lifetime.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	frozen bool
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		tools:  map[string]Tool{},
		logger: logger,
	}
}

// Register adds a tool. Duplicate names are refused with DuplicateToolError
// so a misconfiguration cannot silently shadow a tool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %q: %w", t.Name(), core.ErrRegistryFrozen)
	}
	if _, exists := r.tools[t.Name()]; exists {
		return &core.DuplicateToolError{Name: t.Name()}
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	r.logger.Debug("tool.registered", "tool", t.Name())

	return nil
}

// MustRegister registers a tool and panics on failure. Intended for static
// wiring at startup.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, &core.UnknownToolError{Name: name}
	}

	return t, nil
}

// Names returns all registered tool names sorted lexicographically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Freeze makes the tool surface immutable. Subsequent Register calls fail
// with ErrRegistryFrozen.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
}

// Descriptors renders the registered tools as model tool definitions in
// deterministic (sorted) order, so the same registry always presents the
// same surface to the model.
func (r *Registry) Descriptors() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// DiscoverProviders runs discovery against all providers concurrently and
// registers what they return. A provider that fails or returns nothing is
// logged and skipped; only registration conflicts surface as errors.
func (r *Registry) DiscoverProviders(ctx context.Context, providers ...Provider) error {
	results := make([][]Tool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			tools, err := p.Discover(gctx)
			if err != nil {
				r.logger.Warn("tool.discovery.failed", "provider", p.Name(), "error", err.Error())
				return nil
			}
			r.logger.Info("tool.discovery.ok", "provider", p.Name(), "tools", len(tools))
			results[i] = tools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, tools := range results {
		for _, t := range tools {
			if err := r.Register(t); err != nil {
				return err
			}
		}
	}

	return nil
}
