// Package observability provides hooks for metrics and tracing.
//
// The planning packages never import a metrics backend. They call the hooks
// registered here, which default to no-ops; main registers a real
// implementation (see [PrometheusHooks]) at startup.
//
//	func main() {
//	    observability.SetAccessHooks(observability.NewPrometheusHooks())
//	    // ... run planning
//	}
//
// Libraries emit events around each unit of work:
//
//	start := time.Now()
//	pa, err := gen.Generate(ctx, target)
//	observability.Access().OnGenerate(ctx, "class", len(pa.Points), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Access Hooks
// =============================================================================

// AccessHooks receives events from the pin-access stages.
type AccessHooks interface {
	// OnGenerate records access point generation for one pin. Scope is
	// "class" for instance pins and "io" for block pins.
	OnGenerate(ctx context.Context, scope string, points int, duration time.Duration, err error)

	// OnPatterns records an intra-instance pattern search for one class.
	OnPatterns(ctx context.Context, master string, patterns int, duration time.Duration, err error)

	// OnRowSolve records one solved row cluster.
	OnRowSolve(ctx context.Context, insts int, duration time.Duration, err error)

	// OnBatch records one exported update batch.
	OnBatch(ctx context.Context, updates int, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopAccessHooks is a no-op implementation of AccessHooks.
type NoopAccessHooks struct{}

func (NoopAccessHooks) OnGenerate(context.Context, string, int, time.Duration, error) {}
func (NoopAccessHooks) OnPatterns(context.Context, string, int, time.Duration, error) {}
func (NoopAccessHooks) OnRowSolve(context.Context, int, time.Duration, error)         {}
func (NoopAccessHooks) OnBatch(context.Context, int, error)                           {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	accessHooks AccessHooks = NoopAccessHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetAccessHooks registers custom access hooks.
// This should be called once at application startup before any planning.
func SetAccessHooks(h AccessHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		accessHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Access returns the registered access hooks.
func Access() AccessHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return accessHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	accessHooks = NoopAccessHooks{}
	cacheHooks = NoopCacheHooks{}
}
