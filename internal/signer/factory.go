package signer

import (
	"sync"
)

// Factory selects and caches the process-wide provider instance. The
// remote-backed provider is chosen when a live signing credential is
// configured; otherwise the in-memory mock serves local development.
// Construction happens once; repeated calls return the same instance.
type Factory struct {
	mu       sync.Mutex
	live     bool
	deps     ServiceDeps
	provider Provider
}

// NewFactory builds a factory. live selects the remote-backed provider;
// deps are only used on first construction.
func NewFactory(live bool, deps ServiceDeps) *Factory {
	return &Factory{live: live, deps: deps}
}

// Provider returns the singleton provider, constructing it on first use.
func (f *Factory) Provider() Provider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.provider == nil {
		if f.live {
			f.provider = NewService(f.deps)
		} else {
			f.provider = NewMockProvider()
		}
	}
	return f.provider
}

// ResetForTesting drops the cached instance so the next Provider call
// constructs a fresh one. Test isolation only; production code paths never
// call this.
func (f *Factory) ResetForTesting() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provider = nil
}
