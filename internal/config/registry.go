package config

import "sync/atomic"

// Registry holds the live Config behind an atomic pointer so a reload can
// swap the whole struct in one step without readers observing a
// partially-updated mix of old and new sections. Read-mostly: Get is
// lock-free; Reload is the only writer and is expected to be called
// rarely (e.g. from an operator-triggered settings refresh), never from
// the hot path.
type Registry struct {
	cur atomic.Pointer[Config]
}

// NewRegistry wraps an already-loaded Config in a Registry.
func NewRegistry(cfg *Config) *Registry {
	r := &Registry{}
	r.cur.Store(cfg)
	return r
}

// Get returns the current Config. Callers must not mutate the returned
// value; Reload replaces it wholesale rather than patching fields in
// place.
func (r *Registry) Get() *Config {
	return r.cur.Load()
}

// Reload re-reads configuration from the environment and atomically
// swaps it in, leaving in-flight reads of the previous Config unaffected.
func (r *Registry) Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	r.cur.Store(cfg)
	return nil
}
