package conversation

import (
	"sort"
	"sync"
)

// Registry maps caller-chosen session keys to History instances. Entries are
// created lazily and never evicted; the owner's lifetime bounds the registry.
//
// The registry guards its own map. It does not serialize use of the
// histories it hands out.
type Registry struct {
	mu       sync.Mutex
	opts     []Option
	sessions map[string]*History
}

// NewRegistry creates an empty Registry. opts are applied to every History
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*History),
	}
}

// GetOrCreate returns the History registered under key, creating it on
// first reference.
func (r *Registry) GetOrCreate(key string) *History {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[key]
	if !ok {
		h = New(r.opts...)
		r.sessions[key] = h
	}
	return h
}

// Get returns the History registered under key, if any.
func (r *Registry) Get(key string) (*History, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[key]
	return h, ok
}

// Put registers h under key, replacing any existing entry.
func (r *Registry) Put(key string, h *History) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = h
}

// NewHistory creates an unregistered History with the registry's options.
func (r *Registry) NewHistory() *History {
	return New(r.opts...)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
