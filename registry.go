package vkdraw

import "sync"

// APIObjectRegistry is a small get-or-create registry for API objects
// keyed by a comparable handle or name. Creation runs under the lock, so
// concurrent callers for the same key observe exactly one create.
type APIObjectRegistry[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

func NewAPIObjectRegistry[K comparable, V any]() *APIObjectRegistry[K, V] {
	return &APIObjectRegistry[K, V]{entries: make(map[K]V)}
}

// GetOrCreate returns the entry for key, calling create when absent. A
// create error leaves the registry unchanged.
func (r *APIObjectRegistry[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	r.entries[key] = v
	return v, nil
}

// Get returns the entry for key without creating.
func (r *APIObjectRegistry[K, V]) Get(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	return v, ok
}

// Delete removes an entry and returns it for the caller to destroy.
func (r *APIObjectRegistry[K, V]) Delete(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return v, ok
}

// Range calls fn for each entry until fn returns false.
func (r *APIObjectRegistry[K, V]) Range(fn func(K, V) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.entries {
		if !fn(k, v) {
			return
		}
	}
}

// Len returns the entry count.
func (r *APIObjectRegistry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
