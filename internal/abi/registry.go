// Package abi is the Go side of the C library boundary: foreign callers hold
// opaque integer handles, never pointers, and every call is resolved through
// a Registry.
package abi

import (
	"sync"
)

// Handle identifies a registered value. Zero is never issued and always
// means "no value".
type Handle uint64

// Registry maps handles to values. It is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]*entry[T]
}

type entry[T any] struct {
	value   T
	lastErr string
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[Handle]*entry[T])}
}

// Register stores v and returns its handle. Handles are not reused.
func (r *Registry[T]) Register(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.entries[h] = &entry[T]{value: v}
	return h
}

// Lookup returns the value for h.
func (r *Registry[T]) Lookup(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Release removes h and returns its value. Later calls with h behave as if
// it was never issued.
func (r *Registry[T]) Release(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		var zero T
		return zero, false
	}
	delete(r.entries, h)
	return e.value, true
}

// SetError records the last error seen on h. A nil err clears it. Unknown
// handles are ignored.
func (r *Registry[T]) SetError(h Handle, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return
	}
	if err == nil {
		e.lastErr = ""
		return
	}
	e.lastErr = err.Error()
}

// LastError returns the message recorded by SetError, or "" if there is none.
func (r *Registry[T]) LastError(h Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok {
		return e.lastErr
	}
	return ""
}

// Len returns the number of live handles.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
