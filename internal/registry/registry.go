// Package registry maps opaque integer handles to open resources for callers that cannot hold
// Go pointers. Handles carry a generation so a closed handle is never confused with a new one
// that reuses its slot.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotFound is returned for unknown, stale or non-positive handles.
var ErrNotFound = errors.New("registry: handle not found")

// Handle identifies a registered value. Valid handles are positive.
type Handle int64

// Invalid is never issued.
const Invalid Handle = -1

const (
	slotMask = 1<<32 - 1
	// maxGeneration keeps gen<<32 within the positive int64 range.
	maxGeneration = 1<<31 - 1
)

func makeHandle(gen uint32, slot int) Handle {
	return Handle(int64(gen)<<32 | int64(slot+1))
}

func (h Handle) split() (gen uint32, slot int) {
	return uint32(uint64(h) >> 32), int(h&slotMask) - 1
}

type entry[T io.Closer] struct {
	gen   uint32
	value T
	used  bool
}

// Registry is a generation-checked slot map. All methods are safe for concurrent use; the
// registered values themselves are not synchronized.
type Registry[T io.Closer] struct {
	mu      sync.Mutex
	entries []entry[T]
	free    []int
	count   int
}

// New returns an empty registry.
func New[T io.Closer]() *Registry[T] {
	return &Registry[T]{}
}

// Insert registers v and returns its handle.
func (r *Registry[T]) Insert(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slot int
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		slot = len(r.entries)
		r.entries = append(r.entries, entry[T]{gen: 1})
	}
	e := &r.entries[slot]
	e.value = v
	e.used = true
	r.count++
	return makeHandle(e.gen, slot)
}

// Get returns the value registered under h.
func (r *Registry[T]) Get(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return e.value, nil
}

// Take unregisters h and returns its value without closing it.
func (r *Registry[T]) Take(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	e, err := r.lookup(h)
	if err != nil {
		return zero, err
	}
	v := e.value
	e.value = zero
	e.used = false
	e.gen++
	if e.gen > maxGeneration {
		e.gen = 1
	}
	_, slot := h.split()
	r.free = append(r.free, slot)
	r.count--
	return v, nil
}

// Remove unregisters h and closes its value. The close happens outside the registry lock.
func (r *Registry[T]) Remove(h Handle) error {
	v, err := r.Take(h)
	if err != nil {
		return err
	}
	return v.Close()
}

// Len returns the number of registered values.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// CloseAll closes and unregisters every value.
func (r *Registry[T]) CloseAll() error {
	r.mu.Lock()
	var handles []Handle
	for slot, e := range r.entries {
		if e.used {
			handles = append(handles, makeHandle(e.gen, slot))
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := r.Remove(h); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry[T]) lookup(h Handle) (*entry[T], error) {
	if h <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, h)
	}
	gen, slot := h.split()
	if slot < 0 || slot >= len(r.entries) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, h)
	}
	e := &r.entries[slot]
	if !e.used || e.gen != gen {
		return nil, fmt.Errorf("%w: %d (stale)", ErrNotFound, h)
	}
	return e, nil
}
