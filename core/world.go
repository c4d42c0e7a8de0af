package core

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrResourceExists is returned when inserting a resource kind
// that the World already holds.
var ErrResourceExists = errors.New("resource of this kind already exists")

// World is the host's shared state. It is handed explicitly to every
// subsystem at initialisation and holds at most one resource per kind,
// the kind being the resource's Go type.
//
// Access rules: the subsystem that inserts a resource owns it and is
// the only one allowed to remove it, unless it hands ownership over.
// Lookups are safe from any goroutine. Resources handed out are
// shared, their own types document how they may be read and written.
type World struct {
	mutex     sync.RWMutex
	resources map[reflect.Type]interface{}
}

// NewWorld creates an empty World
func NewWorld() *World {
	return &World{
		resources: make(map[reflect.Type]interface{}),
	}
}

func kindOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Insert adds a resource of kind T. There can only be one
// resource of a kind, a second insert fails with ErrResourceExists.
func Insert[T any](w *World, resource T) error {
	kind := kindOf[T]()
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, ok := w.resources[kind]; ok {
		return fmt.Errorf("%s: %w", kind, ErrResourceExists)
	}
	w.resources[kind] = resource
	return nil
}

// Lookup returns the resource of kind T if present
func Lookup[T any](w *World) (T, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	resource, ok := w.resources[kindOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return resource.(T), true
}

// Remove takes the resource of kind T out of the World
// and returns it, if it was present.
func Remove[T any](w *World) (T, bool) {
	kind := kindOf[T]()
	w.mutex.Lock()
	defer w.mutex.Unlock()
	resource, ok := w.resources[kind]
	if !ok {
		var zero T
		return zero, false
	}
	delete(w.resources, kind)
	return resource.(T), true
}

// Kinds lists the names of the resource kinds currently held
func (w *World) Kinds() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	kinds := make([]string, 0, len(w.resources))
	for k := range w.resources {
		kinds = append(kinds, k.String())
	}
	return kinds
}
