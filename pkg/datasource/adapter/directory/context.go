// Package directory resolves data sources bound in a naming context.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNameNotBound is returned by a Context when nothing is bound to the name.
	ErrNameNotBound = errors.New("name not bound")
	// ErrAlreadyBound is returned by Bind when the name is taken.
	ErrAlreadyBound = errors.New("name already bound")
)

// Context is the naming service client the directory back end looks names up in.
type Context interface {
	// Lookup returns the object bound to name, or an error wrapping ErrNameNotBound.
	Lookup(ctx context.Context, name string) (interface{}, error)
}

// MapContext is an in-memory naming context. It is safe for concurrent use.
type MapContext struct {
	mu       sync.RWMutex
	bindings map[string]interface{}
	owned    map[string]*sql.DB
}

// NewMapContext creates an empty MapContext.
func NewMapContext() *MapContext {
	return &MapContext{
		bindings: make(map[string]interface{}),
		owned:    make(map[string]*sql.DB),
	}
}

// Bind binds obj to name. It fails with ErrAlreadyBound if name is taken.
func (m *MapContext) Bind(name string, obj interface{}) error {
	if err := checkBinding(name, obj); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, name)
	}
	m.bindings[name] = obj
	return nil
}

// Rebind binds obj to name, replacing any existing binding.
func (m *MapContext) Rebind(name string, obj interface{}) error {
	if err := checkBinding(name, obj); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[name] = obj
	if db, ok := m.owned[name]; ok && db != obj {
		delete(m.owned, name)
		return db.Close()
	}
	return nil
}

// Unbind removes the binding for name. A pool opened by BindFromConfig is closed.
func (m *MapContext) Unbind(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNameNotBound, name)
	}
	delete(m.bindings, name)
	if db, ok := m.owned[name]; ok {
		delete(m.owned, name)
		return db.Close()
	}
	return nil
}

// List returns the bound names in sorted order.
func (m *MapContext) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.bindings))
	for name := range m.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup implements Context.
func (m *MapContext) Lookup(ctx context.Context, name string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameNotBound, name)
	}
	return obj, nil
}

// Close closes the pools opened by BindFromConfig and removes their bindings.
func (m *MapContext) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result *multierror.Error
	for name, db := range m.owned {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close %s: %w", name, err))
		}
		delete(m.bindings, name)
		delete(m.owned, name)
	}
	return result.ErrorOrNil()
}

func (m *MapContext) bindOwned(name string, db *sql.DB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, name)
	}
	m.bindings[name] = db
	m.owned[name] = db
	return nil
}

func checkBinding(name string, obj interface{}) error {
	if name == "" {
		return errors.New("cannot bind an empty name")
	}
	if isNil(obj) {
		return fmt.Errorf("cannot bind nil to %s", name)
	}
	return nil
}
