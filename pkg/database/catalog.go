package database

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Catalog manages a collection of backend factories by name
type Catalog struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewCatalog creates a new empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
	}
}

// DefaultCatalog returns a catalog with the jsonl, memory and sqlite backends.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register(NewJSONLFactory())
	c.Register(NewMemoryFactory())
	c.Register(NewSQLiteFactory())
	return c
}

// Register adds a factory under its name, replacing a previous one
func (c *Catalog) Register(f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[f.Name()] = f
}

// Get retrieves a factory by name
func (c *Catalog) Get(name string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "backend '%s' not found", name)
	}
	return f, nil
}

// Names returns the registered backend names, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for n := range c.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open creates a database with the named backend.
func (c *Catalog) Open(ctx context.Context, backend string, args Args) (Database, error) {
	f, err := c.Get(backend)
	if err != nil {
		return nil, err
	}
	return f.CreateDatabase(ctx, args)
}
