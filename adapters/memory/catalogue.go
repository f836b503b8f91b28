package memory

import (
	"context"
	"fmt"
	"sync"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

// Catalogue is an in-memory provisioner.CatalogueGateway.
type Catalogue struct {
	mu      sync.RWMutex
	items   map[string]provisioner.CatalogueItem
	resolve int
	failure error
}

// NewCatalogue creates a catalogue holding items, keyed by their ID.
func NewCatalogue(items ...provisioner.CatalogueItem) *Catalogue {
	c := &Catalogue{items: make(map[string]provisioner.CatalogueItem)}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

// Add stores item under its ID, replacing any previous record.
func (c *Catalogue) Add(item provisioner.CatalogueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

// FailWith makes every later Resolve return err. A nil err clears the failure.
func (c *Catalogue) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

// ResolveCount returns the number of Resolve calls made so far.
func (c *Catalogue) ResolveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolve
}

// Resolve implements provisioner.CatalogueGateway.
func (c *Catalogue) Resolve(_ context.Context, entityID string) (provisioner.CatalogueItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolve++

	if c.failure != nil {
		return provisioner.CatalogueItem{}, c.failure
	}
	item, ok := c.items[entityID]
	if !ok {
		return provisioner.CatalogueItem{}, provisioner.NewError(provisioner.ErrCodeNotFound,
			fmt.Sprintf("catalogue entity not found: %s", entityID))
	}
	return item, nil
}

var _ provisioner.CatalogueGateway = (*Catalogue)(nil)
