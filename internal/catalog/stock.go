// Package catalog defines the stock collaborator the ledger calls when
// orders are created and cancelled. Catalog CRUD lives outside this module.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrOutOfStock     = errors.New("insufficient stock")
)

// Stock mutates product inventory.
type Stock interface {
	// Decrement removes qty units of productID from inventory.
	Decrement(ctx context.Context, productID string, qty int64) error

	// Restore puts qty units of productID back into inventory.
	Restore(ctx context.Context, productID string, qty int64) error
}

// Memory is an in-process Stock used by the server in standalone mode and by tests.
type Memory struct {
	mu     sync.Mutex
	levels map[string]int64
}

// NewMemory creates a Memory stock seeded with the given levels.
func NewMemory(levels map[string]int64) *Memory {
	m := &Memory{levels: make(map[string]int64, len(levels))}
	for id, qty := range levels {
		m.levels[id] = qty
	}
	return m
}

// Set overwrites the level of one product.
func (m *Memory) Set(productID string, qty int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[productID] = qty
}

// Level returns the current level of a product.
func (m *Memory) Level(productID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[productID]
}

func (m *Memory) Decrement(ctx context.Context, productID string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	level, ok := m.levels[productID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if level < qty {
		return fmt.Errorf("%w: %s has %d, want %d", ErrOutOfStock, productID, level, qty)
	}
	m.levels[productID] = level - qty
	slog.Debug("Stock decremented", "product_id", productID, "qty", qty, "level", level-qty)
	return nil
}

func (m *Memory) Restore(ctx context.Context, productID string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.levels[productID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	m.levels[productID] += qty
	slog.Debug("Stock restored", "product_id", productID, "qty", qty, "level", m.levels[productID])
	return nil
}
