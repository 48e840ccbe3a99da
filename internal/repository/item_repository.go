// Package repository contains data access logic separated from HTTP handlers.
// This file defines the in-memory item store backing every item route.  The
// store is an explicit handle so each server (and each test) owns an isolated
// collection.
package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/iliyamo/item-registry/internal/model"
)

// IDPolicy decides which id a newly created item receives.
type IDPolicy int

const (
	// FixedID assigns id 4 to every created item.
	FixedID IDPolicy = iota
	// SequentialID assigns one more than the largest id in the collection.
	SequentialID
)

// fixedCreateID is the id handed out under FixedID.
const fixedCreateID = 4

// ItemRepo holds the ordered item collection for the lifetime of the process.
type ItemRepo struct {
	mu     sync.RWMutex
	items  []model.Item
	policy IDPolicy
}

// NewItemRepo constructs a store seeded with the default items.
func NewItemRepo(policy IDPolicy) *ItemRepo {
	return &ItemRepo{items: model.SeedItems(), policy: policy}
}

// Reset restores the seed collection.
func (r *ItemRepo) Reset() {
	r.mu.Lock()
	r.items = model.SeedItems()
	r.mu.Unlock()
}

// List returns a copy of every item in collection order.  The result is
// never nil so it always encodes as a JSON array.
func (r *ItemRepo) List(ctx context.Context) []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Item, len(r.items))
	copy(out, r.items)
	return out
}

// Search returns items whose name contains query, ignoring case, in
// collection order.
func (r *ItemRepo) Search(ctx context.Context, query string) []model.Item {
	needle := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Item, 0, len(r.items))
	for _, it := range r.items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, it)
		}
	}
	return out
}

// GetByID returns the first item with the given id or ErrItemNotFound.
func (r *ItemRepo) GetByID(ctx context.Context, id int) (model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.items[i], nil
	}
	return model.Item{}, ErrItemNotFound
}

// Create appends a new item and returns it with the id chosen by the
// store's policy.
func (r *ItemRepo) Create(ctx context.Context, name string) (model.Item, error) {
	if name == "" {
		return model.Item{}, ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it := model.Item{ID: r.nextID(), Name: name}
	r.items = append(r.items, it)
	return it, nil
}

// UpdateName renames the first item with the given id.  The id itself never
// changes.
func (r *ItemRepo) UpdateName(ctx context.Context, id int, name string) (model.Item, error) {
	if name == "" {
		return model.Item{}, ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.Item{}, ErrItemNotFound
	}
	r.items[i].Name = name
	return r.items[i], nil
}

// indexOf must be called with mu held.
func (r *ItemRepo) indexOf(id int) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID must be called with mu held for writing.
func (r *ItemRepo) nextID() int {
	if r.policy != SequentialID {
		return fixedCreateID
	}
	highest := 0
	for _, it := range r.items {
		if it.ID > highest {
			highest = it.ID
		}
	}
	return highest + 1
}
