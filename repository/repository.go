// Package repository tracks which tiles have been requested, so that a tile
// is requested once.
package repository

import (
	"fmt"
	"sync"

	"github.com/tilezen/go-tilepipe/tilepack"
)

// State is the lifecycle state of a tile.
type State int

const (
	// Requested tiles have been submitted but their tile finished message
	// has not been observed.
	Requested State = iota
	Present
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Repository holds at most one entry per tile. It is safe for concurrent
// use.
type Repository struct {
	mu      sync.RWMutex
	entries map[tilepack.TileCoordinates]State
}

func New() *Repository {
	return &Repository{entries: make(map[tilepack.TileCoordinates]State)}
}

// HasTile reports whether coords has an entry, whatever its state.
func (r *Repository) HasTile(coords tilepack.TileCoordinates) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[coords]
	return ok
}

// CreateTile inserts a Requested entry. Callers check HasTile first; an
// existing entry is reset to Requested.
func (r *Repository) CreateTile(coords tilepack.TileCoordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.entries[coords]; ok {
		tilepack.Logger().Warn("tile created twice", "coords", coords, "state", state)
	}
	r.entries[coords] = Requested
}

// TryCreateTile inserts a Requested entry unless coords already has one,
// and reports whether it did.
func (r *Repository) TryCreateTile(coords tilepack.TileCoordinates) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[coords]; ok {
		return false
	}
	r.entries[coords] = Requested
	return true
}

// MarkPresent moves a Requested entry to Present.
func (r *Repository) MarkPresent(coords tilepack.TileCoordinates) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.entries[coords]; !ok || state != Requested {
		return false
	}
	r.entries[coords] = Present
	return true
}

// RemovePresent deletes a Present entry so that the tile can be requested
// again. Requested entries are left alone.
func (r *Repository) RemovePresent(coords tilepack.TileCoordinates) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.entries[coords]; !ok || state != Present {
		return false
	}
	delete(r.entries, coords)
	return true
}

// Remove deletes a Requested entry, for a request that was never submitted.
// Present entries are left alone.
func (r *Repository) Remove(coords tilepack.TileCoordinates) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.entries[coords]; !ok || state != Requested {
		return false
	}
	delete(r.entries, coords)
	return true
}

func (r *Repository) State(coords tilepack.TileCoordinates) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.entries[coords]
	return state, ok
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Count returns the number of entries in state.
func (r *Repository) Count(state State) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.entries {
		if s == state {
			n++
		}
	}
	return n
}
