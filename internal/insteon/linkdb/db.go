package linkdb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// DeltaUnknown is the mirror delta before any synchronisation.
const DeltaUnknown = -1

// Store persists a device's mirrored records. Implementations must be
// safe for use from the dispatch goroutine.
type Store interface {
	// Load returns the saved delta (DeltaUnknown if never synced) and
	// all saved records for the device.
	Load(ctx context.Context, addr insteon.Address) (delta int, entries []Entry, err error)

	// SaveEntry inserts or replaces the record at its memory location.
	SaveEntry(ctx context.Context, addr insteon.Address, e Entry) error

	// DeleteEntry removes the record at the memory location.
	DeleteEntry(ctx context.Context, addr insteon.Address, memLoc uint16) error

	// SaveDelta records the synchronised delta byte.
	SaveDelta(ctx context.Context, addr insteon.Address, delta int) error

	// Clear removes every record and the delta for the device.
	Clear(ctx context.Context, addr insteon.Address) error
}

// DB is the local mirror of one device's all-link database.
//
// Mutations happen synchronously inside the protocol dispatch goroutine;
// the mutex exists so that bridge/API goroutines can read a consistent
// snapshot. Persistence is write-through: each confirmed change is saved
// immediately, and a store failure is logged but never blocks the
// protocol (the in-memory mirror stays authoritative until the next
// resync).
type DB struct {
	addr  insteon.Address
	store Store // optional

	mu      sync.RWMutex
	delta   int
	entries map[uint16]Entry
}

// New creates an empty mirror for the device at addr. The store may be
// nil for tests or memory-only operation; call Load afterwards to
// populate from a store.
func New(addr insteon.Address, store Store) *DB {
	return &DB{
		addr:    addr,
		store:   store,
		delta:   DeltaUnknown,
		entries: make(map[uint16]Entry),
	}
}

// Load populates the mirror from the store.
func (d *DB) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	delta, entries, err := d.store.Load(ctx, d.addr)
	if err != nil {
		return fmt.Errorf("loading link db for %s: %w", d.addr, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.delta = delta
	d.entries = make(map[uint16]Entry, len(entries))
	for _, e := range entries {
		d.entries[e.MemLoc] = e
	}
	return nil
}

// Addr returns the device address the mirror belongs to.
func (d *DB) Addr() insteon.Address { return d.addr }

// Delta returns the last synchronised delta, or DeltaUnknown.
func (d *DB) Delta() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.delta
}

// IsCurrent reports whether the mirror is synchronised at the delta a
// device just reported. An unknown delta is never current.
func (d *DB) IsCurrent(delta byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.delta != DeltaUnknown && byte(d.delta) == delta
}

// SetDelta records the delta the mirror is now synchronised at.
func (d *DB) SetDelta(delta byte) {
	d.mu.Lock()
	d.delta = int(delta)
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveDelta(context.Background(), d.addr, int(delta)); err != nil {
			slog.Error("link db delta save failed", "addr", d.addr, "error", err)
		}
	}
}

// Clear wipes the mirror ahead of a full download. The delta becomes
// unknown until SetDelta confirms the download completed.
func (d *DB) Clear() {
	d.mu.Lock()
	d.delta = DeltaUnknown
	d.entries = make(map[uint16]Entry)
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.Clear(context.Background(), d.addr); err != nil {
			slog.Error("link db clear failed", "addr", d.addr, "error", err)
		}
	}
}

// AddEntry applies one confirmed record to the mirror. A record with the
// in-use flag cleared is a logical deletion of its memory location;
// anything else inserts or replaces the record at that location.
func (d *DB) AddEntry(e Entry) {
	d.mu.Lock()
	if e.InUse() {
		d.entries[e.MemLoc] = e
	} else {
		delete(d.entries, e.MemLoc)
	}
	d.mu.Unlock()

	if d.store == nil {
		return
	}
	var err error
	if e.InUse() {
		err = d.store.SaveEntry(context.Background(), d.addr, e)
	} else {
		err = d.store.DeleteEntry(context.Background(), d.addr, e.MemLoc)
	}
	if err != nil {
		slog.Error("link db entry save failed", "addr", d.addr, "entry", e, "error", err)
	}
}

// Entries returns a snapshot of the live records in memory order
// (highest location first, the order devices stream them).
func (d *DB) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemLoc > out[j].MemLoc })
	return out
}

// Len returns the number of live records.
func (d *DB) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Find returns the in-use record linking (group, addr) with the given
// direction, or false if none exists.
func (d *DB) Find(group byte, addr insteon.Address, controller bool) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.entries {
		if e.Group == group && e.Addr == addr && e.IsController() == controller {
			return e, true
		}
	}
	return Entry{}, false
}

// NextFreeLoc returns the memory location for a new record: one record
// below the lowest live location, or the top of the table when empty.
func (d *DB) NextFreeLoc() (uint16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	low := StartMemLoc + RecordSize
	for loc := range d.entries {
		if loc < low {
			low = loc
		}
	}
	if low < RecordSize {
		return 0, ErrDBFull
	}
	return low - RecordSize, nil
}
