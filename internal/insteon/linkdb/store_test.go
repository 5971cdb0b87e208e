package linkdb

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// newTestStore returns a store backed by an in-memory SQLite database.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{
			MemLoc: StartMemLoc,
			Flags:  FlagInUse | FlagController | FlagUsedBefore,
			Group:  0x01,
			Addr:   peerAddr,
			Data:   [3]byte{0xff, 0x1c, 0x01},
		},
		{
			MemLoc: StartMemLoc - RecordSize,
			Flags:  FlagInUse | FlagUsedBefore,
			Group:  0x02,
			Addr:   peerAddr,
		},
	}
	for _, e := range entries {
		if err := store.SaveEntry(ctx, testAddr, e); err != nil {
			t.Fatalf("SaveEntry: %v", err)
		}
	}
	if err := store.SaveDelta(ctx, testAddr, 0x1f); err != nil {
		t.Fatalf("SaveDelta: %v", err)
	}

	delta, got, err := store.Load(ctx, testAddr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if delta != 0x1f {
		t.Errorf("delta = %#02x, want 0x1f", delta)
	}
	if len(got) != len(entries) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(entries))
	}
	// Load returns highest memory location first.
	for i, want := range entries {
		if got[i] != want {
			t.Errorf("entry[%d] = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestSQLiteStoreLoadEmpty(t *testing.T) {
	store := newTestStore(t)

	delta, entries, err := store.Load(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if delta != DeltaUnknown {
		t.Errorf("delta = %d, want unknown for a never-synced device", delta)
	}
	if len(entries) != 0 {
		t.Errorf("loaded %d entries, want none", len(entries))
	}
}

func TestSQLiteStoreSaveEntryUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := Entry{MemLoc: StartMemLoc, Flags: FlagInUse | FlagUsedBefore, Group: 0x01, Addr: peerAddr}
	if err := store.SaveEntry(ctx, testAddr, e); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}

	e.Group = 0x05
	if err := store.SaveEntry(ctx, testAddr, e); err != nil {
		t.Fatalf("SaveEntry (update): %v", err)
	}

	_, entries, err := store.Load(ctx, testAddr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Group != 0x05 {
		t.Fatalf("entries = %+v, want one updated record", entries)
	}
}

func TestSQLiteStoreDeleteEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := Entry{MemLoc: StartMemLoc, Flags: FlagInUse | FlagUsedBefore, Group: 0x01, Addr: peerAddr}
	if err := store.SaveEntry(ctx, testAddr, e); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
	if err := store.DeleteEntry(ctx, testAddr, e.MemLoc); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	_, entries, err := store.Load(ctx, testAddr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none after delete", entries)
	}
}

func TestSQLiteStoreClearIsPerDevice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	other := peerAddr
	e := Entry{MemLoc: StartMemLoc, Flags: FlagInUse | FlagUsedBefore, Group: 0x01, Addr: peerAddr}
	for _, dev := range []insteon.Address{testAddr, other} {
		if err := store.SaveEntry(ctx, dev, e); err != nil {
			t.Fatalf("SaveEntry: %v", err)
		}
		if err := store.SaveDelta(ctx, dev, 0x07); err != nil {
			t.Fatalf("SaveDelta: %v", err)
		}
	}

	if err := store.Clear(ctx, testAddr); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	delta, entries, err := store.Load(ctx, testAddr)
	if err != nil {
		t.Fatalf("Load cleared device: %v", err)
	}
	if delta != DeltaUnknown || len(entries) != 0 {
		t.Fatalf("cleared device still has delta %d and %d entries", delta, len(entries))
	}

	delta, entries, err = store.Load(ctx, other)
	if err != nil {
		t.Fatalf("Load other device: %v", err)
	}
	if delta != 0x07 || len(entries) != 1 {
		t.Fatal("clearing one device touched another")
	}
}

func TestDBWriteThrough(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	db := New(testAddr, store)
	db.AddEntry(liveEntry(StartMemLoc, 0x01))
	db.SetDelta(0x03)

	// A second mirror over the same store sees the persisted state.
	reload := New(testAddr, store)
	if err := reload.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reload.Len() != 1 {
		t.Fatalf("reloaded mirror has %d entries, want 1", reload.Len())
	}
	if !reload.IsCurrent(0x03) {
		t.Fatalf("reloaded delta = %d, want 0x03", reload.Delta())
	}
}
