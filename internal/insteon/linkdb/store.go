package linkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// schema creates the link database tables. Records are keyed by device
// address and memory location; the delta lives in its own table so that
// "never synced" is represented by a missing row.
const schema = `
	CREATE TABLE IF NOT EXISTS link_entries (
		device   TEXT NOT NULL,
		mem_loc  INTEGER NOT NULL,
		flags    INTEGER NOT NULL,
		grp      INTEGER NOT NULL,
		addr     TEXT NOT NULL,
		data1    INTEGER NOT NULL,
		data2    INTEGER NOT NULL,
		data3    INTEGER NOT NULL,
		PRIMARY KEY (device, mem_loc)
	) STRICT;
	CREATE TABLE IF NOT EXISTS link_meta (
		device TEXT PRIMARY KEY,
		delta  INTEGER NOT NULL
	) STRICT;
	CREATE INDEX IF NOT EXISTS idx_link_entries_device ON link_entries(device);
`

// NewSQLiteStore creates a SQLite-backed store and ensures the schema
// exists. The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating link db schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the saved delta and records for the device.
func (s *SQLiteStore) Load(ctx context.Context, addr insteon.Address) (int, []Entry, error) {
	delta := DeltaUnknown
	err := s.db.QueryRowContext(ctx,
		`SELECT delta FROM link_meta WHERE device = ?`, addr.String()).Scan(&delta)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("querying link delta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT mem_loc, flags, grp, addr, data1, data2, data3
		FROM link_entries
		WHERE device = ?
		ORDER BY mem_loc DESC`, addr.String())
	if err != nil {
		return 0, nil, fmt.Errorf("querying link entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			addrStr string
		)
		if err := rows.Scan(&e.MemLoc, &e.Flags, &e.Group, &addrStr,
			&e.Data[0], &e.Data[1], &e.Data[2]); err != nil {
			return 0, nil, fmt.Errorf("scanning link entry: %w", err)
		}
		if e.Addr, err = insteon.ParseAddress(addrStr); err != nil {
			return 0, nil, fmt.Errorf("scanning link entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("reading link entries: %w", err)
	}
	return delta, entries, nil
}

// SaveEntry inserts or replaces the record at its memory location.
func (s *SQLiteStore) SaveEntry(ctx context.Context, addr insteon.Address, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO link_entries (device, mem_loc, flags, grp, addr, data1, data2, data3)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device, mem_loc) DO UPDATE SET
			flags = excluded.flags,
			grp = excluded.grp,
			addr = excluded.addr,
			data1 = excluded.data1,
			data2 = excluded.data2,
			data3 = excluded.data3`,
		addr.String(), e.MemLoc, e.Flags, e.Group, e.Addr.String(),
		e.Data[0], e.Data[1], e.Data[2])
	if err != nil {
		return fmt.Errorf("saving link entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the record at the memory location.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, addr insteon.Address, memLoc uint16) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM link_entries WHERE device = ? AND mem_loc = ?`,
		addr.String(), memLoc)
	if err != nil {
		return fmt.Errorf("deleting link entry: %w", err)
	}
	return nil
}

// SaveDelta records the synchronised delta byte.
func (s *SQLiteStore) SaveDelta(ctx context.Context, addr insteon.Address, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO link_meta (device, delta) VALUES (?, ?)
		ON CONFLICT (device) DO UPDATE SET delta = excluded.delta`,
		addr.String(), delta)
	if err != nil {
		return fmt.Errorf("saving link delta: %w", err)
	}
	return nil
}

// Clear removes every record and the delta for the device.
func (s *SQLiteStore) Clear(ctx context.Context, addr insteon.Address) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM link_entries WHERE device = ?`, addr.String()); err != nil {
		return fmt.Errorf("clearing link entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM link_meta WHERE device = ?`, addr.String()); err != nil {
		return fmt.Errorf("clearing link delta: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
