package playlist

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	position   INTEGER PRIMARY KEY,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	logo_url   TEXT NOT NULL DEFAULT '',
	stream_url TEXT NOT NULL,
	tvg_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS channels_tvg_id ON channels(tvg_id);
CREATE INDEX IF NOT EXISTS channels_id ON channels(id);
CREATE INDEX IF NOT EXISTS channels_name ON channels(name);
`

// Store persists the playlist in SQLite, preserving playlist order.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open playlist DB: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init playlist DB: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Replace swaps the whole playlist in one transaction.
func (s *Store) Replace(ctx context.Context, channels []Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM channels`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO channels (position, id, name, group_name, logo_url, stream_url, tvg_id) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ch := range channels {
		if _, err := stmt.ExecContext(ctx, i, ch.ID, ch.Name, ch.Group, ch.LogoURL, ch.StreamURL, ch.TVGID); err != nil {
			return fmt.Errorf("insert channel %q: %w", ch.Name, err)
		}
	}
	return tx.Commit()
}

// LookupChannel returns the first channel in playlist order whose tvg-id, id or
// name equals id.
func (s *Store) LookupChannel(ctx context.Context, id string) (Channel, bool, error) {
	if id == "" {
		return Channel{}, false, nil
	}
	var ch Channel
	err := s.db.QueryRowContext(ctx, `SELECT id, name, group_name, logo_url, stream_url, tvg_id FROM channels
		WHERE tvg_id = ? OR id = ? OR name = ? ORDER BY position LIMIT 1`, id, id, id).
		Scan(&ch.ID, &ch.Name, &ch.Group, &ch.LogoURL, &ch.StreamURL, &ch.TVGID)
	if err == sql.ErrNoRows {
		return Channel{}, false, nil
	}
	if err != nil {
		return Channel{}, false, err
	}
	return ch, true, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n)
	return n, err
}

// List is an in-memory playlist with the same lookup rule as Store.
type List []Channel

func (l List) LookupChannel(_ context.Context, id string) (Channel, bool, error) {
	if id == "" {
		return Channel{}, false, nil
	}
	for _, ch := range l {
		if ch.TVGID == id || ch.ID == id || ch.Name == id {
			return ch, true, nil
		}
	}
	return Channel{}, false, nil
}
