package starstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"stargazer/internal/model"
)

// ErrEmptyRefresh guards the full-refresh loader: a replacement with zero
// rows would silently erase good data, so it is refused.
var ErrEmptyRefresh = errors.New("refusing to replace partition with zero records")

// Store wraps the SQLite database holding raw partitions, the staging/mart
// relations, and the aggregate marts.
type Store struct {
	sql *sql.DB

	mu    sync.Mutex
	repMu map[string]*sync.Mutex // serializes Replace per repo
}

func Open(path string) (*Store, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A :memory: database exists per connection; pin the pool to one.
	if path == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		return nil, err
	}
	s := &Store{sql: d, repMu: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.sql.Close() }

// DB exposes the underlying handle for the transform and aggregate layers.
func (s *Store) DB() *sql.DB { return s.sql }

func (s *Store) migrate() error {
	// Raw keeps timestamps as the API gave them; staging casts them.
	_, err := s.sql.Exec(`
	CREATE TABLE IF NOT EXISTS raw_stars (
	  actor_login  TEXT,
	  actor_id     INTEGER,
	  repo         TEXT NOT NULL,
	  starred_at   TEXT,
	  avatar_url   TEXT,
	  html_url     TEXT,
	  extracted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_raw_stars_repo ON raw_stars(repo);
	`)
	return err
}

func (s *Store) repoMutex(repo string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.repMu[repo]
	if !ok {
		m = &sync.Mutex{}
		s.repMu[repo] = m
	}
	return m
}

// Replace swaps repo's raw partition for events in one transaction: either
// the old rows survive untouched or the new set is fully visible. Readers
// never observe an empty or mixed partition. Replaces of the same repo are
// serialized; different repos do not coordinate.
func (s *Store) Replace(ctx context.Context, repo string, events []model.StarEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("%s: %w", repo, ErrEmptyRefresh)
	}
	m := s.repoMutex(repo)
	m.Lock()
	defer m.Unlock()

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM raw_stars WHERE repo=?`, repo); err != nil {
		return fmt.Errorf("clear partition %s: %w", repo, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_stars(actor_login, actor_id, repo, starred_at, avatar_url, html_url, extracted_at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ActorLogin, e.ActorID, repo,
			e.StarredAt.UTC().Format(time.RFC3339),
			e.AvatarURL, e.ProfileURL,
			e.ExtractedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert into partition %s: %w", repo, err)
		}
	}
	return tx.Commit()
}

// RawCount returns the number of rows in a repo's raw partition.
func (s *Store) RawCount(ctx context.Context, repo string) (int, error) {
	var n int
	err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_stars WHERE repo=?`, repo).Scan(&n)
	return n, err
}

// Repos lists repos that currently have a raw partition.
func (s *Store) Repos(ctx context.Context) ([]string, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT DISTINCT repo FROM raw_stars ORDER BY repo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadStars reads the mart base relation back into memory for aggregation.
// Rows come out ordered by (repo, starred_at).
func (s *Store) LoadStars(ctx context.Context) ([]model.StarEvent, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT actor_login, actor_id, repo, starred_at, extracted_at FROM stars ORDER BY repo, starred_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StarEvent
	for rows.Next() {
		var e model.StarEvent
		var starred, extracted int64
		if err := rows.Scan(&e.ActorLogin, &e.ActorID, &e.Repo, &starred, &extracted); err != nil {
			return nil, err
		}
		e.StarredAt = time.Unix(starred, 0).UTC()
		e.ExtractedAt = time.Unix(extracted, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
