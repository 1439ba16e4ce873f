// Package store provides SQLite persistence for the skyrank CLI: votes,
// post metric snapshots and per-mix pagination cursors.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/skyrank/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for file-based DBs.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS votes (
		user_id TEXT NOT NULL,
		statement_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, statement_id)
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		like_count INTEGER NOT NULL DEFAULT 0,
		downvote_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		repost_count INTEGER NOT NULL DEFAULT 0,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cursors (
		mix TEXT NOT NULL,
		source_key TEXT NOT NULL,
		cursor TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (mix, source_key)
	);

	CREATE INDEX IF NOT EXISTS idx_votes_statement ON votes(statement_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveVotes upserts votes; a later vote by the same user on the same
// statement replaces the earlier one. Returns the number of votes written.
func (s *Store) SaveVotes(votes []model.Vote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(votes) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	n := 0
	err := s.inTx(`
		INSERT INTO votes (user_id, statement_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, statement_id) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, func(stmt *sql.Stmt) error {
		for _, v := range votes {
			if _, err := stmt.Exec(v.UserID, v.StatementID, int(v.Value), now); err != nil {
				return fmt.Errorf("save vote %s/%s: %w", v.UserID, v.StatementID, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Votes returns every stored vote in first-insert order.
func (s *Store) Votes() ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT user_id, statement_id, value FROM votes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	votes := []model.Vote{}
	for rows.Next() {
		var v model.Vote
		var value int
		if err := rows.Scan(&v.UserID, &v.StatementID, &value); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Value = model.VoteValue(value)
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// SavePosts upserts post metric snapshots by ID.
func (s *Store) SavePosts(posts []model.PostMetrics) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(posts) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	n := 0
	err := s.inTx(`
		INSERT INTO posts (id, created_at, like_count, downvote_count, reply_count, repost_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			like_count = excluded.like_count,
			downvote_count = excluded.downvote_count,
			reply_count = excluded.reply_count,
			repost_count = excluded.repost_count,
			saved_at = excluded.saved_at
	`, func(stmt *sql.Stmt) error {
		for _, p := range posts {
			if _, err := stmt.Exec(p.ID, p.CreatedAt.UnixMicro(),
				int64(p.LikeCount), int64(p.DownvoteCount), int64(p.ReplyCount), int64(p.RepostCount), now); err != nil {
				return fmt.Errorf("save post %s: %w", p.ID, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Posts returns every stored snapshot in first-insert order.
func (s *Store) Posts() ([]model.PostMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, created_at, like_count, downvote_count, reply_count, repost_count
		FROM posts ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []model.PostMetrics{}
	for rows.Next() {
		var p model.PostMetrics
		var created, likes, downs, replies, reposts int64
		if err := rows.Scan(&p.ID, &created, &likes, &downs, &replies, &reposts); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CreatedAt = time.UnixMicro(created).UTC()
		p.LikeCount = uint(likes)
		p.DownvoteCount = uint(downs)
		p.ReplyCount = uint(replies)
		p.RepostCount = uint(reposts)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Downvotes returns the stored downvote count per post ID, for posts with
// at least one downvote.
func (s *Store) Downvotes() (map[string]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, downvote_count FROM posts WHERE downvote_count > 0`)
	if err != nil {
		return nil, fmt.Errorf("query downvotes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan downvotes: %w", err)
		}
		out[id] = uint(n)
	}
	return out, rows.Err()
}

// SaveCursors replaces the stored cursors of a mix. Sources missing from
// cursors are forgotten, so their next fetch starts from the first page.
func (s *Store) SaveCursors(mix string, cursors model.Cursors) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cursors WHERE mix = ?`, mix); err != nil {
		return fmt.Errorf("clear cursors: %w", err)
	}

	now := time.Now().UnixMilli()
	for key, cursor := range cursors {
		if cursor == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO cursors (mix, source_key, cursor, updated_at) VALUES (?, ?, ?, ?)`,
			mix, key, cursor, now); err != nil {
			return fmt.Errorf("save cursor %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Cursors returns the stored cursors of a mix; empty when none are stored.
func (s *Store) Cursors(mix string) (model.Cursors, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT source_key, cursor FROM cursors WHERE mix = ?`, mix)
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	cursors := model.Cursors{}
	for rows.Next() {
		var key, cursor string
		if err := rows.Scan(&key, &cursor); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		cursors[key] = cursor
	}
	return cursors, rows.Err()
}

// inTx prepares query inside a transaction and hands the statement to fn.
// The transaction commits only if fn succeeds. Caller holds the write lock.
func (s *Store) inTx(query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	return tx.Commit()
}
