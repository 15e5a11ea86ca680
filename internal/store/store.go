// Package store archives digest runs in SQLite: one row per run plus the
// posts it surfaced and the per-source outcome.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/readdigest/internal/digest"
)

// DefaultRetainDays is how long archived runs are kept.
const DefaultRetainDays = 90

var errNotInitialized = errors.New("store is not initialized")

type Store struct {
	db *sql.DB
}

// Run is one archived digest run.
type Run struct {
	ID            int64
	GeneratedAt   time.Time
	WindowStart   time.Time
	NewPosts      int
	Sources       int
	FailedSources int
	HNStories     int
}

// Post is an archived post together with the run that surfaced it.
type Post struct {
	RunID       int64
	SourceID    string
	SourceName  string
	Title       string
	URL         string
	PublishedAt *time.Time
	Excerpt     string
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps PRAGMAs and writes on the same handle.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores r in a single transaction and returns the run id.
func (s *Store) RecordRun(ctx context.Context, r digest.Result) (id int64, err error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (generated_at, window_start, new_posts, sources, failed_sources, hn_stories)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		formatTime(r.GeneratedAt),
		formatTime(r.WindowStart),
		len(r.NewPosts),
		len(r.Sources),
		len(r.Failed()),
		len(r.HNTop),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, p := range r.NewPosts {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO posts (run_id, source_id, source_name, title, url, published_at, excerpt)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, url) DO NOTHING
		`, id, p.SourceID, p.SourceName, p.Title, p.URL, nullTime(p.PublishedAt), p.Excerpt); err != nil {
			return 0, fmt.Errorf("insert post %s: %w", p.URL, err)
		}
	}

	for _, rep := range r.Sources {
		var errVal sql.NullString
		if rep.Error != "" {
			errVal = sql.NullString{String: rep.Error, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO source_reports (run_id, source_id, source_name, feed, fetched_count, new_count, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, rep.SourceID, rep.SourceName, rep.Feed, rep.FetchedCount, rep.NewCount, errVal); err != nil {
			return 0, fmt.Errorf("insert source report %s: %w", rep.SourceID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generated_at, window_start, new_posts, sources, failed_sources, hn_stories
		FROM runs
		ORDER BY generated_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			generated, windowAt string
		)
		if err := rows.Scan(&r.ID, &generated, &windowAt, &r.NewPosts, &r.Sources, &r.FailedSources, &r.HNStories); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.GeneratedAt, err = parseTime(generated); err != nil {
			return nil, fmt.Errorf("parse generated_at: %w", err)
		}
		if r.WindowStart, err = parseTime(windowAt); err != nil {
			return nil, fmt.Errorf("parse window_start: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// PostsSince returns archived posts from runs generated at or after since,
// newest run first.
func (s *Store) PostsSince(ctx context.Context, since time.Time) ([]Post, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.run_id, p.source_id, p.source_name, p.title, p.url, p.published_at, p.excerpt
		FROM posts p
		JOIN runs r ON r.id = p.run_id
		WHERE r.generated_at >= ?
		ORDER BY r.generated_at DESC, p.id ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var (
			p         Post
			published sql.NullString
		)
		if err := rows.Scan(&p.RunID, &p.SourceID, &p.SourceName, &p.Title, &p.URL, &published, &p.Excerpt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if published.Valid {
			ts, err := parseTime(published.String)
			if err != nil {
				return nil, fmt.Errorf("parse published_at: %w", err)
			}
			p.PublishedAt = &ts
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// SourceStats aggregates one source over archived runs.
type SourceStats struct {
	SourceID   string
	SourceName string
	Runs       int
	Fetched    int
	New        int
	Errors     int
	LastError  string
	LastPostAt *time.Time // newest published_at among surfaced posts
}

// GetSourceStats returns per-source aggregates for runs generated since the given time.
func (s *Store) GetSourceStats(ctx context.Context, since time.Time) ([]SourceStats, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	cutoff := formatTime(since)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.source_id,
			MAX(sr.source_name),
			COUNT(*) AS runs,
			SUM(sr.fetched_count) AS fetched,
			SUM(sr.new_count) AS new_posts,
			SUM(CASE WHEN sr.error IS NOT NULL THEN 1 ELSE 0 END) AS errors,
			(SELECT sr2.error FROM source_reports sr2
				JOIN runs r2 ON r2.id = sr2.run_id
				WHERE sr2.source_id = sr.source_id AND sr2.error IS NOT NULL AND r2.generated_at >= ?
				ORDER BY r2.generated_at DESC LIMIT 1) AS last_error,
			(SELECT MAX(p.published_at) FROM posts p
				JOIN runs r3 ON r3.id = p.run_id
				WHERE p.source_id = sr.source_id AND r3.generated_at >= ?) AS last_post
		FROM source_reports sr
		JOIN runs r ON r.id = sr.run_id
		WHERE r.generated_at >= ?
		GROUP BY sr.source_id
		ORDER BY sr.source_id
	`, cutoff, cutoff, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get source stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []SourceStats
	for rows.Next() {
		var (
			st                  SourceStats
			lastError, lastPost sql.NullString
		)
		if err := rows.Scan(&st.SourceID, &st.SourceName, &st.Runs, &st.Fetched, &st.New, &st.Errors, &lastError, &lastPost); err != nil {
			return nil, fmt.Errorf("scan source stats: %w", err)
		}
		st.LastError = lastError.String
		if lastPost.Valid {
			ts, err := parseTime(lastPost.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_post: %w", err)
			}
			st.LastPostAt = &ts
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats: %w", err)
	}
	return stats, nil
}

// PruneOld deletes runs generated more than retainDays ago together with
// their posts and source reports. Returns the number of runs removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM posts WHERE run_id IN (SELECT id FROM runs WHERE generated_at < ?)",
		"DELETE FROM source_reports WHERE run_id IN (SELECT id FROM runs WHERE generated_at < ?)",
	} {
		if _, err := tx.ExecContext(ctx, q, cutoff); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("prune run children: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE generated_at < ?", cutoff)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune old runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
