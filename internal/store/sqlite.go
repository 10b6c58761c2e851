package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"image.share/internal/models"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps one row per link. Timestamps are Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite would return SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS share_links (
		id                TEXT PRIMARY KEY,
		stored_object_ref TEXT NOT NULL UNIQUE,
		original_filename TEXT NOT NULL,
		duration_class    TEXT NOT NULL,
		content_type      TEXT NOT NULL DEFAULT '',
		size_bytes        INTEGER NOT NULL DEFAULT 0,
		created_at        INTEGER NOT NULL,
		expires_at        INTEGER NOT NULL,
		view_count        INTEGER NOT NULL DEFAULT 0,
		CHECK (expires_at > created_at)
	);
	CREATE INDEX IF NOT EXISTS idx_share_links_expires_at ON share_links(expires_at);
	`)
	return err
}

const linkColumns = `id, stored_object_ref, original_filename, duration_class, content_type,
	size_bytes, created_at, expires_at, view_count`

func (s *SQLiteStore) Save(ctx context.Context, link *models.ShareLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.StoredObjectRef, link.OriginalFilename, link.DurationClass, link.ContentType,
		link.SizeBytes, link.CreatedAt.UnixNano(), link.ExpiresAt.UnixNano(), link.ViewCount,
	)
	if err != nil && isPrimaryKeyViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM share_links WHERE id = ?`, id)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return link, err
}

func (s *SQLiteStore) IncrementViews(ctx context.Context, id string, now time.Time) (*models.ShareLink, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE share_links SET view_count = view_count + 1
		 WHERE id = ? AND expires_at >= ?
		 RETURNING `+linkColumns,
		id, now.UnixNano(),
	)
	link, err := scanLink(row)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing updated: tell a missing row from an expired one.
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrExpired
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM share_links WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Expired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM share_links WHERE expires_at < ? ORDER BY expires_at`, now.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanLink(row *sql.Row) (*models.ShareLink, error) {
	var (
		link               models.ShareLink
		created, expiresAt int64
	)
	err := row.Scan(
		&link.ID, &link.StoredObjectRef, &link.OriginalFilename, &link.DurationClass, &link.ContentType,
		&link.SizeBytes, &created, &expiresAt, &link.ViewCount,
	)
	if err != nil {
		return nil, err
	}
	link.CreatedAt = time.Unix(0, created).UTC()
	link.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &link, nil
}

func isPrimaryKeyViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed: share_links.id") ||
		strings.Contains(msg, "PRIMARY KEY")
}
