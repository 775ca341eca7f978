package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notification-center/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// SnapshotInfo describes the persisted snapshot.
type SnapshotInfo struct {
	SnapshotID string    `db:"snapshot_id"`
	Version    uint64    `db:"version"`
	FetchedAt  time.Time `db:"fetched_at"`
	SavedAt    time.Time `db:"saved_at"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	var v int
	if err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		currentVersion, err = s.SchemaVersion()
		if err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSnapshot replaces the persisted notifications and metadata in a
// single transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			id, section, position,
			title, body, category, link,
			is_read, created_at
		) VALUES (
			?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	insert := func(part model.Partition, list []model.Notification) error {
		for i, n := range list {
			_, err := stmt.ExecContext(ctx,
				n.ID, part.String(), i,
				n.Title, n.Body, n.Category, n.Link,
				boolToInt(n.IsRead), n.CreatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("inserting notification %s: %w", n.ID, err)
			}
		}
		return nil
	}

	if err := insert(model.PartitionPinned, snap.Pinned); err != nil {
		return err
	}
	if err := insert(model.PartitionRegular, snap.Notifications); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, snapshot_id, version, fetched_at, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			version     = excluded.version,
			fetched_at  = excluded.fetched_at,
			saved_at    = excluded.saved_at`,
		uuid.New().String(), int64(snap.Version), snap.FetchedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// SnapshotInfo returns metadata about the persisted snapshot, or
// ErrNoSnapshot if nothing was saved.
func (s *SQLiteStore) SnapshotInfo(ctx context.Context) (SnapshotInfo, error) {
	var info SnapshotInfo
	err := s.db.GetContext(ctx, &info,
		"SELECT snapshot_id, version, fetched_at, saved_at FROM snapshot_meta WHERE id = 1",
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, ErrNoSnapshot
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("reading snapshot metadata: %w", err)
	}
	info.FetchedAt = info.FetchedAt.UTC()
	info.SavedAt = info.SavedAt.UTC()
	return info, nil
}

// LoadSnapshot reads the persisted snapshot in its original order.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	info, err := s.SnapshotInfo(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, section, title, body, category, link, is_read, created_at
		FROM notifications
		ORDER BY section, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var pinned, regular []model.Notification
	for rows.Next() {
		n, part, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		if part == model.PartitionPinned.String() {
			pinned = append(pinned, n)
		} else {
			regular = append(regular, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}

	snap := model.NewSnapshot(pinned, regular)
	snap.Version = info.Version
	snap.FetchedAt = info.FetchedAt
	return snap, nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, string, error) {
	var (
		n         model.Notification
		partition string
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &partition, &n.Title, &n.Body, &n.Category, &n.Link,
		&readInt, &createdAt,
	)
	if err != nil {
		return model.Notification{}, "", fmt.Errorf("scanning notification row: %w", err)
	}

	n.IsRead = readInt != 0
	n.CreatedAt = createdAt.UTC()

	return n, partition, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
