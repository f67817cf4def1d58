package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"consumo-backend/internal/storage"
)

// Storage keeps the workshop leftovers ledger in a local SQLite file.
type Storage struct {
	db *sql.DB
}

func New(path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// sqlite не любит параллельную запись
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS leftovers (
			id TEXT PRIMARY KEY,
			material_type TEXT NOT NULL,
			description TEXT,
			length REAL NOT NULL,
			width REAL NOT NULL DEFAULT 0,
			source TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leftovers_material ON leftovers (material_type);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveLeftovers stores remnants in one transaction. Missing IDs and
// timestamps are filled in and written back into the slice.
func (s *Storage) SaveLeftovers(ctx context.Context, leftovers []storage.Leftover) error {
	return s.RecordCut(ctx, "", leftovers)
}

// RecordCut removes the remnant a piece was cut from (if usedID is set) and
// stores the produced remnants, all in one transaction. A used remnant that
// is already gone fails the whole cut with storage.ErrNotFound.
func (s *Storage) RecordCut(ctx context.Context, usedID string, produced []storage.Leftover) error {
	const op = "storage.sqlite.RecordCut"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if usedID != "" {
		res, err := tx.ExecContext(ctx, `DELETE FROM leftovers WHERE id = ?`, usedID)
		if err != nil {
			return fmt.Errorf("%s: consume %s: %w", op, usedID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: leftover %s: %w", op, usedID, storage.ErrNotFound)
		}
	}

	for i := range produced {
		l := &produced[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO leftovers (id, material_type, description, length, width, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, string(l.MaterialType), l.Description, l.Length, l.Width, l.Source, l.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("%s: insert %s: %w", op, l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// ListLeftovers returns the remnants of one material type, or all of them
// when materialType is empty, oldest first.
func (s *Storage) ListLeftovers(ctx context.Context, materialType storage.MaterialType) ([]storage.Leftover, error) {
	const op = "storage.sqlite.ListLeftovers"

	query := `SELECT id, material_type, description, length, width, source, created_at FROM leftovers`
	var args []any
	if materialType != "" {
		query += ` WHERE material_type = ?`
		args = append(args, string(materialType))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var leftovers []storage.Leftover
	for rows.Next() {
		var l storage.Leftover
		var mt, createdAt string
		var description, source sql.NullString
		if err := rows.Scan(&l.ID, &mt, &description, &l.Length, &l.Width, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		l.MaterialType = storage.MaterialType(mt)
		l.Description = description.String
		l.Source = source.String
		if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("%s: created_at of %s: %w", op, l.ID, err)
		}
		leftovers = append(leftovers, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return leftovers, nil
}

// ConsumeLeftover removes a remnant once it has been cut.
func (s *Storage) ConsumeLeftover(ctx context.Context, id string) error {
	const op = "storage.sqlite.ConsumeLeftover"

	res, err := s.db.ExecContext(ctx, `DELETE FROM leftovers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: leftover %s: %w", op, id, storage.ErrNotFound)
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
