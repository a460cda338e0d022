package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"casevault/pkg/domain"
	"casevault/pkg/platform/sentinel"
)

// Store reads and hard-deletes rows of the evidence table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL evidence store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Exists(ctx context.Context, id domain.ResourceID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM evidence WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check evidence exists: %w", err)
	}
	return exists, nil
}

// Remove hard-deletes the row. Zero affected rows is sentinel.ErrNotFound.
func (s *Store) Remove(ctx context.Context, id domain.ResourceID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evidence WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evidence rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("evidence %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// Insert creates an evidence row and returns its id. Used for seeding.
func (s *Store) Insert(ctx context.Context, description string) (domain.ResourceID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO evidence (description) VALUES ($1) RETURNING id`, description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert evidence: %w", err)
	}
	return domain.ResourceID(id), nil
}
