package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"casevault/internal/audit"
	"casevault/pkg/domain"
)

// Store persists audit entries in the append-only evidence_audit_logs table.
// The table carries no foreign key to evidence, so rows survive hard deletes.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT id, evidence_id, acted_by_user_id, action, details, request_id, acted_at
	FROM evidence_audit_logs
`

// Append inserts an entry. Duplicate ids are ignored so retried writes are idempotent.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO evidence_audit_logs (
			id, evidence_id, acted_by_user_id, action, details, request_id, acted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	var actorID sql.NullInt64
	if entry.ActorID != nil {
		actorID = sql.NullInt64{Int64: int64(*entry.ActorID), Valid: true}
	}
	details := sql.NullString{String: entry.Details, Valid: entry.Details != ""}

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		int64(entry.TargetID),
		actorID,
		string(entry.Action),
		details,
		entry.RequestID,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByTarget returns entries for a resource, most recent first.
func (s *Store) ListByTarget(ctx context.Context, targetID domain.ResourceID) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE evidence_id = $1
		ORDER BY acted_at DESC
	`, int64(targetID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries by target: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByActor returns entries recorded by an actor, most recent first.
func (s *Store) ListByActor(ctx context.Context, actorID domain.ActorID) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE acted_by_user_id = $1
		ORDER BY acted_at DESC
	`, int64(actorID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries by actor: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListAll returns every entry, most recent first.
func (s *Store) ListAll(ctx context.Context) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY acted_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0)

	for rows.Next() {
		var (
			entry    audit.Entry
			targetID int64
			actorID  sql.NullInt64
			action   string
			details  sql.NullString
		)

		err := rows.Scan(
			&entry.ID,
			&targetID,
			&actorID,
			&action,
			&details,
			&entry.RequestID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.TargetID = domain.ResourceID(targetID)
		entry.Action = audit.Action(action)
		entry.Details = details.String
		if actorID.Valid {
			entry.ActorID = audit.ActedBy(domain.ActorID(actorID.Int64))
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
