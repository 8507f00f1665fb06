// Package postgres stores audit events in the audit_events table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "dynforms/pkg/domain"
	audit "dynforms/pkg/platform/audit"
	txcontext "dynforms/pkg/platform/tx"
)

const eventColumns = `category, timestamp, user_id, subject, action, reason, request_id, client_ip, actor_id`

// Store appends inside the caller's transaction when ctx carries one, so an
// event rolls back with the change it records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var userID uuid.NullUUID
	if !event.UserID.IsNil() {
		userID = uuid.NullUUID{UUID: uuid.UUID(event.UserID), Valid: true}
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO audit_events (id, `+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), string(event.Category), event.Timestamp, userID,
		event.Subject, event.Action, event.Reason, event.RequestID, event.ClientIP, event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns the user's events, newest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events WHERE user_id = $1 ORDER BY timestamp DESC`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var (
		e        audit.Event
		category string
		userID   uuid.NullUUID
	)
	if err := rows.Scan(&category, &e.Timestamp, &userID, &e.Subject, &e.Action,
		&e.Reason, &e.RequestID, &e.ClientIP, &e.ActorID); err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	e.Category = audit.EventCategory(category)
	if userID.Valid {
		e.UserID = id.UserID(userID.UUID)
	}
	return e, nil
}
