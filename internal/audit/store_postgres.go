package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "citizenportal/pkg/domain"
)

// PostgresStore appends events to the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, action, user_id, actor_id, application_id, status, reason, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		nullableUUID(event.UserID),
		nullableUUID(event.ActorID),
		nullableApplicationID(event.ApplicationID),
		event.Status,
		event.Reason,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	query := `
		SELECT id, action, user_id, actor_id, COALESCE(application_id, 0), status, reason, request_id, created_at
		FROM audit_events
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e     Event
			user  uuid.NullUUID
			actor uuid.NullUUID
			appID int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &user, &actor, &appID, &e.Status, &e.Reason, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if user.Valid {
			e.UserID = id.UserID(user.UUID)
		}
		if actor.Valid {
			e.ActorID = id.UserID(actor.UUID)
		}
		e.ApplicationID = id.ApplicationID(appID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

func nullableUUID(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return uuid.UUID(userID)
}

func nullableApplicationID(appID id.ApplicationID) any {
	if appID.IsZero() {
		return nil
	}
	return int64(appID)
}
