package refreshtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"citizenportal/internal/auth/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
	txutil "citizenportal/pkg/platform/tx"
)

const refreshTokenColumns = `token_hash, session_id, user_id, user_agent, ip, expires_at, used, used_at, revoked_at, created_at`

// PostgresRefreshTokenStore persists refresh tokens in PostgreSQL.
type PostgresRefreshTokenStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed refresh token store.
func NewPostgres(db *sql.DB) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (s *PostgresRefreshTokenStore) Create(ctx context.Context, record *models.RefreshTokenRecord) error {
	query := `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		record.TokenHash,
		uuid.UUID(record.SessionID),
		uuid.UUID(record.UserID),
		record.UserAgent,
		record.IP,
		record.ExpiresAt,
		record.Used,
		record.UsedAt,
		record.RevokedAt,
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("refresh token already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *PostgresRefreshTokenStore) Find(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	record, err := scanRefreshToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound()
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return record, nil
}

// Consume locks the row, validates it and marks it used in one transaction.
func (s *PostgresRefreshTokenStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	var record *models.RefreshTokenRecord
	err := txutil.Run(ctx, s.db, 0, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, tokenHash)
		locked, err := scanRefreshToken(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errNotFound()
			}
			return fmt.Errorf("lock refresh token: %w", err)
		}
		record = locked
		if err := consumeError(record, now); err != nil {
			return err
		}

		record.MarkUsed(now)
		if _, err := tx.ExecContext(ctx,
			`UPDATE refresh_tokens SET used = TRUE, used_at = $2 WHERE token_hash = $1`,
			tokenHash, record.UsedAt,
		); err != nil {
			return fmt.Errorf("mark refresh token used: %w", err)
		}
		return nil
	})
	if err != nil {
		// A refused token is returned with the error so the caller can
		// revoke its session on replay.
		return record, err
	}
	return record, nil
}

func (s *PostgresRefreshTokenStore) RevokeSession(ctx context.Context, sessionID id.SessionID, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE session_id = $1 AND revoked_at IS NULL`,
		uuid.UUID(sessionID), now,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke refresh session: %w", err)
	}
	return int(n), nil
}

func (s *PostgresRefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(n), nil
}

func scanRefreshToken(row *sql.Row) (*models.RefreshTokenRecord, error) {
	var (
		record    models.RefreshTokenRecord
		sessionID uuid.UUID
		userID    uuid.UUID
		usedAt    sql.NullTime
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&record.TokenHash,
		&sessionID,
		&userID,
		&record.UserAgent,
		&record.IP,
		&record.ExpiresAt,
		&record.Used,
		&usedAt,
		&revokedAt,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	record.SessionID = id.SessionID(sessionID)
	record.UserID = id.UserID(userID)
	if usedAt.Valid {
		t := usedAt.Time
		record.UsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		record.RevokedAt = &t
	}
	return &record, nil
}
