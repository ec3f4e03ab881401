package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// dbExecutor is satisfied by both *sql.DB and *sql.Tx.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresUsers persists users in PostgreSQL.
type PostgresUsers struct {
	db        dbExecutor
	forUpdate bool
}

// NewPostgresUsers constructs a user store on a connection pool.
func NewPostgresUsers(db *sql.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

// NewPostgresUsersTx constructs a user store bound to tx. Reads take row
// locks that are held until the transaction ends.
func NewPostgresUsersTx(tx *sql.Tx) *PostgresUsers {
	return &PostgresUsers{db: tx, forUpdate: true}
}

const userColumns = `id, email, password_hash, name, role, verification_status,
	rejection_reason, rejection_date, created_at, updated_at`

func (s *PostgresUsers) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		string(user.VerificationStatus),
		user.RejectionReason,
		user.RejectionDate,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUsers) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1` + s.lockClause()
	return s.findOne(ctx, query, uuid.UUID(userID))
}

func (s *PostgresUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)` + s.lockClause()
	return s.findOne(ctx, query, email)
}

func (s *PostgresUsers) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, role = $5, verification_status = $6,
			rejection_reason = $7, rejection_date = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		string(user.VerificationStatus),
		user.RejectionReason,
		user.RejectionDate,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOneRow(res, "user")
}

func (s *PostgresUsers) lockClause() string {
	if s.forUpdate {
		return ` FOR UPDATE`
	}
	return ""
}

func (s *PostgresUsers) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var (
		user            models.User
		userID          uuid.UUID
		role, status    string
		rejectionReason sql.NullString
		rejectionDate   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&userID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&role,
		&status,
		&rejectionReason,
		&rejectionDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.UserID(userID)
	user.Role = models.Role(role)
	user.VerificationStatus = models.Status(status)
	if rejectionReason.Valid {
		user.RejectionReason = &rejectionReason.String
	}
	if rejectionDate.Valid {
		t := rejectionDate.Time
		user.RejectionDate = &t
	}
	return &user, nil
}

// PostgresApplications persists applications in PostgreSQL.
type PostgresApplications struct {
	db        dbExecutor
	forUpdate bool
}

// NewPostgresApplications constructs an application store on a connection pool.
func NewPostgresApplications(db *sql.DB) *PostgresApplications {
	return &PostgresApplications{db: db}
}

// NewPostgresApplicationsTx constructs an application store bound to tx.
func NewPostgresApplicationsTx(tx *sql.Tx) *PostgresApplications {
	return &PostgresApplications{db: tx, forUpdate: true}
}

const applicationColumns = `a.id, a.user_id, a.first_name, a.middle_name, a.last_name, a.full_name,
	a.address, a.phone, a.date_of_birth,
	COALESCE(a.id_card_front, ''), COALESCE(a.id_card_back, ''), COALESCE(a.selfie_image, ''),
	a.ai_analysis, a.status, a.reviewed_by, a.reviewed_at, a.review_notes,
	a.submitted_at, a.created_at, a.updated_at`

// Create inserts app and assigns the generated ID.
func (s *PostgresApplications) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (
			user_id, first_name, middle_name, last_name, full_name, address, phone, date_of_birth,
			id_card_front, id_card_back, selfie_image, ai_analysis, status,
			reviewed_by, reviewed_at, review_notes, submitted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $13,
			$14, $15, $16, $17, $18, $19
		)
		RETURNING id
	`
	var appID int64
	err := s.db.QueryRowContext(ctx, query,
		uuid.UUID(app.UserID),
		app.FirstName,
		app.MiddleName,
		app.LastName,
		app.FullName,
		app.Address,
		app.Phone,
		app.DateOfBirth,
		app.IDCardFront,
		app.IDCardBack,
		app.SelfieImage,
		nullableJSON(app.AIAnalysis),
		string(app.Status),
		nullableUserID(app.ReviewedBy),
		app.ReviewedAt,
		app.ReviewNotes,
		app.SubmittedAt,
		app.CreatedAt,
		app.UpdatedAt,
	).Scan(&appID)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	return nil
}

func (s *PostgresApplications) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications a WHERE a.id = $1` + s.lockClause()
	return s.findOne(ctx, query, int64(appID))
}

// FindCurrentByUser returns the most recently created application.
func (s *PostgresApplications) FindCurrentByUser(ctx context.Context, userID id.UserID) (*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications a
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT 1` + s.lockClause()
	return s.findOne(ctx, query, uuid.UUID(userID))
}

// ListByUser returns every application of the user, newest first.
func (s *PostgresApplications) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications a
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC, a.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list applications by user: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func (s *PostgresApplications) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications
		SET first_name = $2, middle_name = $3, last_name = $4, full_name = $5,
			address = $6, phone = $7, date_of_birth = $8,
			id_card_front = NULLIF($9, ''), id_card_back = NULLIF($10, ''), selfie_image = NULLIF($11, ''),
			ai_analysis = $12, status = $13, reviewed_by = $14, reviewed_at = $15, review_notes = $16,
			submitted_at = $17, updated_at = $18
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		int64(app.ID),
		app.FirstName,
		app.MiddleName,
		app.LastName,
		app.FullName,
		app.Address,
		app.Phone,
		app.DateOfBirth,
		app.IDCardFront,
		app.IDCardBack,
		app.SelfieImage,
		nullableJSON(app.AIAnalysis),
		string(app.Status),
		nullableUserID(app.ReviewedBy),
		app.ReviewedAt,
		app.ReviewNotes,
		app.SubmittedAt,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return expectOneRow(res, "application")
}

// ListByStatus returns applications in the given status joined with the
// owner's email, oldest submission first.
func (s *PostgresApplications) ListByStatus(ctx context.Context, status models.Status) ([]models.ReviewItem, error) {
	query := `
		SELECT ` + applicationColumns + `, u.email
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.status = $1
		ORDER BY a.submitted_at ASC, a.id ASC
	`
	return s.listReviewItems(ctx, query, string(status))
}

// ListDecided returns non-pending applications, most recent decision first.
func (s *PostgresApplications) ListDecided(ctx context.Context, filter *models.Status) ([]models.ReviewItem, error) {
	statuses := []string{
		string(models.StatusApproved),
		string(models.StatusRejected),
		string(models.StatusNeedsInfo),
	}
	if filter != nil {
		statuses = []string{string(*filter)}
	}
	query := `
		SELECT ` + applicationColumns + `, u.email
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.status = ANY($1)
		ORDER BY a.reviewed_at DESC NULLS LAST, a.updated_at DESC, a.id DESC
	`
	return s.listReviewItems(ctx, query, pq.Array(statuses))
}

func (s *PostgresApplications) listReviewItems(ctx context.Context, query string, args ...any) ([]models.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	items := make([]models.ReviewItem, 0)
	for rows.Next() {
		var email string
		app, err := scanApplication(rows, &email)
		if err != nil {
			return nil, err
		}
		items = append(items, models.ReviewItem{Application: app, Email: email})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return items, nil
}

func (s *PostgresApplications) lockClause() string {
	if s.forUpdate {
		return ` FOR UPDATE`
	}
	return ""
}

func (s *PostgresApplications) findOne(ctx context.Context, query string, args ...any) (*models.Application, error) {
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return app, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner, extra ...any) (*models.Application, error) {
	var (
		app        models.Application
		appID      int64
		userID     uuid.UUID
		analysis   []byte
		status     string
		reviewedBy uuid.NullUUID
		reviewedAt sql.NullTime
	)
	dest := []any{
		&appID,
		&userID,
		&app.FirstName,
		&app.MiddleName,
		&app.LastName,
		&app.FullName,
		&app.Address,
		&app.Phone,
		&app.DateOfBirth,
		&app.IDCardFront,
		&app.IDCardBack,
		&app.SelfieImage,
		&analysis,
		&status,
		&reviewedBy,
		&reviewedAt,
		&app.ReviewNotes,
		&app.SubmittedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.UserID = id.UserID(userID)
	app.Status = models.Status(status)
	if len(analysis) > 0 {
		app.AIAnalysis = analysis
	}
	if reviewedBy.Valid {
		reviewer := id.UserID(reviewedBy.UUID)
		app.ReviewedBy = &reviewer
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	return &app, nil
}

// nullableJSON passes JSONB as text; lib/pq would otherwise encode []byte as
// bytea.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableUserID(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return uuid.UUID(*userID)
}

func expectOneRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %w", entity, sentinel.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

