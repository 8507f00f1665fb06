package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dynforms/internal/identity/models"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	txcontext "dynforms/pkg/platform/tx"
)

// PostgresUsers persists users in PostgreSQL. Email uniqueness is enforced
// by the users_email_key constraint.
type PostgresUsers struct {
	db *sql.DB
}

func NewPostgresUsers(db *sql.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

const userColumns = `id, email, role, password_hash, created_at`

func (s *PostgresUsers) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(u.ID),
		u.Email,
		string(u.Role),
		u.PasswordHash,
		u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresUsers) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.findOne(ctx, "find user by id", query, uuid.UUID(userID))
}

func (s *PostgresUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.findOne(ctx, "find user by email", query, email)
}

func (s *PostgresUsers) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresUsers) findOne(ctx context.Context, op, query string, arg any) (*models.User, error) {
	u, err := scanUser(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(row postgres.Row) (*models.User, error) {
	var (
		u      models.User
		userID uuid.UUID
		role   string
	)
	if err := row.Scan(&userID, &u.Email, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(userID)
	u.Role = id.Role(role)
	return &u, nil
}
