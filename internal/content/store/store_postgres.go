package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dynforms/internal/content/models"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	txcontext "dynforms/pkg/platform/tx"
)

// PostgresStore persists file metadata in PostgreSQL.
// This store is pure I/O; reference counting belongs to the content service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed file store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fileColumns = `id, storage_key, mime_type, size_bytes, sha256_hex, encrypted_at_rest, created_at`

func (s *PostgresStore) Create(ctx context.Context, f *models.FileObject) error {
	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(f.ID),
		f.StorageKey,
		f.MimeType,
		f.SizeBytes,
		f.Sha256Hex,
		f.EncryptedAtRest,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create file: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, fileID id.FileID) (*models.FileObject, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	f, err := scanFile(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(fileID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find file by id: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.FileID) ([]*models.FileObject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ANY($1::uuid[]) ORDER BY created_at, id`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, pq.Array(fileIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("find files by ids: %w", err)
	}
	defer rows.Close()

	var out []*models.FileObject
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []id.FileID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM files WHERE id = ANY($1::uuid[])`, pq.Array(fileIDStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", postgres.MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete files rows affected: %w", err)
	}
	return int(n), nil
}

// LockByIDs takes row locks on the files in id order so that two releases
// over overlapping sets cannot deadlock. It must run inside a transaction.
func (s *PostgresStore) LockByIDs(ctx context.Context, ids []id.FileID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT id FROM files WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, pq.Array(fileIDStrings(ids)))
	if err != nil {
		return fmt.Errorf("lock files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock files: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

func scanFile(row postgres.Row) (*models.FileObject, error) {
	var (
		f         models.FileObject
		fileID    uuid.UUID
		sha256Hex sql.NullString
	)
	if err := row.Scan(&fileID, &f.StorageKey, &f.MimeType, &f.SizeBytes, &sha256Hex, &f.EncryptedAtRest, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.ID = id.FileID(fileID)
	if sha256Hex.Valid {
		f.Sha256Hex = &sha256Hex.String
	}
	return &f, nil
}

func fileIDStrings(ids []id.FileID) []string {
	out := make([]string, len(ids))
	for i, fileID := range ids {
		out[i] = fileID.String()
	}
	return out
}
