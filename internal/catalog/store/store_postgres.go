package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dynforms/internal/catalog/models"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	txcontext "dynforms/pkg/platform/tx"
)

// PostgresTemplates persists templates in PostgreSQL.
type PostgresTemplates struct {
	db *sql.DB
}

func NewPostgresTemplates(db *sql.DB) *PostgresTemplates {
	return &PostgresTemplates{db: db}
}

const templateColumns = `id, name, description, status, created_by, created_at, updated_at`

func (s *PostgresTemplates) Create(ctx context.Context, t *models.Template) error {
	query := `INSERT INTO templates (` + templateColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Description, string(t.Status), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresTemplates) FindByID(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	return s.findByID(ctx, templateID, "")
}

// FindByIDForUpdate locks the template row until the surrounding transaction
// ends, serialising version-number assignment per template.
func (s *PostgresTemplates) FindByIDForUpdate(ctx context.Context, templateID id.TemplateID) (*models.Template, error) {
	return s.findByID(ctx, templateID, " FOR UPDATE")
}

func (s *PostgresTemplates) findByID(ctx context.Context, templateID id.TemplateID, lock string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1` + lock
	t, err := scanTemplate(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(templateID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

func (s *PostgresTemplates) List(ctx context.Context) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY created_at DESC, id`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func (s *PostgresTemplates) Update(ctx context.Context, t *models.Template) error {
	query := `
		UPDATE templates
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Description, string(t.Status), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update template: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresTemplates) Delete(ctx context.Context, templateID id.TemplateID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM templates WHERE id = $1`, uuid.UUID(templateID))
	if err != nil {
		return fmt.Errorf("delete template: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func scanTemplate(row postgres.Row) (*models.Template, error) {
	var (
		t           models.Template
		templateID  uuid.UUID
		status      string
		description sql.NullString
		createdBy   sql.NullString
	)
	if err := row.Scan(&templateID, &t.Name, &description, &status, &createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TemplateID(templateID)
	t.Status = models.TemplateStatus(status)
	t.Description = nullString(description)
	t.CreatedBy = nullString(createdBy)
	return &t, nil
}

// PostgresVersions persists template versions. The unique
// (template_id, version) constraint backs the row lock taken by the service.
type PostgresVersions struct {
	db *sql.DB
}

func NewPostgresVersions(db *sql.DB) *PostgresVersions {
	return &PostgresVersions{db: db}
}

const versionColumns = `id, template_id, version, is_published, design_json, json_schema, created_by, created_at, updated_at`

func (s *PostgresVersions) Create(ctx context.Context, v *models.TemplateVersion) error {
	query := `INSERT INTO template_versions (` + versionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(v.ID), uuid.UUID(v.TemplateID), v.Version, v.IsPublished,
		v.DesignJSON, v.JSONSchema, v.CreatedBy, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template version: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresVersions) MaxVersion(ctx context.Context, templateID id.TemplateID) (int, error) {
	var highest int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM template_versions WHERE template_id = $1`,
		uuid.UUID(templateID)).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max template version: %w", err)
	}
	return highest, nil
}

func (s *PostgresVersions) Find(ctx context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM template_versions WHERE template_id = $1 AND version = $2`
	return s.findOne(ctx, query, uuid.UUID(templateID), version)
}

func (s *PostgresVersions) FindLatest(ctx context.Context, templateID id.TemplateID, publishedOnly bool) (*models.TemplateVersion, error) {
	query := `
		SELECT ` + versionColumns + ` FROM template_versions
		WHERE template_id = $1 AND ($2 = FALSE OR is_published)
		ORDER BY version DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(templateID), publishedOnly)
}

func (s *PostgresVersions) findOne(ctx context.Context, query string, args ...any) (*models.TemplateVersion, error) {
	v, err := scanVersion(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find template version: %w", err)
	}
	return v, nil
}

func (s *PostgresVersions) ListByTemplate(ctx context.Context, templateID id.TemplateID) ([]*models.TemplateVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM template_versions WHERE template_id = $1 ORDER BY version`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(templateID))
	if err != nil {
		return nil, fmt.Errorf("list template versions: %w", err)
	}
	defer rows.Close()

	var out []*models.TemplateVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template versions: %w", err)
	}
	return out, nil
}

func (s *PostgresVersions) Update(ctx context.Context, v *models.TemplateVersion) error {
	query := `
		UPDATE template_versions
		SET is_published = $3, design_json = $4, json_schema = $5, updated_at = $6
		WHERE template_id = $1 AND version = $2
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(v.TemplateID), v.Version, v.IsPublished, v.DesignJSON, v.JSONSchema, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update template version: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresVersions) Delete(ctx context.Context, templateID id.TemplateID, version int) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM template_versions WHERE template_id = $1 AND version = $2`,
		uuid.UUID(templateID), version)
	if err != nil {
		return fmt.Errorf("delete template version: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresVersions) DeleteByTemplate(ctx context.Context, templateID id.TemplateID) (int, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM template_versions WHERE template_id = $1`, uuid.UUID(templateID))
	if err != nil {
		return 0, fmt.Errorf("delete template versions: %w", postgres.MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete template versions rows affected: %w", err)
	}
	return int(n), nil
}

func scanVersion(row postgres.Row) (*models.TemplateVersion, error) {
	var (
		v          models.TemplateVersion
		versionID  uuid.UUID
		templateID uuid.UUID
		jsonSchema sql.NullString
		createdBy  sql.NullString
	)
	if err := row.Scan(&versionID, &templateID, &v.Version, &v.IsPublished, &v.DesignJSON,
		&jsonSchema, &createdBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.ID = id.TemplateVersionID(versionID)
	v.TemplateID = id.TemplateID(templateID)
	v.JSONSchema = nullString(jsonSchema)
	v.CreatedBy = nullString(createdBy)
	return &v, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
