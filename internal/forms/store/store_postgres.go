package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dynforms/internal/forms/models"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	txcontext "dynforms/pkg/platform/tx"
)

// PostgresInstances persists form instances. The composite foreign key on
// (template_id, template_version) keeps bound versions from disappearing.
type PostgresInstances struct {
	db *sql.DB
}

func NewPostgresInstances(db *sql.DB) *PostgresInstances {
	return &PostgresInstances{db: db}
}

const instanceColumns = `id, template_id, template_version, assignee_user_id, status, email, phone_e164, country, started_at, submitted_at`

func (s *PostgresInstances) Create(ctx context.Context, fi *models.FormInstance) error {
	query := `INSERT INTO form_instances (` + instanceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(fi.ID), uuid.UUID(fi.TemplateID), fi.TemplateVersion, nullUserID(fi.AssigneeUserID),
		string(fi.Status), fi.Email, fi.PhoneE164, fi.Country, fi.StartedAt, fi.SubmittedAt)
	if err != nil {
		return fmt.Errorf("create form instance: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresInstances) FindByID(ctx context.Context, instanceID id.InstanceID) (*models.FormInstance, error) {
	return s.findByID(ctx, instanceID, "")
}

func (s *PostgresInstances) FindByIDForUpdate(ctx context.Context, instanceID id.InstanceID) (*models.FormInstance, error) {
	return s.findByID(ctx, instanceID, " FOR UPDATE")
}

func (s *PostgresInstances) findByID(ctx context.Context, instanceID id.InstanceID, lock string) (*models.FormInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM form_instances WHERE id = $1` + lock
	fi, err := scanInstance(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(instanceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find form instance: %w", err)
	}
	return fi, nil
}

func (s *PostgresInstances) List(ctx context.Context) ([]*models.FormInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM form_instances ORDER BY started_at DESC, id`
	return s.list(ctx, query)
}

func (s *PostgresInstances) ListByAssignee(ctx context.Context, userID id.UserID) ([]*models.FormInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM form_instances WHERE assignee_user_id = $1 ORDER BY started_at DESC, id`
	return s.list(ctx, query, uuid.UUID(userID))
}

func (s *PostgresInstances) list(ctx context.Context, query string, args ...any) ([]*models.FormInstance, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list form instances: %w", err)
	}
	defer rows.Close()

	var out []*models.FormInstance
	for rows.Next() {
		fi, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form instance: %w", err)
		}
		out = append(out, fi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form instances: %w", err)
	}
	return out, nil
}

func (s *PostgresInstances) Update(ctx context.Context, fi *models.FormInstance) error {
	query := `
		UPDATE form_instances
		SET assignee_user_id = $2, status = $3, email = $4, phone_e164 = $5, country = $6, submitted_at = $7
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(fi.ID), nullUserID(fi.AssigneeUserID), string(fi.Status),
		fi.Email, fi.PhoneE164, fi.Country, fi.SubmittedAt)
	if err != nil {
		return fmt.Errorf("update form instance: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresInstances) Delete(ctx context.Context, instanceID id.InstanceID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM form_instances WHERE id = $1`, uuid.UUID(instanceID))
	if err != nil {
		return fmt.Errorf("delete form instance: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresInstances) CountByTemplate(ctx context.Context, templateID id.TemplateID) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_instances WHERE template_id = $1`, uuid.UUID(templateID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances by template: %w", err)
	}
	return n, nil
}

func (s *PostgresInstances) CountByTemplateVersion(ctx context.Context, templateID id.TemplateID, version int) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_instances WHERE template_id = $1 AND template_version = $2`,
		uuid.UUID(templateID), version).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances by template version: %w", err)
	}
	return n, nil
}

func scanInstance(row postgres.Row) (*models.FormInstance, error) {
	var (
		fi          models.FormInstance
		instanceID  uuid.UUID
		templateID  uuid.UUID
		assignee    uuid.NullUUID
		status      string
		email       sql.NullString
		phone       sql.NullString
		country     sql.NullString
		submittedAt sql.NullTime
	)
	if err := row.Scan(&instanceID, &templateID, &fi.TemplateVersion, &assignee, &status,
		&email, &phone, &country, &fi.StartedAt, &submittedAt); err != nil {
		return nil, err
	}
	fi.ID = id.InstanceID(instanceID)
	fi.TemplateID = id.TemplateID(templateID)
	if assignee.Valid {
		userID := id.UserID(assignee.UUID)
		fi.AssigneeUserID = &userID
	}
	fi.Status = models.InstanceStatus(status)
	fi.Email = nullString(email)
	fi.PhoneE164 = nullString(phone)
	fi.Country = nullString(country)
	if submittedAt.Valid {
		at := submittedAt.Time.UTC()
		fi.SubmittedAt = &at
	}
	return &fi, nil
}

// PostgresSteps persists step responses. The unique (instance_id, step_key)
// constraint turns a concurrent duplicate insert into sentinel.ErrConflict.
type PostgresSteps struct {
	db *sql.DB
}

func NewPostgresSteps(db *sql.DB) *PostgresSteps {
	return &PostgresSteps{db: db}
}

const stepColumns = `id, instance_id, step_key, step_order, data_json, validation_errors, created_at, updated_at`

func (s *PostgresSteps) Create(ctx context.Context, step *models.FormStepResponse) error {
	query := `INSERT INTO form_step_responses (` + stepColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(step.ID), uuid.UUID(step.InstanceID), step.StepKey, step.StepOrder,
		step.DataJSON, step.ValidationErrors, step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create step response: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresSteps) FindByKey(ctx context.Context, instanceID id.InstanceID, key string) (*models.FormStepResponse, error) {
	query := `SELECT ` + stepColumns + ` FROM form_step_responses WHERE instance_id = $1 AND step_key = $2`
	step, err := scanStep(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(instanceID), key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find step response: %w", err)
	}
	return step, nil
}

func (s *PostgresSteps) ListByInstance(ctx context.Context, instanceID id.InstanceID) ([]*models.FormStepResponse, error) {
	query := `SELECT ` + stepColumns + ` FROM form_step_responses WHERE instance_id = $1 ORDER BY step_order, step_key`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(instanceID))
	if err != nil {
		return nil, fmt.Errorf("list step responses: %w", err)
	}
	defer rows.Close()

	var out []*models.FormStepResponse
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step response: %w", err)
		}
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step responses: %w", err)
	}
	return out, nil
}

func (s *PostgresSteps) Update(ctx context.Context, step *models.FormStepResponse) error {
	query := `
		UPDATE form_step_responses
		SET data_json = $3, validation_errors = $4, updated_at = $5
		WHERE instance_id = $1 AND step_key = $2
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(step.InstanceID), step.StepKey, step.DataJSON, step.ValidationErrors, step.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update step response: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresSteps) Delete(ctx context.Context, instanceID id.InstanceID, key string) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM form_step_responses WHERE instance_id = $1 AND step_key = $2`,
		uuid.UUID(instanceID), key)
	if err != nil {
		return fmt.Errorf("delete step response: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresSteps) DeleteByInstance(ctx context.Context, instanceID id.InstanceID) (int, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM form_step_responses WHERE instance_id = $1`, uuid.UUID(instanceID))
	if err != nil {
		return 0, fmt.Errorf("delete step responses: %w", postgres.MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete step responses rows affected: %w", err)
	}
	return int(n), nil
}

func scanStep(row postgres.Row) (*models.FormStepResponse, error) {
	var (
		step             models.FormStepResponse
		stepID           uuid.UUID
		instanceID       uuid.UUID
		validationErrors sql.NullString
	)
	if err := row.Scan(&stepID, &instanceID, &step.StepKey, &step.StepOrder, &step.DataJSON,
		&validationErrors, &step.CreatedAt, &step.UpdatedAt); err != nil {
		return nil, err
	}
	step.ID = id.StepResponseID(stepID)
	step.InstanceID = id.InstanceID(instanceID)
	step.ValidationErrors = nullString(validationErrors)
	return &step, nil
}

func nullUserID(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
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
