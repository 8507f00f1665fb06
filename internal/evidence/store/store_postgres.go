package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dynforms/internal/evidence/models"
	"dynforms/internal/platform/postgres"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	txcontext "dynforms/pkg/platform/tx"
)

// PostgresStore persists identity documents and biometric captures.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, instance_id, doc_type, issuing_country, number_redacted, expiry_date, side, file_id, ocr_json, created_at`

const biometricColumns = `id, instance_id, video_file_id, selfie_file_id, liveness_provider, liveness_threshold, liveness_score, challenge_type, frame_time_ms, retry_count, created_at`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.IdentityDocument) error {
	query := `INSERT INTO identity_documents (` + documentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID), uuid.UUID(doc.InstanceID), doc.DocType, doc.IssuingCountry, doc.NumberRedacted,
		doc.ExpiryDate, string(doc.Side), uuid.UUID(doc.FileID), doc.OcrJSON, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create identity document: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindDocument(ctx context.Context, instanceID id.InstanceID, docID id.DocumentID) (*models.IdentityDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM identity_documents WHERE id = $1 AND instance_id = $2`
	doc, err := scanDocument(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(docID), uuid.UUID(instanceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, instanceID id.InstanceID) ([]*models.IdentityDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM identity_documents WHERE instance_id = $1 ORDER BY created_at, id`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(instanceID))
	if err != nil {
		return nil, fmt.Errorf("list identity documents: %w", err)
	}
	defer rows.Close()

	var out []*models.IdentityDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.IdentityDocument) error {
	query := `
		UPDATE identity_documents
		SET doc_type = $2, issuing_country = $3, number_redacted = $4, expiry_date = $5,
		    side = $6, file_id = $7, ocr_json = $8
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID), doc.DocType, doc.IssuingCountry, doc.NumberRedacted, doc.ExpiryDate,
		string(doc.Side), uuid.UUID(doc.FileID), doc.OcrJSON)
	if err != nil {
		return fmt.Errorf("update identity document: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, instanceID id.InstanceID, docID id.DocumentID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM identity_documents WHERE id = $1 AND instance_id = $2`,
		uuid.UUID(docID), uuid.UUID(instanceID))
	if err != nil {
		return fmt.Errorf("delete identity document: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresStore) CreateBiometric(ctx context.Context, b *models.BiometricCapture) error {
	query := `INSERT INTO biometric_captures (` + biometricColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.ID), uuid.UUID(b.InstanceID), nullFileID(b.VideoFileID), uuid.UUID(b.SelfieFileID),
		b.LivenessProvider, b.LivenessThreshold, b.LivenessScore, b.ChallengeType, b.FrameTimeMs,
		b.RetryCount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create biometric capture: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) FindBiometric(ctx context.Context, instanceID id.InstanceID, bioID id.BiometricID) (*models.BiometricCapture, error) {
	query := `SELECT ` + biometricColumns + ` FROM biometric_captures WHERE id = $1 AND instance_id = $2`
	b, err := scanBiometric(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(bioID), uuid.UUID(instanceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find biometric capture: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBiometrics(ctx context.Context, instanceID id.InstanceID) ([]*models.BiometricCapture, error) {
	query := `SELECT ` + biometricColumns + ` FROM biometric_captures WHERE instance_id = $1 ORDER BY created_at, id`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(instanceID))
	if err != nil {
		return nil, fmt.Errorf("list biometric captures: %w", err)
	}
	defer rows.Close()

	var out []*models.BiometricCapture
	for rows.Next() {
		b, err := scanBiometric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan biometric capture: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate biometric captures: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateBiometric(ctx context.Context, b *models.BiometricCapture) error {
	query := `
		UPDATE biometric_captures
		SET video_file_id = $2, selfie_file_id = $3, liveness_provider = $4, liveness_threshold = $5,
		    liveness_score = $6, challenge_type = $7, frame_time_ms = $8, retry_count = $9
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.ID), nullFileID(b.VideoFileID), uuid.UUID(b.SelfieFileID), b.LivenessProvider,
		b.LivenessThreshold, b.LivenessScore, b.ChallengeType, b.FrameTimeMs, b.RetryCount)
	if err != nil {
		return fmt.Errorf("update biometric capture: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

func (s *PostgresStore) DeleteBiometric(ctx context.Context, instanceID id.InstanceID, bioID id.BiometricID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM biometric_captures WHERE id = $1 AND instance_id = $2`,
		uuid.UUID(bioID), uuid.UUID(instanceID))
	if err != nil {
		return fmt.Errorf("delete biometric capture: %w", postgres.MapError(err))
	}
	return requireAffected(res)
}

// DeleteByInstance removes the instance's evidence rows and returns the file
// ids they referenced.
func (s *PostgresStore) DeleteByInstance(ctx context.Context, instanceID id.InstanceID) ([]id.FileID, error) {
	exec := txcontext.Executor(ctx, s.db)
	var fileIDs []id.FileID

	rows, err := exec.QueryContext(ctx,
		`DELETE FROM identity_documents WHERE instance_id = $1 RETURNING file_id`, uuid.UUID(instanceID))
	if err != nil {
		return nil, fmt.Errorf("delete instance documents: %w", postgres.MapError(err))
	}
	if fileIDs, err = collectFileIDs(rows, fileIDs); err != nil {
		return nil, fmt.Errorf("delete instance documents: %w", err)
	}

	rows, err = exec.QueryContext(ctx,
		`DELETE FROM biometric_captures WHERE instance_id = $1 RETURNING selfie_file_id, video_file_id`,
		uuid.UUID(instanceID))
	if err != nil {
		return nil, fmt.Errorf("delete instance biometrics: %w", postgres.MapError(err))
	}
	if fileIDs, err = collectFileIDs(rows, fileIDs); err != nil {
		return nil, fmt.Errorf("delete instance biometrics: %w", err)
	}
	return fileIDs, nil
}

// ReferencedFileIDs returns the candidates still referenced by any document
// or either biometric slot, across all instances.
func (s *PostgresStore) ReferencedFileIDs(ctx context.Context, candidates []id.FileID) ([]id.FileID, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	query := `
		SELECT file_id FROM identity_documents WHERE file_id = ANY($1::uuid[])
		UNION
		SELECT selfie_file_id FROM biometric_captures WHERE selfie_file_id = ANY($1::uuid[])
		UNION
		SELECT video_file_id FROM biometric_captures WHERE video_file_id = ANY($1::uuid[])
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, pq.Array(fileIDStrings(candidates)))
	if err != nil {
		return nil, fmt.Errorf("query referenced files: %w", err)
	}
	out, err := collectFileIDs(rows, nil)
	if err != nil {
		return nil, fmt.Errorf("query referenced files: %w", err)
	}
	return out, nil
}

// collectFileIDs scans every column of every row as a nullable uuid,
// appending the non-null ones to dst, and closes rows.
func collectFileIDs(rows *sql.Rows, dst []id.FileID) ([]id.FileID, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]uuid.NullUUID, len(cols))
	dests := make([]any, len(cols))
	for i := range vals {
		dests[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		for _, v := range vals {
			if v.Valid {
				dst = append(dst, id.FileID(v.UUID))
			}
		}
	}
	return dst, rows.Err()
}

func scanDocument(row postgres.Row) (*models.IdentityDocument, error) {
	var (
		doc            models.IdentityDocument
		docID          uuid.UUID
		instanceID     uuid.UUID
		fileID         uuid.UUID
		side           string
		issuingCountry sql.NullString
		numberRedacted sql.NullString
		expiryDate     sql.NullTime
		ocrJSON        sql.NullString
	)
	if err := row.Scan(&docID, &instanceID, &doc.DocType, &issuingCountry, &numberRedacted,
		&expiryDate, &side, &fileID, &ocrJSON, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.ID = id.DocumentID(docID)
	doc.InstanceID = id.InstanceID(instanceID)
	doc.FileID = id.FileID(fileID)
	doc.Side = models.DocumentSide(side)
	doc.IssuingCountry = nullString(issuingCountry)
	doc.NumberRedacted = nullString(numberRedacted)
	doc.OcrJSON = nullString(ocrJSON)
	if expiryDate.Valid {
		day := expiryDate.Time.UTC()
		doc.ExpiryDate = &day
	}
	return &doc, nil
}

func scanBiometric(row postgres.Row) (*models.BiometricCapture, error) {
	var (
		b             models.BiometricCapture
		bioID         uuid.UUID
		instanceID    uuid.UUID
		videoFileID   uuid.NullUUID
		selfieFileID  uuid.UUID
		provider      sql.NullString
		threshold     sql.NullFloat64
		score         sql.NullFloat64
		challengeType sql.NullString
		frameTimeMs   sql.NullInt32
	)
	if err := row.Scan(&bioID, &instanceID, &videoFileID, &selfieFileID, &provider, &threshold,
		&score, &challengeType, &frameTimeMs, &b.RetryCount, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BiometricID(bioID)
	b.InstanceID = id.InstanceID(instanceID)
	b.SelfieFileID = id.FileID(selfieFileID)
	if videoFileID.Valid {
		video := id.FileID(videoFileID.UUID)
		b.VideoFileID = &video
	}
	b.LivenessProvider = nullString(provider)
	b.ChallengeType = nullString(challengeType)
	if threshold.Valid {
		b.LivenessThreshold = &threshold.Float64
	}
	if score.Valid {
		b.LivenessScore = &score.Float64
	}
	if frameTimeMs.Valid {
		ms := int(frameTimeMs.Int32)
		b.FrameTimeMs = &ms
	}
	return &b, nil
}

func nullFileID(fileID *id.FileID) uuid.NullUUID {
	if fileID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*fileID), Valid: true}
}

func fileIDStrings(ids []id.FileID) []string {
	out := make([]string, len(ids))
	for i, fileID := range ids {
		out[i] = fileID.String()
	}
	return out
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
