package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyscribe/polyscribe/internal/core/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the connection pool with the application's queries.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalCondition(data []byte) (*model.Condition, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var cond model.Condition
	if err := json.Unmarshal(data, &cond); err != nil {
		return nil, err
	}
	return &cond, nil
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, status, provider, model, source_language, target_language,
			translation_enabled, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		job.ID, job.Status, job.Provider, job.Model, job.SourceLanguage,
		job.TargetLanguage, job.TranslationEnabled, options)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, provider, model, source_language, target_language,
			translation_enabled, options, warning, error, result, created_at, updated_at
		FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job                             model.Job
		options                         []byte
		warningRaw, errorRaw, resultRaw []byte
	)
	err := row.Scan(&job.ID, &job.Status, &job.Provider, &job.Model, &job.SourceLanguage,
		&job.TargetLanguage, &job.TranslationEnabled, &options, &warningRaw, &errorRaw,
		&resultRaw, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	if job.Warning, err = unmarshalCondition(warningRaw); err != nil {
		return nil, fmt.Errorf("decode warning: %w", err)
	}
	if job.Error, err = unmarshalCondition(errorRaw); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	if len(resultRaw) > 0 {
		var result model.JobResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, provider, model, source_language, target_language,
			translation_enabled, options, warning, error, result, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status model.Status) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`, jobID, status)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (s *Store) FinishJob(ctx context.Context, jobID string, status model.Status, result model.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, result = $3, updated_at = NOW() WHERE id = $1`,
		jobID, status, resultJSON)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// CancelJob marks a non-terminal job cancelled. Returns false when the job
// was already terminal, so the cancel endpoint can report a conflict.
func (s *Store) CancelJob(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'running')`, jobID)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteJobsUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Job files

func (s *Store) CreateJobFile(ctx context.Context, file *model.JobFile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_files (id, job_id, input_name, input_source, size_bytes,
			storage_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		file.ID, file.JobID, file.InputName, file.InputSource, file.SizeBytes,
		file.StoragePath, file.Status)
	if err != nil {
		return fmt.Errorf("insert job file: %w", err)
	}
	return nil
}

func (s *Store) ListJobFiles(ctx context.Context, jobID string) ([]model.JobFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, input_name, input_source, size_bytes, storage_path,
			status, detected_language, warning, error, created_at, updated_at
		FROM job_files WHERE job_id = $1 ORDER BY created_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job files: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

func collectFiles(rows pgx.Rows) ([]model.JobFile, error) {
	var files []model.JobFile
	for rows.Next() {
		var (
			file                 model.JobFile
			warningRaw, errorRaw []byte
		)
		err := rows.Scan(&file.ID, &file.JobID, &file.InputName, &file.InputSource,
			&file.SizeBytes, &file.StoragePath, &file.Status, &file.DetectedLanguage,
			&warningRaw, &errorRaw, &file.CreatedAt, &file.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job file: %w", err)
		}
		if file.Warning, err = unmarshalCondition(warningRaw); err != nil {
			return nil, fmt.Errorf("decode file warning: %w", err)
		}
		if file.Error, err = unmarshalCondition(errorRaw); err != nil {
			return nil, fmt.Errorf("decode file error: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *Store) UpdateFileStatus(ctx context.Context, fileID string, status model.Status) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE job_files SET status = $2, updated_at = NOW() WHERE id = $1`, fileID, status)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return nil
}

func (s *Store) CompleteFile(ctx context.Context, fileID string, detectedLanguage *string, warning *model.Condition) error {
	warningJSON, err := marshalJSON(warning)
	if err != nil {
		return fmt.Errorf("encode warning: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE job_files SET status = 'completed', detected_language = $2,
			warning = $3, updated_at = NOW()
		WHERE id = $1`, fileID, detectedLanguage, warningJSON)
	if err != nil {
		return fmt.Errorf("complete file: %w", err)
	}
	return nil
}

func (s *Store) FailFile(ctx context.Context, fileID string, cond model.Condition) error {
	errorJSON, err := json.Marshal(cond)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE job_files SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1`, fileID, errorJSON)
	if err != nil {
		return fmt.Errorf("fail file: %w", err)
	}
	return nil
}

func (s *Store) ListFilesUpdatedBefore(ctx context.Context, cutoff time.Time) ([]model.JobFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, input_name, input_source, size_bytes, storage_path,
			status, detected_language, warning, error, created_at, updated_at
		FROM job_files WHERE updated_at < $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired files: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

func (s *Store) DeleteFiles(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM job_files WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return nil
}

// Artifacts

func (s *Store) CreateArtifact(ctx context.Context, artifact model.Artifact) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO artifacts (id, job_id, file_id, format, variant, name,
			mime_type, kind, storage_path, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		artifact.ID, artifact.JobID, artifact.FileID, artifact.Format, artifact.Variant,
		artifact.Name, artifact.MimeType, artifact.Kind, artifact.StoragePath,
		artifact.SizeBytes, artifact.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *Store) GetArtifact(ctx context.Context, artifactID string) (*model.Artifact, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, file_id, format, variant, name, mime_type, kind,
			storage_path, size_bytes, created_at
		FROM artifacts WHERE id = $1`, artifactID)
	artifact, err := scanArtifact(row)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// GetBundleArtifact returns the bundle for a job, if one was built.
func (s *Store) GetBundleArtifact(ctx context.Context, jobID string) (*model.Artifact, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, file_id, format, variant, name, mime_type, kind,
			storage_path, size_bytes, created_at
		FROM artifacts WHERE job_id = $1 AND kind = 'bundle'
		ORDER BY created_at DESC LIMIT 1`, jobID)
	return scanArtifact(row)
}

func scanArtifact(row pgx.Row) (*model.Artifact, error) {
	var artifact model.Artifact
	err := row.Scan(&artifact.ID, &artifact.JobID, &artifact.FileID, &artifact.Format,
		&artifact.Variant, &artifact.Name, &artifact.MimeType, &artifact.Kind,
		&artifact.StoragePath, &artifact.SizeBytes, &artifact.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return &artifact, nil
}

func (s *Store) ListArtifacts(ctx context.Context, jobID string) ([]model.Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, file_id, format, variant, name, mime_type, kind,
			storage_path, size_bytes, created_at
		FROM artifacts WHERE job_id = $1 ORDER BY created_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func collectArtifacts(rows pgx.Rows) ([]model.Artifact, error) {
	var artifacts []model.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *artifact)
	}
	return artifacts, rows.Err()
}

func (s *Store) ListArtifactsCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Artifact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, file_id, format, variant, name, mime_type, kind,
			storage_path, size_bytes, created_at
		FROM artifacts WHERE created_at < $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func (s *Store) DeleteArtifacts(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM artifacts WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	return nil
}

// App settings

func (s *Store) GetAppSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

func (s *Store) SetAppSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Provider API keys (encrypted at rest by the secrets package)

type APIKeyInfo struct {
	Provider  string
	UpdatedAt time.Time
}

func (s *Store) UpsertAPIKey(ctx context.Context, provider, encryptedKey string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (provider, encrypted_key, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (provider) DO UPDATE SET encrypted_key = EXCLUDED.encrypted_key, updated_at = NOW()`,
		provider, encryptedKey)
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

func (s *Store) GetAPIKey(ctx context.Context, provider string) (string, bool, error) {
	var encrypted string
	err := s.pool.QueryRow(ctx,
		`SELECT encrypted_key FROM api_keys WHERE provider = $1`, provider).Scan(&encrypted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get api key: %w", err)
	}
	return encrypted, true, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, provider string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKeyInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, updated_at FROM api_keys ORDER BY provider ASC`)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKeyInfo
	for rows.Next() {
		var info APIKeyInfo
		if err := rows.Scan(&info.Provider, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, info)
	}
	return keys, rows.Err()
}
