package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photobomb/internal/models"
)

const pipelineColumns = `pipeline_id, user_id, pipeline_type, COALESCE(name, ''), COALESCE(description, ''),
	status, total_photos, completed_photos, failed_photos, skipped_photos,
	avg_processing_time_ms, total_processing_time_ms, config, COALESCE(error, ''),
	created_at, started_at, completed_at, cancelled_at`

func scanPipeline(row pgx.Row) (*models.Pipeline, error) {
	p := &models.Pipeline{}
	err := row.Scan(&p.ID, &p.UserID, &p.Type, &p.Name, &p.Description,
		&p.Status, &p.TotalPhotos, &p.CompletedPhotos, &p.FailedPhotos, &p.SkippedPhotos,
		&p.AvgProcessingTimeMs, &p.TotalProcessingTimeMs, &p.Config, &p.Error,
		&p.CreatedAt, &p.StartedAt, &p.CompletedAt, &p.CancelledAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePipeline inserts a new pipeline row.
func (s *PostgresStore) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PipelinePending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO pipelines (pipeline_id, user_id, pipeline_type, name, description, status, total_photos, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		p.ID, p.UserID, p.Type, p.Name, p.Description, p.Status, p.TotalPhotos, p.Config,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	return nil
}

// GetPipeline returns a pipeline by id, or nil when absent.
func (s *PostgresStore) GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	p, err := scanPipeline(s.db.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE pipeline_id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	return p, nil
}

// ListPipelines returns the most recent pipelines, optionally filtered by
// user and status.
func (s *PostgresStore) ListPipelines(ctx context.Context, userID *uuid.UUID, status string, limit, offset int) ([]models.Pipeline, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines
		 WHERE ($1::uuid IS NULL OR user_id = $1)
		   AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

// SetPipelineStatus transitions a pipeline and stamps the matching
// timestamp column for the new state.
func (s *PostgresStore) SetPipelineStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE pipelines SET status = $2,
		     error = NULLIF($3, ''),
		     started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN NOW() ELSE started_at END,
		     completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END,
		     cancelled_at = CASE WHEN $2 = 'cancelled' THEN NOW() ELSE cancelled_at END
		 WHERE pipeline_id = $1`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("set pipeline status: %w", err)
	}
	return nil
}

// UpdatePipelineProgress writes recomputed counters and timing aggregates.
func (s *PostgresStore) UpdatePipelineProgress(ctx context.Context, p *models.Pipeline) error {
	_, err := s.db.Exec(ctx,
		`UPDATE pipelines
		 SET completed_photos = $2, failed_photos = $3, skipped_photos = $4,
		     avg_processing_time_ms = $5, total_processing_time_ms = $6
		 WHERE pipeline_id = $1`,
		p.ID, p.CompletedPhotos, p.FailedPhotos, p.SkippedPhotos,
		p.AvgProcessingTimeMs, p.TotalProcessingTimeMs)
	if err != nil {
		return fmt.Errorf("update pipeline progress: %w", err)
	}
	return nil
}

// DeletePipeline removes a pipeline and, via cascade, its tasks.
func (s *PostgresStore) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pipelines WHERE pipeline_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	return nil
}

const taskColumns = `task_id, pipeline_id, photo_id, photo_filename, source_key, COALESCE(job_id, ''), status,
	total_time_ms, download_time_ms, thumbnail_time_ms, face_detection_time_ms,
	animal_detection_time_ms, classification_time_ms, ocr_time_ms, db_write_time_ms,
	faces_detected, animals_detected, tags_created, text_words_extracted,
	COALESCE(error_message, ''), COALESCE(error_type, ''), retry_count,
	created_at, started_at, completed_at`

func scanTask(row pgx.Row) (*models.PipelineTask, error) {
	t := &models.PipelineTask{}
	err := row.Scan(&t.ID, &t.PipelineID, &t.PhotoID, &t.Filename, &t.SourceKey, &t.JobID, &t.Status,
		&t.TotalTimeMs, &t.DownloadTimeMs, &t.ThumbnailTimeMs, &t.FaceDetectionTimeMs,
		&t.AnimalDetectionTimeMs, &t.ClassificationTimeMs, &t.OCRTimeMs, &t.DBWriteTimeMs,
		&t.FacesDetected, &t.AnimalsDetected, &t.TagsCreated, &t.TextWordsExtracted,
		&t.ErrorMessage, &t.ErrorType, &t.RetryCount,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTask inserts one task row. The unique (pipeline_id, photo_id) pair
// means a photo appears at most once per pipeline.
func (s *PostgresStore) CreateTask(ctx context.Context, t *models.PipelineTask) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = models.TaskPending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO pipeline_tasks (task_id, pipeline_id, photo_id, photo_filename, source_key, job_id, status)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7) RETURNING created_at`,
		t.ID, t.PipelineID, t.PhotoID, t.Filename, t.SourceKey, t.JobID, t.Status,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns the task for a pipeline/photo pair, or nil when absent.
func (s *PostgresStore) GetTask(ctx context.Context, pipelineID, photoID uuid.UUID) (*models.PipelineTask, error) {
	t, err := scanTask(s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM pipeline_tasks WHERE pipeline_id = $1 AND photo_id = $2`,
		pipelineID, photoID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns a pipeline's tasks, optionally filtered by status.
func (s *PostgresStore) ListTasks(ctx context.Context, pipelineID uuid.UUID, statuses []string) ([]models.PipelineTask, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+taskColumns+` FROM pipeline_tasks
		 WHERE pipeline_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		 ORDER BY created_at`, pipelineID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.PipelineTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes the mutable fields of a task back.
func (s *PostgresStore) UpdateTask(ctx context.Context, t *models.PipelineTask) error {
	_, err := s.db.Exec(ctx,
		`UPDATE pipeline_tasks
		 SET status = $2, source_key = $21, job_id = NULLIF($3, ''),
		     total_time_ms = $4, download_time_ms = $5, thumbnail_time_ms = $6,
		     face_detection_time_ms = $7, animal_detection_time_ms = $8,
		     classification_time_ms = $9, ocr_time_ms = $10, db_write_time_ms = $11,
		     faces_detected = $12, animals_detected = $13, tags_created = $14,
		     text_words_extracted = $15,
		     error_message = NULLIF($16, ''), error_type = NULLIF($17, ''), retry_count = $18,
		     started_at = $19, completed_at = $20
		 WHERE task_id = $1`,
		t.ID, t.Status, t.JobID,
		t.TotalTimeMs, t.DownloadTimeMs, t.ThumbnailTimeMs,
		t.FaceDetectionTimeMs, t.AnimalDetectionTimeMs,
		t.ClassificationTimeMs, t.OCRTimeMs, t.DBWriteTimeMs,
		t.FacesDetected, t.AnimalsDetected, t.TagsCreated, t.TextWordsExtracted,
		t.ErrorMessage, t.ErrorType, t.RetryCount,
		t.StartedAt, t.CompletedAt, t.SourceKey)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// MarkTaskRunning transitions a task to running and stamps started_at once.
func (s *PostgresStore) MarkTaskRunning(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE pipeline_tasks SET status = 'running',
		     started_at = COALESCE(started_at, NOW())
		 WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return nil
}

// CancelPendingTasks marks every non-terminal task of a pipeline cancelled
// and returns how many were affected.
func (s *PostgresStore) CancelPendingTasks(ctx context.Context, pipelineID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE pipeline_tasks SET status = 'cancelled', completed_at = NOW()
		 WHERE pipeline_id = $1 AND status IN ('pending', 'queued', 'running')`,
		pipelineID)
	if err != nil {
		return 0, fmt.Errorf("cancel pending tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TaskStatusCounts aggregates a pipeline's tasks by status.
func (s *PostgresStore) TaskStatusCounts(ctx context.Context, pipelineID uuid.UUID) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM pipeline_tasks WHERE pipeline_id = $1 GROUP BY status`,
		pipelineID)
	if err != nil {
		return nil, fmt.Errorf("count task statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// TaskTimingAggregates returns the average and total processing time over a
// pipeline's completed tasks, in milliseconds.
func (s *PostgresStore) TaskTimingAggregates(ctx context.Context, pipelineID uuid.UUID) (avgMs, totalMs int64, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(total_time_ms), 0)::bigint, COALESCE(SUM(total_time_ms), 0)
		 FROM pipeline_tasks WHERE pipeline_id = $1 AND status = 'completed'`,
		pipelineID).Scan(&avgMs, &totalMs)
	if err != nil {
		return 0, 0, fmt.Errorf("task timing aggregates: %w", err)
	}
	return avgMs, totalMs, nil
}
