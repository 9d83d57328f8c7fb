package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/models"
)

// store is the slice of the storage layer the orchestrator drives.
type store interface {
	CreatePipeline(ctx context.Context, p *models.Pipeline) error
	GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error)
	SetPipelineStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error
	UpdatePipelineProgress(ctx context.Context, p *models.Pipeline) error
	DeletePipeline(ctx context.Context, id uuid.UUID) error
	CreateTask(ctx context.Context, t *models.PipelineTask) error
	GetTask(ctx context.Context, pipelineID, photoID uuid.UUID) (*models.PipelineTask, error)
	ListTasks(ctx context.Context, pipelineID uuid.UUID, statuses []string) ([]models.PipelineTask, error)
	UpdateTask(ctx context.Context, t *models.PipelineTask) error
	CancelPendingTasks(ctx context.Context, pipelineID uuid.UUID) (int64, error)
	TaskStatusCounts(ctx context.Context, pipelineID uuid.UUID) (map[string]int, error)
	TaskTimingAggregates(ctx context.Context, pipelineID uuid.UUID) (int64, int64, error)
}

// enqueuer is the slice of the queue layer the orchestrator publishes to.
type enqueuer interface {
	PublishPhase1(ctx context.Context, task models.PhotoTask) (string, error)
	PublishClustering(ctx context.Context, task models.ClusterTask) error
	PublishProgress(ctx context.Context, event models.ProgressEvent) error
}

// PhotoRef identifies one photo to process.
type PhotoRef struct {
	PhotoID   uuid.UUID
	Filename  string
	SourceKey string
}

// SubmitRequest describes a new batch.
type SubmitRequest struct {
	UserID      uuid.UUID
	Type        string
	Name        string
	Description string
	Photos      []PhotoRef
	Config      json.RawMessage
}

// Orchestrator owns pipeline lifecycle: submit, cancel, rerun and the
// progress recompute every phase reports through.
type Orchestrator struct {
	store store
	queue enqueuer
}

func NewOrchestrator(store store, queue enqueuer) *Orchestrator {
	return &Orchestrator{store: store, queue: queue}
}

// Submit creates a pipeline with one task per photo and enqueues the
// ingestion phase for each. Enqueue failures fail the affected task, not
// the whole batch.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.Pipeline, error) {
	if len(req.Photos) == 0 {
		return nil, fmt.Errorf("submit pipeline: no photos")
	}
	if req.Type == "" {
		req.Type = models.PipelineTypeUpload
	}

	p := &models.Pipeline{
		ID:          uuid.New(),
		UserID:      &req.UserID,
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.PipelineRunning,
		TotalPhotos: len(req.Photos),
		Config:      req.Config,
	}
	if err := o.store.CreatePipeline(ctx, p); err != nil {
		return nil, err
	}
	if err := o.store.SetPipelineStatus(ctx, p.ID, models.PipelineRunning, ""); err != nil {
		return nil, err
	}

	for _, photo := range req.Photos {
		task := &models.PipelineTask{
			ID:         uuid.New(),
			PipelineID: p.ID,
			PhotoID:    photo.PhotoID,
			Filename:   photo.Filename,
			SourceKey:  photo.SourceKey,
			Status:     models.TaskQueued,
		}
		// The row must exist before the message does: a worker can pick
		// the message up immediately and has to find its task.
		if err := o.store.CreateTask(ctx, task); err != nil {
			return nil, err
		}

		jobID, err := o.queue.PublishPhase1(ctx, models.PhotoTask{
			PipelineID: p.ID,
			PhotoID:    photo.PhotoID,
			UserID:     req.UserID,
			SourceKey:  photo.SourceKey,
			Filename:   photo.Filename,
		})
		if err != nil {
			slog.Error("enqueue photo failed", "pipeline_id", p.ID, "photo_id", photo.PhotoID, "error", err)
			task.Status = models.TaskFailed
			task.ErrorMessage = err.Error()
			task.ErrorType = "processing_error"
		} else {
			task.JobID = jobID
		}

		if err := o.store.UpdateTask(ctx, task); err != nil {
			return nil, err
		}
	}

	slog.Info("pipeline submitted", "pipeline_id", p.ID, "type", p.Type, "photos", p.TotalPhotos)
	return p, nil
}

// Cancel stops a pipeline: every task not yet terminal is marked
// cancelled and workers skip anything still in flight when they pick it
// up. Already-terminal pipelines are left untouched.
func (o *Orchestrator) Cancel(ctx context.Context, pipelineID uuid.UUID) error {
	p, err := o.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("cancel pipeline %s: %w", pipelineID, ErrNotFound)
	}
	switch p.Status {
	case models.PipelineCompleted, models.PipelineFailed, models.PipelineCancelled:
		return fmt.Errorf("cancel pipeline %s: already %s", pipelineID, p.Status)
	}

	n, err := o.store.CancelPendingTasks(ctx, pipelineID)
	if err != nil {
		return err
	}
	if err := o.store.SetPipelineStatus(ctx, pipelineID, models.PipelineCancelled, ""); err != nil {
		return err
	}

	slog.Info("pipeline cancelled", "pipeline_id", pipelineID, "tasks_cancelled", n)
	return o.RecomputeProgress(ctx, pipelineID)
}

// RerunOptions select which tasks a rerun requeues. With an explicit
// TaskIDs list only those tasks are considered; otherwise failed tasks
// are selected, plus skipped and cancelled ones when IncludeSkipped is
// set. Completed tasks are never rerun.
type RerunOptions struct {
	TaskIDs        []uuid.UUID
	IncludeSkipped bool
}

// Rerun re-enqueues a selection of a pipeline's tasks, resetting their
// error and timing fields so the retry reports fresh numbers.
func (o *Orchestrator) Rerun(ctx context.Context, pipelineID uuid.UUID, opts RerunOptions) (int, error) {
	p, err := o.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("rerun pipeline %s: %w", pipelineID, ErrNotFound)
	}

	tasks, err := o.selectRerunTasks(ctx, pipelineID, opts)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	userID := uuid.Nil
	if p.UserID != nil {
		userID = *p.UserID
	}

	requeued := 0
	for i := range tasks {
		task := &tasks[i]
		// Attempt must differ from every previous publish of this task, or
		// the stream's duplicate window swallows a fast rerun.
		attempt := task.RetryCount + 1
		task.ResetForRerun()
		task.RetryCount = attempt

		jobID, err := o.queue.PublishPhase1(ctx, models.PhotoTask{
			PipelineID: pipelineID,
			PhotoID:    task.PhotoID,
			UserID:     userID,
			SourceKey:  task.SourceKey,
			Filename:   task.Filename,
			Attempt:    attempt,
		})
		if err != nil {
			slog.Error("re-enqueue failed", "pipeline_id", pipelineID, "photo_id", task.PhotoID, "error", err)
			continue
		}
		task.JobID = jobID
		if err := o.store.UpdateTask(ctx, task); err != nil {
			return requeued, err
		}
		requeued++
	}

	if requeued > 0 {
		if err := o.store.SetPipelineStatus(ctx, pipelineID, models.PipelineRunning, ""); err != nil {
			return requeued, err
		}
	}

	slog.Info("pipeline rerun", "pipeline_id", pipelineID, "tasks_requeued", requeued)
	return requeued, o.RecomputeProgress(ctx, pipelineID)
}

func (o *Orchestrator) selectRerunTasks(ctx context.Context, pipelineID uuid.UUID, opts RerunOptions) ([]models.PipelineTask, error) {
	if len(opts.TaskIDs) > 0 {
		wanted := make(map[uuid.UUID]bool, len(opts.TaskIDs))
		for _, id := range opts.TaskIDs {
			wanted[id] = true
		}
		all, err := o.store.ListTasks(ctx, pipelineID, nil)
		if err != nil {
			return nil, err
		}
		var selected []models.PipelineTask
		for _, t := range all {
			if wanted[t.ID] && t.Status != models.TaskCompleted && t.Status != models.TaskRunning {
				selected = append(selected, t)
			}
		}
		return selected, nil
	}

	statuses := []string{models.TaskFailed}
	if opts.IncludeSkipped {
		statuses = append(statuses, models.TaskSkipped, models.TaskCancelled)
	}
	return o.store.ListTasks(ctx, pipelineID, statuses)
}

// Delete removes a pipeline and its tasks. Running pipelines must be
// cancelled first.
func (o *Orchestrator) Delete(ctx context.Context, pipelineID uuid.UUID) error {
	p, err := o.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("delete pipeline %s: %w", pipelineID, ErrNotFound)
	}
	if p.Status == models.PipelineRunning || p.Status == models.PipelineQueued {
		return fmt.Errorf("delete pipeline %s: still %s", pipelineID, p.Status)
	}
	return o.store.DeletePipeline(ctx, pipelineID)
}

// TriggerClustering enqueues a clustering run for a user.
func (o *Orchestrator) TriggerClustering(ctx context.Context, userID uuid.UUID, scope string, forceReset bool) error {
	if scope == "" {
		scope = models.ClusterScopeAll
	}
	return o.queue.PublishClustering(ctx, models.ClusterTask{
		UserID:     userID,
		Scope:      scope,
		ForceReset: forceReset,
	})
}

// RecomputeProgress re-derives pipeline counters from its tasks, marks
// the pipeline completed exactly once when every task is terminal, and
// publishes a progress event for live subscribers.
func (o *Orchestrator) RecomputeProgress(ctx context.Context, pipelineID uuid.UUID) error {
	p, err := o.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("recompute progress %s: %w", pipelineID, ErrNotFound)
	}

	counts, err := o.store.TaskStatusCounts(ctx, pipelineID)
	if err != nil {
		return err
	}
	avgMs, totalMs, err := o.store.TaskTimingAggregates(ctx, pipelineID)
	if err != nil {
		return err
	}

	p.CompletedPhotos = counts[models.TaskCompleted]
	p.FailedPhotos = counts[models.TaskFailed]
	p.SkippedPhotos = counts[models.TaskSkipped] + counts[models.TaskCancelled]
	p.AvgProcessingTimeMs = avgMs
	p.TotalProcessingTimeMs = totalMs

	if err := o.store.UpdatePipelineProgress(ctx, p); err != nil {
		return err
	}

	processed := p.CompletedPhotos + p.FailedPhotos + p.SkippedPhotos
	if p.Status == models.PipelineRunning && p.TotalPhotos > 0 && processed >= p.TotalPhotos {
		// Only the transition out of running stamps completion, so a
		// late recompute can't complete a pipeline twice.
		p.Status = models.PipelineCompleted
		if err := o.store.SetPipelineStatus(ctx, pipelineID, models.PipelineCompleted, ""); err != nil {
			return err
		}
		slog.Info("pipeline completed", "pipeline_id", pipelineID,
			"completed", p.CompletedPhotos, "failed", p.FailedPhotos, "skipped", p.SkippedPhotos)
	}

	event := models.ProgressEvent{
		PipelineID:      p.ID,
		Status:          p.Status,
		TotalPhotos:     p.TotalPhotos,
		CompletedPhotos: p.CompletedPhotos,
		FailedPhotos:    p.FailedPhotos,
		SkippedPhotos:   p.SkippedPhotos,
		ProgressPercent: p.ProgressPercent(),
		ETARemainingMs:  p.ETARemainingMs(),
		Timestamp:       time.Now().UTC(),
	}
	if err := o.queue.PublishProgress(ctx, event); err != nil {
		slog.Warn("publish progress event failed", "pipeline_id", pipelineID, "error", err)
	}
	return nil
}
