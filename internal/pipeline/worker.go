package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photobomb/internal/cluster"
	"github.com/your-org/photobomb/internal/config"
	"github.com/your-org/photobomb/internal/metadata"
	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
	"github.com/your-org/photobomb/internal/queue"
	"github.com/your-org/photobomb/internal/storage"
	"github.com/your-org/photobomb/internal/tagger"
	"github.com/your-org/photobomb/internal/vision"
)

// Worker consumes photo tasks and clustering runs. Phase 1 ingests,
// Phase 2 analyzes; both report back through the orchestrator's progress
// recompute.
type Worker struct {
	db       *storage.PostgresStore
	objects  *storage.ObjectStore
	producer *queue.Producer
	registry *vision.Registry
	tagger   *tagger.Tagger
	geocoder *metadata.Geocoder
	orch     *Orchestrator
	cfg      *config.Config
}

func NewWorker(
	db *storage.PostgresStore,
	objects *storage.ObjectStore,
	producer *queue.Producer,
	registry *vision.Registry,
	tg *tagger.Tagger,
	geocoder *metadata.Geocoder,
	cfg *config.Config,
) *Worker {
	return &Worker{
		db:       db,
		objects:  objects,
		producer: producer,
		registry: registry,
		tagger:   tg,
		geocoder: geocoder,
		orch:     NewOrchestrator(db, producer),
		cfg:      cfg,
	}
}

// Start registers the worker's consumers on the task and cluster streams.
// Phase 1 retries more aggressively than Phase 2 since its failures are
// mostly transient storage hiccups.
func (w *Worker) Start(ctx context.Context, consumer *queue.Consumer) error {
	workers := w.cfg.Vision.WorkerCount

	err := consumer.Consume(ctx, queue.ConsumeOptions{
		Stream:        queue.TasksStreamName,
		Consumer:      "phase1-workers",
		FilterSubject: queue.Phase1Subject + ".>",
		MaxDeliver:    3,
		AckWait:       2 * time.Minute,
		WorkerCount:   workers,
	}, w.handlePhoto(w.Phase1))
	if err != nil {
		return fmt.Errorf("start phase1 consumer: %w", err)
	}

	err = consumer.Consume(ctx, queue.ConsumeOptions{
		Stream:        queue.TasksStreamName,
		Consumer:      "phase2-workers",
		FilterSubject: queue.Phase2Subject + ".>",
		MaxDeliver:    2,
		AckWait:       5 * time.Minute,
		WorkerCount:   workers,
	}, w.handlePhoto(w.Phase2))
	if err != nil {
		return fmt.Errorf("start phase2 consumer: %w", err)
	}

	// Clustering is serialized: one worker, so two runs for the same
	// user can never interleave.
	err = consumer.Consume(ctx, queue.ConsumeOptions{
		Stream:        queue.ClusterStreamName,
		Consumer:      "cluster-worker",
		FilterSubject: queue.ClusterSubject + ".>",
		MaxDeliver:    2,
		AckWait:       10 * time.Minute,
		WorkerCount:   1,
	}, w.handleCluster)
	if err != nil {
		return fmt.Errorf("start cluster consumer: %w", err)
	}

	go w.reportQueueDepth(ctx)
	return nil
}

func (w *Worker) handlePhoto(phase func(context.Context, models.PhotoTask) error) queue.MessageHandler {
	return func(ctx context.Context, msg jetstream.Msg) error {
		var task models.PhotoTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("drop malformed photo task", "subject", msg.Subject(), "error", err)
			return nil
		}
		return phase(ctx, task)
	}
}

func (w *Worker) handleCluster(ctx context.Context, msg jetstream.Msg) error {
	var task models.ClusterTask
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		slog.Error("drop malformed cluster task", "subject", msg.Subject(), "error", err)
		return nil
	}
	return w.RunClustering(ctx, task)
}

// RunClustering executes one clustering run for a user.
func (w *Worker) RunClustering(ctx context.Context, task models.ClusterTask) error {
	slog.Info("clustering run", "user_id", task.UserID, "scope", task.Scope, "force_reset", task.ForceReset)

	if task.Scope == models.ClusterScopeFaces || task.Scope == models.ClusterScopeAll {
		_, err := cluster.ClusterFaces(ctx, w.db, task.UserID, cluster.FaceParams{
			Eps:        w.cfg.Clustering.FaceEps,
			MinSamples: w.cfg.Clustering.FaceMinSamples,
		})
		if err != nil {
			return fmt.Errorf("cluster faces: %w", err)
		}
	}

	if task.Scope == models.ClusterScopeAnimals || task.Scope == models.ClusterScopeAll {
		_, err := cluster.ClusterAnimals(ctx, w.db, task.UserID, cluster.AnimalParams{
			Eps:        w.cfg.Clustering.AnimalEps,
			MinSamples: w.cfg.Clustering.AnimalMinSamples,
			ForceReset: task.ForceReset,
		})
		if err != nil {
			return fmt.Errorf("cluster animals: %w", err)
		}
	}
	return nil
}

func (w *Worker) reportQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := w.producer.QueueDepth(ctx)
			if err != nil {
				continue
			}
			observability.QueueDepth.Set(float64(depth))
		}
	}
}

// loadRunnableTask fetches the task row and decides whether the phase
// should run. A nil task with nil error means skip and ack: the task was
// cancelled, superseded or removed while queued.
func (w *Worker) loadRunnableTask(ctx context.Context, t models.PhotoTask) (*models.PipelineTask, error) {
	task, err := w.db.GetTask(ctx, t.PipelineID, t.PhotoID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		slog.Warn("task row missing, dropping", "pipeline_id", t.PipelineID, "photo_id", t.PhotoID)
		return nil, nil
	}
	switch task.Status {
	case models.TaskCancelled, models.TaskSkipped, models.TaskCompleted:
		slog.Info("skipping task", "task_id", task.ID, "status", task.Status)
		return nil, nil
	}

	if err := w.db.MarkTaskRunning(ctx, task.ID); err != nil {
		return nil, err
	}
	task.Status = models.TaskRunning
	if task.StartedAt == nil {
		now := time.Now().UTC()
		task.StartedAt = &now
	}
	return task, nil
}

// failTask records a failure and recomputes progress. Returns the
// original error so the queue layer retries until MaxDeliver.
func (w *Worker) failTask(ctx context.Context, task *models.PipelineTask, phase string, err error) error {
	now := time.Now().UTC()
	task.Status = models.TaskFailed
	task.ErrorMessage = err.Error()
	task.ErrorType = errorType(err)
	task.RetryCount++
	task.CompletedAt = &now

	if uerr := w.db.UpdateTask(ctx, task); uerr != nil {
		slog.Error("record task failure", "task_id", task.ID, "error", uerr)
	}
	if perr := w.orch.RecomputeProgress(ctx, task.PipelineID); perr != nil {
		slog.Error("recompute progress after failure", "pipeline_id", task.PipelineID, "error", perr)
	}
	observability.PhotosProcessed.WithLabelValues(phase, "failed").Inc()
	return err
}

func msSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func observeStage(stage string, start time.Time) {
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
