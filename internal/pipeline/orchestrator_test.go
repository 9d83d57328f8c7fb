package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photobomb/internal/models"
)

type memStore struct {
	pipelines map[uuid.UUID]*models.Pipeline
	tasks     map[uuid.UUID]*models.PipelineTask
	completes int // SetPipelineStatus(completed) calls
}

func newMemStore() *memStore {
	return &memStore{
		pipelines: make(map[uuid.UUID]*models.Pipeline),
		tasks:     make(map[uuid.UUID]*models.PipelineTask),
	}
}

func (m *memStore) CreatePipeline(_ context.Context, p *models.Pipeline) error {
	cp := *p
	m.pipelines[p.ID] = &cp
	return nil
}

func (m *memStore) GetPipeline(_ context.Context, id uuid.UUID) (*models.Pipeline, error) {
	p, ok := m.pipelines[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SetPipelineStatus(_ context.Context, id uuid.UUID, status, errMsg string) error {
	p, ok := m.pipelines[id]
	if !ok {
		return fmt.Errorf("pipeline %s not found", id)
	}
	p.Status = status
	p.Error = errMsg
	if status == models.PipelineCompleted {
		m.completes++
	}
	return nil
}

func (m *memStore) UpdatePipelineProgress(_ context.Context, p *models.Pipeline) error {
	stored, ok := m.pipelines[p.ID]
	if !ok {
		return fmt.Errorf("pipeline %s not found", p.ID)
	}
	stored.CompletedPhotos = p.CompletedPhotos
	stored.FailedPhotos = p.FailedPhotos
	stored.SkippedPhotos = p.SkippedPhotos
	stored.AvgProcessingTimeMs = p.AvgProcessingTimeMs
	stored.TotalProcessingTimeMs = p.TotalProcessingTimeMs
	return nil
}

func (m *memStore) DeletePipeline(_ context.Context, id uuid.UUID) error {
	delete(m.pipelines, id)
	return nil
}

func (m *memStore) CreateTask(_ context.Context, t *models.PipelineTask) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) GetTask(_ context.Context, pipelineID, photoID uuid.UUID) (*models.PipelineTask, error) {
	for _, t := range m.tasks {
		if t.PipelineID == pipelineID && t.PhotoID == photoID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListTasks(_ context.Context, pipelineID uuid.UUID, statuses []string) ([]models.PipelineTask, error) {
	match := func(s string) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
	var out []models.PipelineTask
	for _, t := range m.tasks {
		if t.PipelineID == pipelineID && match(t.Status) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTask(_ context.Context, t *models.PipelineTask) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) CancelPendingTasks(_ context.Context, pipelineID uuid.UUID) (int64, error) {
	var n int64
	for _, t := range m.tasks {
		if t.PipelineID != pipelineID {
			continue
		}
		switch t.Status {
		case models.TaskPending, models.TaskQueued, models.TaskRunning:
			t.Status = models.TaskCancelled
			n++
		}
	}
	return n, nil
}

func (m *memStore) TaskStatusCounts(_ context.Context, pipelineID uuid.UUID) (map[string]int, error) {
	counts := make(map[string]int)
	for _, t := range m.tasks {
		if t.PipelineID == pipelineID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) TaskTimingAggregates(_ context.Context, pipelineID uuid.UUID) (int64, int64, error) {
	var sum, n int64
	for _, t := range m.tasks {
		if t.PipelineID == pipelineID && t.Status == models.TaskCompleted {
			sum += t.TotalTimeMs
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / n, sum, nil
}

type memQueue struct {
	phase1    []models.PhotoTask
	clusters  []models.ClusterTask
	events    []models.ProgressEvent
	publishes int
	failNext  bool
}

func (q *memQueue) PublishPhase1(_ context.Context, task models.PhotoTask) (string, error) {
	if q.failNext {
		q.failNext = false
		return "", fmt.Errorf("nats unavailable")
	}
	q.publishes++
	q.phase1 = append(q.phase1, task)
	jobID := fmt.Sprintf("p1-%s-%s", task.PipelineID, task.PhotoID)
	if task.Attempt > 0 {
		jobID = fmt.Sprintf("%s-r%d", jobID, task.Attempt)
	}
	return jobID, nil
}

func (q *memQueue) PublishClustering(_ context.Context, task models.ClusterTask) error {
	q.clusters = append(q.clusters, task)
	return nil
}

func (q *memQueue) PublishProgress(_ context.Context, event models.ProgressEvent) error {
	q.events = append(q.events, event)
	return nil
}

func submitPhotos(t *testing.T, o *Orchestrator, n int) *models.Pipeline {
	t.Helper()
	photos := make([]PhotoRef, n)
	for i := range photos {
		photos[i] = PhotoRef{PhotoID: uuid.New(), Filename: fmt.Sprintf("img_%d.jpg", i)}
	}
	p, err := o.Submit(context.Background(), SubmitRequest{
		UserID: uuid.New(),
		Type:   models.PipelineTypeUpload,
		Photos: photos,
	})
	require.NoError(t, err)
	return p
}

func TestSubmitCreatesQueuedTasks(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)

	assert.Equal(t, models.PipelineRunning, store.pipelines[p.ID].Status)
	assert.Equal(t, 3, p.TotalPhotos)
	assert.Equal(t, 3, q.publishes)

	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, models.TaskQueued, task.Status)
		assert.NotEmpty(t, task.JobID)
	}
}

func TestSubmitEnqueueFailureFailsOnlyThatTask(t *testing.T) {
	store := newMemStore()
	q := &memQueue{failNext: true}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 2)

	tasks, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskFailed})
	require.Len(t, tasks, 1)
	assert.Equal(t, "processing_error", tasks[0].ErrorType)

	queued, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskQueued})
	assert.Len(t, queued, 1)
}

// taskCheckQueue verifies that the task row is already stored by the time
// its message is published, which is what a worker racing the submit loop
// relies on.
type taskCheckQueue struct {
	memQueue
	store      *memStore
	missingRow int
}

func (q *taskCheckQueue) PublishPhase1(ctx context.Context, task models.PhotoTask) (string, error) {
	if row, _ := q.store.GetTask(ctx, task.PipelineID, task.PhotoID); row == nil {
		q.missingRow++
	}
	return q.memQueue.PublishPhase1(ctx, task)
}

func TestSubmitStoresTaskBeforePublish(t *testing.T) {
	store := newMemStore()
	q := &taskCheckQueue{store: store}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)

	assert.Zero(t, q.missingRow, "every publish must see its task row")
	assert.Equal(t, 3, q.publishes)

	tasks, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskQueued})
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.NotEmpty(t, task.JobID)
	}
}

func TestRerunReplaysStagedSourceKey(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	photoID := uuid.New()
	p, err := o.Submit(context.Background(), SubmitRequest{
		UserID: uuid.New(),
		Photos: []PhotoRef{{PhotoID: photoID, Filename: "pier.jpg", SourceKey: "staging/abc123"}},
	})
	require.NoError(t, err)

	stored, err := store.GetTask(context.Background(), p.ID, photoID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "staging/abc123", stored.SourceKey, "staged key persists on the task row")

	// The photo never made it past download, so its staged key is still
	// the only place the original lives.
	stored.Status = models.TaskFailed
	require.NoError(t, store.UpdateTask(context.Background(), stored))

	_, err = o.Rerun(context.Background(), p.ID, RerunOptions{})
	require.NoError(t, err)

	require.Len(t, q.phase1, 2)
	assert.Equal(t, "staging/abc123", q.phase1[1].SourceKey, "rerun republishes the staged key")
}

func TestRerunPublishesDistinctJobID(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 1)
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	require.Len(t, tasks, 1)
	firstJobID := tasks[0].JobID

	tasks[0].Status = models.TaskFailed
	require.NoError(t, store.UpdateTask(context.Background(), &tasks[0]))

	_, err := o.Rerun(context.Background(), p.ID, RerunOptions{})
	require.NoError(t, err)

	after, _ := store.ListTasks(context.Background(), p.ID, nil)
	require.Len(t, after, 1)
	assert.NotEqual(t, firstJobID, after[0].JobID,
		"a rerun inside the duplicate window needs a fresh message id")

	// A second failure and rerun must differ again.
	after[0].Status = models.TaskFailed
	require.NoError(t, store.UpdateTask(context.Background(), &after[0]))
	_, err = o.Rerun(context.Background(), p.ID, RerunOptions{})
	require.NoError(t, err)

	final, _ := store.ListTasks(context.Background(), p.ID, nil)
	require.Len(t, final, 1)
	assert.NotEqual(t, after[0].JobID, final[0].JobID)
}

func TestRecomputeProgressCounts(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 10)

	// 7 completed, 2 failed, 1 skipped.
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	for i := range tasks {
		switch {
		case i < 7:
			tasks[i].Status = models.TaskCompleted
			tasks[i].TotalTimeMs = 1000
		case i < 9:
			tasks[i].Status = models.TaskFailed
		default:
			tasks[i].Status = models.TaskSkipped
		}
		require.NoError(t, store.UpdateTask(context.Background(), &tasks[i]))
	}

	require.NoError(t, o.RecomputeProgress(context.Background(), p.ID))

	got := store.pipelines[p.ID]
	assert.Equal(t, 7, got.CompletedPhotos)
	assert.Equal(t, 2, got.FailedPhotos)
	assert.Equal(t, 1, got.SkippedPhotos)
	assert.Equal(t, int64(1000), got.AvgProcessingTimeMs)
	assert.Equal(t, int64(7000), got.TotalProcessingTimeMs)
	assert.Equal(t, models.PipelineCompleted, got.Status)

	// Last event reflects terminal progress.
	require.NotEmpty(t, q.events)
	last := q.events[len(q.events)-1]
	assert.Equal(t, models.PipelineCompleted, last.Status)
	assert.InDelta(t, 100.0, last.ProgressPercent, 0.001)
}

func TestRecomputeProgressCompletesExactlyOnce(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 2)
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	for i := range tasks {
		tasks[i].Status = models.TaskCompleted
		require.NoError(t, store.UpdateTask(context.Background(), &tasks[i]))
	}

	require.NoError(t, o.RecomputeProgress(context.Background(), p.ID))
	require.NoError(t, o.RecomputeProgress(context.Background(), p.ID))
	assert.Equal(t, 1, store.completes)
}

func TestCancelMarksPendingTasks(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)

	// One photo already finished before the cancel arrives.
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	tasks[0].Status = models.TaskCompleted
	require.NoError(t, store.UpdateTask(context.Background(), &tasks[0]))

	require.NoError(t, o.Cancel(context.Background(), p.ID))

	got := store.pipelines[p.ID]
	assert.Equal(t, models.PipelineCancelled, got.Status)
	assert.Equal(t, 1, got.CompletedPhotos)
	assert.Equal(t, 2, got.SkippedPhotos, "cancelled tasks count as skipped in progress")

	cancelled, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskCancelled})
	assert.Len(t, cancelled, 2)

	// A second cancel is rejected.
	assert.Error(t, o.Cancel(context.Background(), p.ID))
}

func TestRerunRequeuesFailed(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	tasks[0].Status = models.TaskCompleted
	tasks[1].Status = models.TaskFailed
	tasks[1].ErrorMessage = "boom"
	tasks[1].RetryCount = 2
	tasks[2].Status = models.TaskCancelled
	for i := range tasks {
		require.NoError(t, store.UpdateTask(context.Background(), &tasks[i]))
	}

	// Default selection is failed only.
	requeued, err := o.Rerun(context.Background(), p.ID, RerunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, models.PipelineRunning, store.pipelines[p.ID].Status)

	queued, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskQueued})
	require.Len(t, queued, 1)
	for _, task := range queued {
		assert.Empty(t, task.ErrorMessage)
		assert.Equal(t, 3, task.RetryCount, "attempt counter keeps growing across reruns")
		assert.Nil(t, task.CompletedAt)
	}

	completed, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskCompleted})
	assert.Len(t, completed, 1, "completed tasks are not rerun")
}

func TestRerunIncludeSkippedPicksUpCancelled(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	tasks[0].Status = models.TaskFailed
	tasks[1].Status = models.TaskSkipped
	tasks[2].Status = models.TaskCancelled
	for i := range tasks {
		require.NoError(t, store.UpdateTask(context.Background(), &tasks[i]))
	}

	requeued, err := o.Rerun(context.Background(), p.ID, RerunOptions{IncludeSkipped: true})
	require.NoError(t, err)
	assert.Equal(t, 3, requeued)
}

func TestRerunByTaskIDs(t *testing.T) {
	store := newMemStore()
	q := &memQueue{}
	o := NewOrchestrator(store, q)

	p := submitPhotos(t, o, 3)
	tasks, _ := store.ListTasks(context.Background(), p.ID, nil)
	for i := range tasks {
		tasks[i].Status = models.TaskFailed
		require.NoError(t, store.UpdateTask(context.Background(), &tasks[i]))
	}

	requeued, err := o.Rerun(context.Background(), p.ID, RerunOptions{TaskIDs: []uuid.UUID{tasks[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	stillFailed, _ := store.ListTasks(context.Background(), p.ID, []string{models.TaskFailed})
	assert.Len(t, stillFailed, 2)
}

func TestDeleteRejectsRunning(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &memQueue{})

	p := submitPhotos(t, o, 1)
	assert.Error(t, o.Delete(context.Background(), p.ID))

	require.NoError(t, store.SetPipelineStatus(context.Background(), p.ID, models.PipelineFailed, "x"))
	require.NoError(t, o.Delete(context.Background(), p.ID))
	assert.NotContains(t, store.pipelines, p.ID)
}

func TestTriggerClustering(t *testing.T) {
	q := &memQueue{}
	o := NewOrchestrator(newMemStore(), q)
	userID := uuid.New()

	require.NoError(t, o.TriggerClustering(context.Background(), userID, "", true))
	require.Len(t, q.clusters, 1)
	assert.Equal(t, models.ClusterScopeAll, q.clusters[0].Scope)
	assert.True(t, q.clusters[0].ForceReset)
	assert.Equal(t, userID, q.clusters[0].UserID)
}
