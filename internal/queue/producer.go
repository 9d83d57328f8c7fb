package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photobomb/internal/models"
)

const (
	TasksStreamName   = "TASKS"
	TasksSubjectBase  = "tasks"
	Phase1Subject     = "tasks.phase1"
	Phase2Subject     = "tasks.phase2"
	ClusterStreamName = "CLUSTER"
	ClusterSubject    = "cluster"
	EventsStreamName  = "EVENTS"
	EventsSubjectBase = "events"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        TasksStreamName,
			Subjects:    []string{TasksSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			MaxBytes:    1 * 1024 * 1024 * 1024, // 1GB
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Per-photo processing tasks",
		},
		{
			Name:        ClusterStreamName,
			Subjects:    []string{ClusterSubject + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      time.Hour,
			MaxMsgs:     10000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Per-user clustering runs",
		},
		{
			Name:        EventsStreamName,
			Subjects:    []string{EventsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Pipeline progress events",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, subject, msgID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", subject, err)
	}
	opts := []jetstream.PublishOpt{}
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	if _, err := p.js.Publish(ctx, subject, payload, opts...); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// taskMsgID builds the deduplicating message id for one photo phase. The
// id doubles as the job id stored on the task. Attempt 0 (the original
// submission) keeps the bare form; reruns carry an -r<n> suffix so they
// are never swallowed by the stream's duplicate window.
func taskMsgID(phase string, task models.PhotoTask) string {
	id := fmt.Sprintf("%s-%s-%s", phase, task.PipelineID, task.PhotoID)
	if task.Attempt > 0 {
		id = fmt.Sprintf("%s-r%d", id, task.Attempt)
	}
	return id
}

// PublishPhase1 enqueues the ingestion phase for one photo. The returned
// job id is stored on the task so a cancel can be honored before the
// handler commits anything.
func (p *Producer) PublishPhase1(ctx context.Context, task models.PhotoTask) (string, error) {
	jobID := taskMsgID("p1", task)
	subject := fmt.Sprintf("%s.%s", Phase1Subject, task.PhotoID)
	return jobID, p.publish(ctx, subject, jobID, task)
}

// PublishPhase2 enqueues the analysis phase for one photo.
func (p *Producer) PublishPhase2(ctx context.Context, task models.PhotoTask) (string, error) {
	jobID := taskMsgID("p2", task)
	subject := fmt.Sprintf("%s.%s", Phase2Subject, task.PhotoID)
	return jobID, p.publish(ctx, subject, jobID, task)
}

// PublishClustering enqueues a clustering run. The subject carries the user
// id so all of a user's runs land on one ordered subject.
func (p *Producer) PublishClustering(ctx context.Context, task models.ClusterTask) error {
	subject := fmt.Sprintf("%s.%s", ClusterSubject, task.UserID)
	return p.publish(ctx, subject, "", task)
}

// PublishProgress publishes a pipeline progress event for WebSocket fan-out.
func (p *Producer) PublishProgress(ctx context.Context, event models.ProgressEvent) error {
	subject := fmt.Sprintf("%s.progress.%s", EventsSubjectBase, event.PipelineID)
	return p.publish(ctx, subject, "", event)
}

// QueueDepth returns the number of pending messages in the TASKS stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, TasksStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
