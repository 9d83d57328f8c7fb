package queue

import (
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/models"
)

func TestTaskMsgID(t *testing.T) {
	pipelineID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	photoID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	tests := []struct {
		name    string
		phase   string
		attempt int
		want    string
	}{
		{"first submission", "p1",
			0, "p1-11111111-2222-3333-4444-555555555555-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"},
		{"first rerun", "p1",
			1, "p1-11111111-2222-3333-4444-555555555555-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee-r1"},
		{"later rerun", "p2",
			4, "p2-11111111-2222-3333-4444-555555555555-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee-r4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := taskMsgID(tc.phase, models.PhotoTask{
				PipelineID: pipelineID,
				PhotoID:    photoID,
				Attempt:    tc.attempt,
			})
			if got != tc.want {
				t.Errorf("taskMsgID = %q; want %q", got, tc.want)
			}
		})
	}

	// Reruns of the same task must never reuse an id a prior publish used,
	// or the stream's duplicate window drops them.
	seen := map[string]bool{}
	for attempt := 0; attempt <= 3; attempt++ {
		id := taskMsgID("p1", models.PhotoTask{PipelineID: pipelineID, PhotoID: photoID, Attempt: attempt})
		if seen[id] {
			t.Fatalf("duplicate message id %q at attempt %d", id, attempt)
		}
		seen[id] = true
	}
}
