package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/musicatlas/api/internal/model"
)

// TaskTypeRecs identifies background recommendation tasks on the queue.
const TaskTypeRecs = "recs:albums"

// RecsTaskPayload is the wire form of a queued recommendation job.
type RecsTaskPayload struct {
	JobID   string               `json:"jobId"`
	Payload model.RecsJobPayload `json:"payload"`
}

// NewRecsTask builds the asynq task for a recommendation job.
func NewRecsTask(jobID string, payload model.RecsJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(RecsTaskPayload{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal recs task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeRecs, data), nil
}

// AsynqDispatcher enqueues recommendation jobs through asynq. Jobs are never
// retried: the in-memory job record already carries the failure for the
// caller, and a replay would observe a stale or missing record.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string, payload model.RecsJobPayload) error {
	task, err := NewRecsTask(jobID, payload)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task, asynq.Queue("recs"), asynq.MaxRetry(0))
	if err != nil {
		return fmt.Errorf("enqueue recs task: %w", err)
	}
	return nil
}
