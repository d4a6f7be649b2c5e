package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/musicatlas/api/internal/model"
	"github.com/musicatlas/api/internal/service"
	"github.com/musicatlas/api/internal/websocket"
)

// RecsWorker runs queued recommendation jobs through the pipeline stages:
// seed resolution, the ranking query, Spotify enrichment. Every outcome is
// recorded on the in-memory job record; the task itself always succeeds so
// the queue never replays a job whose record already carries the failure.
type RecsWorker struct {
	registry *service.JobRegistry
	resolver *service.ResolverService
	recs     *service.RecsService
	hub      *websocket.Hub
}

func NewRecsWorker(registry *service.JobRegistry, resolver *service.ResolverService, recs *service.RecsService, hub *websocket.Hub) *RecsWorker {
	return &RecsWorker{
		registry: registry,
		resolver: resolver,
		recs:     recs,
		hub:      hub,
	}
}

// ProcessTask handles one queued recommendation job.
func (w *RecsWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task service.RecsTaskPayload
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal recs task payload: %w", err)
	}

	w.run(ctx, task.JobID, task.Payload)
	return nil
}

// run executes the pipeline for one job. All failures terminate the job in
// the error state; nothing propagates to the queue.
func (w *RecsWorker) run(ctx context.Context, jobID string, payload model.RecsJobPayload) {
	if !w.registry.MarkRunning(jobID) {
		// Record expired or was removed before the task started. Likely a
		// process restart; there is no caller left to report to.
		log.Printf("Recs job %s has no record, skipping", jobID)
		return
	}
	w.broadcastProgress(jobID, model.JobStatusRunning, model.StageResolvingSeeds, map[string]int{
		"artists": len(payload.Artists),
	})

	seeds, resolved, missed := w.resolver.Resolve(ctx, payload.Artists)
	w.updateProgress(jobID, model.StageResolved, map[string]int{
		"artists":  len(payload.Artists),
		"resolved": len(resolved),
		"missed":   len(missed),
	})

	if len(seeds) == 0 {
		w.failJob(jobID, service.ErrNoSeedsResolved.Error())
		return
	}
	seeds = service.DedupSeeds(seeds)

	w.updateProgress(jobID, model.StageFetchingRecs, map[string]int{"seeds": len(seeds)})
	rows, err := w.recs.RunAlbumRecsQuery(ctx, seeds, payload.Params)
	if err != nil {
		w.failJob(jobID, errorMessage(err))
		return
	}

	if payload.Params.EnrichSpotify {
		w.updateProgress(jobID, model.StageEnrichingSpotify, map[string]int{"albums": len(rows)})
	}
	rows = w.recs.EnrichRows(ctx, rows, payload.Params.EnrichSpotify)

	if payload.SessionID != "" {
		w.recs.PersistSessionRecs(ctx, payload.SessionID, rows)
	}

	w.registry.Complete(jobID, rows)
	if w.hub != nil {
		w.hub.BroadcastComplete(jobID, len(rows))
	}
	log.Printf("Recs job %s completed with %d albums", jobID, len(rows))
}

func (w *RecsWorker) updateProgress(jobID, stage string, counts map[string]int) {
	w.registry.UpdateProgress(jobID, stage, counts)
	w.broadcastProgress(jobID, model.JobStatusRunning, stage, counts)
}

func (w *RecsWorker) broadcastProgress(jobID string, status model.JobStatus, stage string, counts map[string]int) {
	if w.hub != nil {
		w.hub.BroadcastProgress(jobID, status, stage, counts)
	}
}

func (w *RecsWorker) failJob(jobID, message string) {
	w.registry.Fail(jobID, message)
	if w.hub != nil {
		w.hub.BroadcastError(jobID, message)
	}
	log.Printf("Recs job %s failed: %s", jobID, message)
}

// errorMessage strips sentinel wrapping detail so callers see the stable
// message for known failure classes.
func errorMessage(err error) string {
	if errors.Is(err, service.ErrOracleFailure) {
		return service.ErrOracleFailure.Error()
	}
	return err.Error()
}
