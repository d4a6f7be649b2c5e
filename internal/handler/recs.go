package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/musicatlas/api/internal/middleware"
	"github.com/musicatlas/api/internal/model"
	"github.com/musicatlas/api/internal/service"
	"github.com/musicatlas/api/pkg/response"
)

// RecsHandler serves the recommendation endpoints: the asynchronous job API
// and the synchronous album queries.
type RecsHandler struct {
	recs       *service.RecsService
	sessions   service.SessionStore
	topArtists service.TopArtistSource
	validator  *validator.Validate
}

func NewRecsHandler(recs *service.RecsService, sessions service.SessionStore, topArtists service.TopArtistSource, v *validator.Validate) *RecsHandler {
	return &RecsHandler{
		recs:       recs,
		sessions:   sessions,
		topArtists: topArtists,
		validator:  v,
	}
}

// CreateJob handles POST /api/recs/jobs
func (h *RecsHandler) CreateJob(c *fiber.Ctx) error {
	var req model.RecsJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	payload := model.RecsJobPayload{
		Artists:   req.Artists,
		Params:    req.Params(),
		SessionID: middleware.GetUserID(c),
	}

	job, err := h.recs.CreateJob(c.Context(), payload)
	if err != nil {
		if errors.Is(err, service.ErrEmptyArtists) {
			return response.ValidationError(c, service.ErrEmptyArtists.Error(), nil)
		}
		return response.ServiceError(c, "Failed to queue recommendation job")
	}

	return response.Accepted(c, model.JobCreatedResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		StatusURL: fmt.Sprintf("/api/recs/jobs/%s", job.ID),
		ResultURL: fmt.Sprintf("/api/recs/jobs/%s/result", job.ID),
	})
}

// Status handles GET /api/recs/jobs/:jobId
func (h *RecsHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.recs.Job(jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, model.JobStatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		ExpiresAt: job.ExpiresAt,
	})
}

// Result handles GET /api/recs/jobs/:jobId/result
func (h *RecsHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.recs.Job(jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	switch job.Status {
	case model.JobStatusDone:
		return response.OK(c, fiber.Map{
			"job_id": job.ID,
			"albums": job.Result,
			"count":  len(job.Result),
		})
	case model.JobStatusError:
		return response.JobFailed(c, job.Error)
	default:
		return c.Status(fiber.StatusAccepted).JSON(model.JobPendingResponse{
			JobID:    job.ID,
			Status:   job.Status,
			Progress: job.Progress,
			Detail:   "Job is still running",
		})
	}
}

// Albums handles GET /api/recs/albums — the synchronous path for callers
// that already hold internal artist ids.
func (h *RecsHandler) Albums(c *fiber.Ctx) error {
	seeds := parseSeeds(c.Query("seeds"))
	params := parseRecsParams(c)

	rows, err := h.recs.AlbumsForSeeds(c.Context(), seeds, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSeeds) {
			return response.ValidationError(c, service.ErrInvalidSeeds.Error(), nil)
		}
		if errors.Is(err, service.ErrOracleFailure) {
			return response.ServiceError(c, service.ErrOracleFailure.Error())
		}
		return response.ServiceError(c, "Failed to fetch recommendations")
	}

	if userID := middleware.GetUserID(c); userID != "" {
		h.recs.PersistSessionRecs(c.Context(), userID, rows)
	}

	return response.OK(c, fiber.Map{
		"albums": rows,
		"count":  len(rows),
	})
}

// FromSpotify handles POST /api/recs/from-spotify — seeds the pipeline from
// the caller's current Spotify top artists.
func (h *RecsHandler) FromSpotify(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	session, err := h.sessions.Get(c.Context(), userID)
	if err != nil {
		return response.ServiceError(c, "Failed to load session")
	}
	if session == nil || session.SpotifyAccessToken == "" {
		return response.Unauthorized(c, service.ErrNoSpotifySession.Error())
	}

	artists, err := h.topArtists.TopArtists(c.Context(), session.SpotifyAccessToken, 50)
	if err != nil {
		return response.UpstreamError(c, service.ErrSeedIngestion.Error())
	}

	params := parseRecsParams(c)
	rows, resolved, missed, err := h.recs.AlbumsForArtists(c.Context(), artists, params)
	if err != nil {
		if errors.Is(err, service.ErrNoSeedsResolved) {
			return response.NotFound(c, service.ErrNoSeedsResolved.Error())
		}
		if errors.Is(err, service.ErrOracleFailure) {
			return response.ServiceError(c, service.ErrOracleFailure.Error())
		}
		return response.ServiceError(c, "Failed to fetch recommendations")
	}

	h.recs.PersistSessionRecs(c.Context(), userID, rows)

	return response.OK(c, fiber.Map{
		"albums":   rows,
		"count":    len(rows),
		"resolved": resolved,
		"missed":   missed,
	})
}

// AddArtist handles POST /api/recs/add-artist
func (h *RecsHandler) AddArtist(c *fiber.Ctx) error {
	var req model.AddArtistRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	params := parseRecsParams(c)
	rows, err := h.recs.AlbumsForArtistName(c.Context(), req.Name, params)
	if err != nil {
		if errors.Is(err, service.ErrEmptyName) {
			return response.ValidationError(c, service.ErrEmptyName.Error(), nil)
		}
		if errors.Is(err, service.ErrArtistNotFound) {
			return response.NotFound(c, service.ErrArtistNotFound.Error())
		}
		if errors.Is(err, service.ErrOracleFailure) {
			return response.ServiceError(c, service.ErrOracleFailure.Error())
		}
		return response.ServiceError(c, "Failed to fetch recommendations")
	}

	return response.OK(c, fiber.Map{
		"artist": req.Name,
		"albums": rows,
		"count":  len(rows),
	})
}

// parseSeeds reads a comma-separated id list leniently: whitespace is
// trimmed and entries that are not integers are skipped.
func parseSeeds(raw string) []int {
	if raw == "" {
		return nil
	}
	var seeds []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		seeds = append(seeds, id)
	}
	return seeds
}

// parseRecsParams folds query overrides onto the defaults.
func parseRecsParams(c *fiber.Ctx) model.RecsParams {
	params := model.DefaultRecsParams()
	if k := c.QueryInt("k"); k > 0 {
		params.K = k
	}
	if wy := c.QueryInt("window_years"); wy > 0 {
		params.WindowYears = wy
	}
	if mt := c.QueryInt("min_tracks"); mt > 0 {
		params.MinTracks = mt
	}
	if mpt := c.QueryInt("max_per_tag"); mpt > 0 {
		params.MaxPerTag = mpt
	}
	if raw := c.Query("enrich_spotify"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			params.EnrichSpotify = enabled
		}
	}
	return params
}
