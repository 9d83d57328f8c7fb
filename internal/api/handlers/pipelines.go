package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/pipeline"
	"github.com/your-org/photobomb/internal/storage"
	"github.com/your-org/photobomb/pkg/dto"
)

type PipelineHandler struct {
	db   *storage.PostgresStore
	orch *pipeline.Orchestrator
}

func NewPipelineHandler(db *storage.PostgresStore, orch *pipeline.Orchestrator) *PipelineHandler {
	return &PipelineHandler{db: db, orch: orch}
}

func (h *PipelineHandler) Submit(c *gin.Context) {
	var req dto.SubmitPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Photos) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photos must not be empty"})
		return
	}

	photos := make([]pipeline.PhotoRef, 0, len(req.Photos))
	for _, p := range req.Photos {
		photos = append(photos, pipeline.PhotoRef{
			PhotoID:   p.PhotoID,
			Filename:  p.Filename,
			SourceKey: p.SourceKey,
		})
	}

	p, err := h.orch.Submit(c.Request.Context(), pipeline.SubmitRequest{
		UserID:      req.UserID,
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		Photos:      photos,
		Config:      req.Config,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pipelineToResponse(p))
}

func (h *PipelineHandler) List(c *gin.Context) {
	var q dto.PipelineQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}

	var userID *uuid.UUID
	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	pipelines, err := h.db.ListPipelines(c.Request.Context(), userID, q.Status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PipelineResponse, 0, len(pipelines))
	for i := range pipelines {
		resp = append(resp, pipelineToResponse(&pipelines[i]))
	}

	c.JSON(http.StatusOK, dto.PipelineListResponse{Pipelines: resp, Total: len(resp)})
}

func (h *PipelineHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline id"})
		return
	}

	p, err := h.db.GetPipeline(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}

	c.JSON(http.StatusOK, pipelineToResponse(p))
}

func (h *PipelineHandler) ListTasks(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline id"})
		return
	}

	var statuses []string
	if s := c.Query("status"); s != "" {
		statuses = []string{s}
	}

	tasks, err := h.db.ListTasks(c.Request.Context(), id, statuses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, taskToResponse(&tasks[i]))
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{Tasks: resp, Total: len(resp)})
}

func (h *PipelineHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline id"})
		return
	}

	if err := h.orch.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "pipeline_id": id})
}

func (h *PipelineHandler) Rerun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline id"})
		return
	}

	var req dto.RerunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	requeued, err := h.orch.Rerun(c.Request.Context(), id, pipeline.RerunOptions{
		TaskIDs:        req.TaskIDs,
		IncludeSkipped: req.IncludeSkipped,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RerunResponse{PipelineID: id, Requeued: requeued})
}

func (h *PipelineHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline id"})
		return
	}

	if err := h.orch.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func pipelineToResponse(p *models.Pipeline) dto.PipelineResponse {
	return dto.PipelineResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		Type:            p.Type,
		Name:            p.Name,
		Description:     p.Description,
		Status:          p.Status,
		TotalPhotos:     p.TotalPhotos,
		CompletedPhotos: p.CompletedPhotos,
		FailedPhotos:    p.FailedPhotos,
		SkippedPhotos:   p.SkippedPhotos,
		ProgressPercent: p.ProgressPercent(),
		ETARemainingMs:  p.ETARemainingMs(),
		AvgTimeMs:       p.AvgProcessingTimeMs,
		TotalTimeMs:     p.TotalProcessingTimeMs,
		Config:          p.Config,
		Error:           p.Error,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		StartedAt:       formatTime(p.StartedAt),
		CompletedAt:     formatTime(p.CompletedAt),
		CancelledAt:     formatTime(p.CancelledAt),
	}
}

func taskToResponse(t *models.PipelineTask) dto.TaskResponse {
	return dto.TaskResponse{
		ID:                    t.ID,
		PipelineID:            t.PipelineID,
		PhotoID:               t.PhotoID,
		Filename:              t.Filename,
		Status:                t.Status,
		TotalTimeMs:           t.TotalTimeMs,
		DownloadTimeMs:        t.DownloadTimeMs,
		ThumbnailTimeMs:       t.ThumbnailTimeMs,
		FaceDetectionTimeMs:   t.FaceDetectionTimeMs,
		AnimalDetectionTimeMs: t.AnimalDetectionTimeMs,
		ClassificationTimeMs:  t.ClassificationTimeMs,
		OCRTimeMs:             t.OCRTimeMs,
		DBWriteTimeMs:         t.DBWriteTimeMs,
		FacesDetected:         t.FacesDetected,
		AnimalsDetected:       t.AnimalsDetected,
		TagsCreated:           t.TagsCreated,
		TextWordsExtracted:    t.TextWordsExtracted,
		ErrorMessage:          t.ErrorMessage,
		ErrorType:             t.ErrorType,
		RetryCount:            t.RetryCount,
		StartedAt:             formatTime(t.StartedAt),
		CompletedAt:           formatTime(t.CompletedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
