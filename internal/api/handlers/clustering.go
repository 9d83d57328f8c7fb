package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/pipeline"
	"github.com/your-org/photobomb/pkg/dto"
)

type ClusteringHandler struct {
	orch *pipeline.Orchestrator
}

func NewClusteringHandler(orch *pipeline.Orchestrator) *ClusteringHandler {
	return &ClusteringHandler{orch: orch}
}

// Trigger enqueues a clustering run. Runs for the same user are
// serialized by the cluster stream's single consumer.
func (h *ClusteringHandler) Trigger(c *gin.Context) {
	var req dto.TriggerClusteringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Scope {
	case "", models.ClusterScopeFaces, models.ClusterScopeAnimals, models.ClusterScopeAll:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be faces, animals or all"})
		return
	}

	if err := h.orch.TriggerClustering(c.Request.Context(), req.UserID, req.Scope, req.ForceReset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "user_id": req.UserID})
}
