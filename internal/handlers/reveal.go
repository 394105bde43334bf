package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gridlog/gridlog/internal/auth"
	"github.com/gridlog/gridlog/internal/models"
	"github.com/gridlog/gridlog/internal/spoiler"
)

// revealRequest is the POST /sessions/:id/reveal body. Confirm must be
// explicitly true; a missing or false confirmation is rejected with no
// side effects.
type revealRequest struct {
	Confirm bool `json:"confirm"`
}

// RegisterRevealRoutes registers the single write-path endpoint.
//
// POST /sessions/:id/reveal
// - Requires a concrete viewer (X-Viewer-Token)
// - Idempotent: repeated calls report revealed=true, already_logged=true
// - Unknown session: 404 with revealed=false and no result block
func RegisterRevealRoutes(r gin.IRoutes, coordinator *spoiler.RevealCoordinator) {
	r.POST("/sessions/:id/reveal", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
			return
		}

		var req revealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		resp, err := coordinator.Reveal(c.Request.Context(), id, auth.OptionalViewer(c), req.Confirm)
		if errors.Is(err, spoiler.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.RevealResponse{Revealed: false})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	})
}
