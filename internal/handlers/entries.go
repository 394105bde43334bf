package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gridlog/gridlog/internal/auth"
	"github.com/gridlog/gridlog/internal/models"
	"github.com/gridlog/gridlog/internal/spoiler"
	"github.com/gridlog/gridlog/internal/store"
)

// RegisterEntryRoutes registers the normal log/unlog flow. This flow is
// a collaborator of the spoiler core, not part of it, but it must fire
// the same cache invalidation as a reveal whenever it mutates the
// (viewer, session) entry state.
//
// POST   /sessions/:id/entries  creates or updates the viewer's entry
// DELETE /sessions/:id/entries  removes the viewer's entry
func RegisterEntryRoutes(r gin.IRoutes, st *store.PostgresStore, coordinator *spoiler.RevealCoordinator) {
	r.POST("/sessions/:id/entries", func(c *gin.Context) {
		viewerID, ok := auth.ViewerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sessionID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
			return
		}

		var req models.EntryUpsertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if msg := validateRating(req); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		// Session must exist before we attach an entry to it.
		if _, err := st.GetSession(c.Request.Context(), sessionID); err != nil {
			respondError(c, err)
			return
		}

		existed, err := st.HasEntry(c.Request.Context(), viewerID, sessionID)
		if err != nil {
			respondError(c, err)
			return
		}

		entry, err := st.UpsertEntry(c.Request.Context(), viewerID, sessionID, req.Stars, req.Excitement)
		if err != nil {
			respondError(c, err)
			return
		}

		coordinator.InvalidateEntry(c.Request.Context(), sessionID, viewerID)

		status := http.StatusCreated
		if existed {
			status = http.StatusOK
		}
		c.JSON(status, models.EntryUpsertResponse{Entry: entry, Duplicate: existed})
	})

	r.DELETE("/sessions/:id/entries", func(c *gin.Context) {
		viewerID, ok := auth.ViewerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sessionID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
			return
		}

		deleted, err := st.DeleteEntry(c.Request.Context(), viewerID, sessionID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		// The pair just flipped back to no-entry; any cached full payload
		// for it must go.
		coordinator.InvalidateEntry(c.Request.Context(), sessionID, viewerID)

		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
}

// validateRating checks the optional rating fields: stars in half-star
// increments within [0.5, 5], excitement within [1, 10].
func validateRating(req models.EntryUpsertRequest) string {
	if req.Stars != nil {
		s := *req.Stars
		if s < 0.5 || s > 5 || math.Mod(s*2, 1) != 0 {
			return "stars must be 0.5–5.0 in half-star steps"
		}
	}
	if req.Excitement != nil {
		e := *req.Excitement
		if e < 1 || e > 10 {
			return "excitement must be 1–10"
		}
	}
	return ""
}
