package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gridlog/gridlog/internal/auth"
	"github.com/gridlog/gridlog/internal/spoiler"
)

// maxBatchIDs bounds the batch summary fan-out per request.
const maxBatchIDs = 100

// RegisterSessionRoutes registers the read-path endpoints.
//
// GET /sessions?ids=a,b,c
// - Batch masked summaries, input order preserved, unknown ids dropped
//
// GET /sessions/:id
// - Masked session detail for the optional authenticated viewer
// - ?reveal=1 forces full visibility for this response only (nothing is
//   persisted and the payload is cached under a distinct fingerprint)
func RegisterSessionRoutes(r gin.IRoutes, engine *spoiler.Engine) {
	r.GET("/sessions", func(c *gin.Context) {
		raw := strings.TrimSpace(c.Query("ids"))
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids required"})
			return
		}

		parts := strings.Split(raw, ",")
		if len(parts) > maxBatchIDs {
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many ids"})
			return
		}

		ids := make([]uuid.UUID, 0, len(parts))
		for _, p := range parts {
			id, err := uuid.Parse(strings.TrimSpace(p))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be UUIDs"})
				return
			}
			ids = append(ids, id)
		}

		summaries, err := engine.BatchSummaries(c.Request.Context(), ids, auth.OptionalViewer(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"sessions": summaries})
	})

	r.GET("/sessions/:id", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
			return
		}

		forceFull := c.Query("reveal") == "1"

		detail, err := engine.SessionDetail(c.Request.Context(), id, auth.OptionalViewer(c), forceFull)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, detail)
	})
}
