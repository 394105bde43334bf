package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// viewerCtxKey is the Gin context key used to store the authenticated viewer id.
const viewerCtxKey = "viewer_id"

// ViewerMiddleware maps X-Viewer-Token → viewer id. In production this
// mapping would come from the identity collaborator (sessions/JWT); the
// static token map keeps the same contract for local dev and tests.
//
// Anonymous access is allowed: a missing token passes through with no
// viewer in context, and the spoiler policy treats that as strict with
// no entry. A token that is present but unknown is rejected: that is a
// credential failure, not anonymity.
func ViewerMiddleware(tokens map[string]uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("X-Viewer-Token"))
		if token == "" {
			c.Next()
			return
		}

		viewerID, ok := tokens[token]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(viewerCtxKey, viewerID)
		c.Next()
	}
}

// ViewerID returns the authenticated viewer id from the request context.
// ok is false for anonymous requests.
func ViewerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(viewerCtxKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// OptionalViewer adapts ViewerID to the pointer form the disclosure
// engine takes: nil means anonymous.
func OptionalViewer(c *gin.Context) *uuid.UUID {
	id, ok := ViewerID(c)
	if !ok {
		return nil
	}
	return &id
}
