package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gridlog/gridlog/internal/spoiler"
)

// respondError maps the core error taxonomy to HTTP statuses. NotFound
// and Unauthorized stay distinct on the wire: a missing session must
// never be presented as a protected one.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, spoiler.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, spoiler.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, spoiler.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
