package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minute/internal/storage"
)

// ResetDB drops all data, recreates the schema and loads the demo seed.
func (s *Server) ResetDB(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.store.Reset(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if err := storage.Seed(ctx, s.store, s.now()); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Warn("database reset and reseeded")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
