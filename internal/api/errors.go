package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"minute/internal/catalog"
	"minute/internal/models"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeValidation        = "validation"
	codeInvalidStatus     = "invalid_status"
	codeUnknownMenuItem   = "unknown_menu_item"
	codeUnknownFood       = "unknown_food"
	codeNotFound          = "not_found"
	codeSoldOut           = "sold_out"
	codeInvalidTransition = "invalid_transition"
	codeConflict          = "conflict"
	codeInactiveFood      = "inactive_food"
	codeInternal          = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a service error to its HTTP status and code. References to
// missing entities inside a request body are the client's fault (400); a
// missing entity named by the path is a 404.
func classify(err error) (int, string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, models.ErrInvalidPortions):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, models.ErrInvalidStatus):
		return http.StatusBadRequest, codeInvalidStatus
	case errors.Is(err, models.ErrUnknownMenuItem):
		return http.StatusBadRequest, codeUnknownMenuItem
	case errors.Is(err, models.ErrUnknownFood):
		return http.StatusBadRequest, codeUnknownFood
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, models.ErrSoldOut):
		return http.StatusConflict, codeSoldOut
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusBadRequest, codeInvalidTransition
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, models.ErrInactiveFood):
		return http.StatusBadRequest, codeInactiveFood
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// fail writes err as a JSON error body. Infrastructure errors are logged and
// hidden from the client.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: codeValidation})
}

// pathID parses the :id path parameter, answering 400 itself when it isn't a
// positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error: "invalid id " + strconv.Quote(c.Param("id")),
			Code:  codeValidation,
		})
		return 0, false
	}
	return uint(id), true
}
