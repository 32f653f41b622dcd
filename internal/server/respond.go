package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediscan/mediscan/internal/common"
)

// httpStatus maps service errors onto HTTP statuses by sentinel, so the
// mapping survives wrapping.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateScan):
		return http.StatusConflict
	case errors.Is(err, common.ErrNoRequiredFields):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrEmptyScan),
		errors.Is(err, common.ErrInvalidScanType),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func defaultCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "NO_RECORDS"
	default:
		return "INTERNAL"
	}
}

// respondError writes the JSON error envelope and aborts the chain.
// Internal failures keep their details out of the response body.
func (s *Server) respondError(c *gin.Context, err error) {
	status := httpStatus(err)
	code := defaultCode(status)
	msg := "internal error"

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	if status != http.StatusInternalServerError {
		if appErr != nil {
			msg = appErr.Message
		} else {
			msg = err.Error()
		}
	} else {
		s.logger.Error("http.handler.failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", requestIDFrom(c),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"code":       code,
		"request_id": requestIDFrom(c),
	})
}

// uuidParam parses the named path parameter; on failure it writes a 400
// and reports false.
func (s *Server) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(c, common.NewValidationErrorf("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter, falling back to
// def when absent.
func (s *Server) intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.respondError(c, common.NewValidationErrorf("%s must be an integer", name))
		return 0, false
	}
	return n, true
}

func (s *Server) boolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.respondError(c, common.NewValidationErrorf("%s must be a boolean", name))
		return nil, false
	}
	return &v, true
}
