package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/pipeline/async"
)

type submitScanRequest struct {
	Type            string                  `json:"type"`
	Lines           []string                `json:"lines"`
	TokenConfidence []entity.LineConfidence `json:"token_confidence,omitempty"`
}

// handleSubmitScan runs a scan through the pipeline. With ?async=1 the
// scan is queued and the response carries only the assigned id.
func (s *Server) handleSubmitScan(c *gin.Context) {
	var req submitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewValidationError("request body must be JSON with type and lines"))
		return
	}

	raw := entity.RawScan{
		ID:              uuid.New(),
		Type:            constants.ScanType(req.Type),
		Lines:           req.Lines,
		TokenConfidence: req.TokenConfidence,
	}

	if isAsync(c.Query("async")) {
		job := async.Job{Scan: raw, RequestID: requestIDFrom(c)}
		if err := s.deps.Queue.Enqueue(job); err != nil {
			switch {
			case errors.Is(err, async.ErrQueueFull):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":      "scan queue is full, retry later",
					"code":       "QUEUE_FULL",
					"request_id": requestIDFrom(c),
				})
			case errors.Is(err, async.ErrQueueClosed):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":      "server is shutting down",
					"code":       "UNAVAILABLE",
					"request_id": requestIDFrom(c),
				})
			default:
				s.respondError(c, err)
			}
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"scan_id": raw.ID})
		return
	}

	report, err := s.deps.Pipeline.ProcessScan(c.Request.Context(), raw)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func isAsync(v string) bool {
	return v == "1" || v == "true"
}

func (s *Server) handleScanHistory(c *gin.Context) {
	limit, ok := s.intQuery(c, "limit", 0)
	if !ok {
		return
	}
	scans, err := s.deps.Scans.History(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans, "count": len(scans)})
}

func (s *Server) handleGetScan(c *gin.Context) {
	id, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	scan, err := s.deps.Scans.GetScan(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}
