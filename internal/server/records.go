package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListRecords(c *gin.Context) {
	needsReview, ok := s.boolQuery(c, "needs_review")
	if !ok {
		return
	}
	limit, ok := s.intQuery(c, "limit", 0)
	if !ok {
		return
	}

	filter := repository.ListFilter{
		NeedsReview: needsReview,
		Form:        constants.DoseForm(strings.ToUpper(strings.TrimSpace(c.Query("form")))),
		Category:    strings.TrimSpace(c.Query("category")),
		Search:      strings.TrimSpace(c.Query("search")),
		Limit:       limit,
	}
	records, err := s.deps.Medicines.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (s *Server) handleGetRecord(c *gin.Context) {
	id, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	rec, err := s.deps.Medicines.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(c *gin.Context) {
	id, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := s.deps.Medicines.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExpiring(c *gin.Context) {
	days, ok := s.intQuery(c, "days", s.deps.SoonDays)
	if !ok {
		return
	}
	if days < 0 {
		s.respondError(c, common.NewValidationError("days must be >= 0"))
		return
	}
	records, err := s.deps.Medicines.ExpiringWithin(c.Request.Context(), days, time.Now().UTC())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records), "days": days})
}

func (s *Server) handleExpired(c *gin.Context) {
	records, err := s.deps.Medicines.Expired(c.Request.Context(), time.Now().UTC())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (s *Server) handleExpiryAlerts(c *gin.Context) {
	alerts, err := s.deps.Scheduler.ExpiryAlerts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.deps.Medicines.Stats(c.Request.Context(), time.Now().UTC(), s.deps.SoonDays)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleExportXLSX(c *gin.Context) {
	buf, err := s.deps.Exporter.ExportXLSX(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("mediscan-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
