package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/reminder"
)

type createReminderRequest struct {
	Times     []string `json:"times,omitempty"`
	Frequency string   `json:"frequency,omitempty"`
}

// handleCreateReminder attaches a dose reminder to a record. Times may
// be given explicitly or derived from a frequency phrase; with neither,
// the record's own frequency decides.
func (s *Server) handleCreateReminder(c *gin.Context) {
	recordID, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		s.respondError(c, common.NewValidationError("request body must be JSON"))
		return
	}

	validator := common.NewValidator()
	for i, clock := range req.Times {
		validator.Field(fmt.Sprintf("times[%d]", i), clock, common.TimeOfDay)
	}
	if err := common.ValidateAndReturnError(validator); err != nil {
		s.respondError(c, err)
		return
	}

	rem, err := s.deps.Scheduler.CreateForRecord(c.Request.Context(), recordID, reminder.CreateOptions{
		Times:     req.Times,
		Frequency: req.Frequency,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rem)
}

// handleDueReminders expands active reminders over a window, defaulting
// to the next 24 hours.
func (s *Server) handleDueReminders(c *gin.Context) {
	now := time.Now().UTC()
	from, ok := s.timeQuery(c, "from", now)
	if !ok {
		return
	}
	to, ok := s.timeQuery(c, "to", from.Add(24*time.Hour))
	if !ok {
		return
	}

	due, err := s.deps.Scheduler.DueBetween(c.Request.Context(), from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"due": due, "count": len(due), "from": from, "to": to})
}

type doseEventRequest struct {
	Status string `json:"status"`
	At     string `json:"at,omitempty"`
}

func (s *Server) handleDoseEvent(c *gin.Context) {
	reminderID, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	var req doseEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewValidationError("request body must be JSON with status"))
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	validator := common.NewValidator()
	validator.Field("status", status, common.Required, common.OneOf("taken", "missed"))
	if err := common.ValidateAndReturnError(validator); err != nil {
		s.respondError(c, err)
		return
	}

	var at time.Time
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			s.respondError(c, common.NewValidationError("at must be RFC3339"))
			return
		}
		at = parsed
	}

	mark := s.deps.Scheduler.MarkTaken
	if status == "missed" {
		mark = s.deps.Scheduler.MarkMissed
	}
	if err := mark(c.Request.Context(), reminderID, at); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCompliance reports taken/missed counts over the last N days.
func (s *Server) handleCompliance(c *gin.Context) {
	recordID, ok := s.uuidParam(c, "id")
	if !ok {
		return
	}
	days, ok := s.intQuery(c, "days", 7)
	if !ok {
		return
	}
	if days <= 0 {
		s.respondError(c, common.NewValidationError("days must be > 0"))
		return
	}

	report, err := s.deps.Scheduler.Compliance(c.Request.Context(), recordID, time.Duration(days)*24*time.Hour)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// timeQuery parses an optional RFC3339 query parameter.
func (s *Server) timeQuery(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.respondError(c, common.NewValidationErrorf("%s must be RFC3339", name))
		return time.Time{}, false
	}
	return t, true
}
