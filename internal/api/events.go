package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

// calendarProviders accepts the short route names next to the stored ones
var calendarProviders = map[string]models.Provider{
	"google":                              models.ProviderGoogleCalendar,
	string(models.ProviderGoogleCalendar): models.ProviderGoogleCalendar,
	"microsoft":                           models.ProviderMicrosoftGraph,
	"outlook":                             models.ProviderMicrosoftGraph,
	string(models.ProviderMicrosoftGraph): models.ProviderMicrosoftGraph,
}

type eventRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Location           string   `json:"location"`
	Start              string   `json:"start" binding:"required"`
	End                string   `json:"end" binding:"required"`
	AllDay             bool     `json:"allDay"`
	TimeZone           string   `json:"timeZone"`
	Recurrence         []string `json:"recurrence"`
	RecurringEditScope string   `json:"recurringEditScope"`
}

func (r eventRequest) input() (service.EventInput, error) {
	start, err := parseRequestTime(r.Start, r.AllDay)
	if err != nil {
		return service.EventInput{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseRequestTime(r.End, r.AllDay)
	if err != nil {
		return service.EventInput{}, fmt.Errorf("invalid end: %w", err)
	}
	if end.Before(start) {
		return service.EventInput{}, fmt.Errorf("end is before start")
	}

	return service.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Start:       start,
		End:         end,
		AllDay:      r.AllDay,
		TimeZone:    r.TimeZone,
		Recurrence:  r.Recurrence,
	}, nil
}

// parseRequestTime takes RFC 3339, or a bare date for all-day events
func parseRequestTime(v string, allDay bool) (time.Time, error) {
	if allDay {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, v)
}

type eventResponse struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"providerId,omitempty"`
	Provider    string    `json:"provider"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAllDay    bool      `json:"isAllDay"`
	IsRecurring bool      `json:"isRecurring"`
	SeriesID    string    `json:"seriesId,omitempty"`
	Recurrence  string    `json:"recurrence,omitempty"`
	Status      string    `json:"status"`
}

func newEventResponse(e *models.CalendarEvent) eventResponse {
	return eventResponse{
		ID:          e.ID,
		ProviderID:  deref(e.ProviderID),
		Provider:    string(e.Provider),
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		IsAllDay:    e.IsAllDay,
		IsRecurring: e.IsRecurring,
		SeriesID:    deref(e.SeriesID),
		Recurrence:  e.Recurrence,
		Status:      e.Status,
	}
}

type taskResponse struct {
	ID          string     `json:"id"`
	ProviderID  string     `json:"providerId,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

func newTaskResponse(t *models.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ProviderID:  deref(t.ProviderID),
		Title:       t.Title,
		Notes:       t.Notes,
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		DueAt:       t.DueAt,
		Priority:    t.Priority,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func calendarProvider(c *gin.Context) (models.Provider, bool) {
	provider, ok := calendarProviders[c.Param("provider")]
	if !ok {
		badRequest(c, fmt.Sprintf("unsupported calendar provider %q", c.Param("provider")))
	}
	return provider, ok
}

func (s *Server) createEvent(c *gin.Context) {
	provider, ok := calendarProvider(c)
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	input, err := req.input()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	event, err := s.services.Events.CreateEvent(c.Request.Context(), currentUser(c), provider, input)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "event": newEventResponse(event)})
}

func (s *Server) updateEvent(c *gin.Context) {
	provider, ok := calendarProvider(c)
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	scope, err := models.ParseEditScope(req.RecurringEditScope)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	event, err := s.services.Events.UpdateEvent(c.Request.Context(), currentUser(c), provider, c.Param("eventId"), input, scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "event": newEventResponse(event)})
}

func (s *Server) deleteEvent(c *gin.Context) {
	provider, ok := calendarProvider(c)
	if !ok {
		return
	}
	scope, err := models.ParseEditScope(c.Query("scope"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	plan, err := s.services.Events.DeleteEvent(c.Request.Context(), currentUser(c), provider, c.Param("eventId"), scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"scope":    plan.Scope,
		"action":   plan.Action,
		"targetId": plan.TargetID,
		"fallback": plan.Fallback,
	})
}
