package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

const defaultGmailResults = 50

type syncResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SyncedCount  int    `json:"syncedCount"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Unchanged    int    `json:"unchanged"`
	Skipped      int    `json:"skipped"`
	TotalFetched int    `json:"totalFetched"`
}

func newSyncResponse(what string, r *service.SyncResult) syncResponse {
	return syncResponse{
		Success:      true,
		Message:      fmt.Sprintf("%s synced successfully", what),
		SyncedCount:  r.SyncedCount(),
		Created:      r.Created,
		Updated:      r.Updated,
		Unchanged:    r.Unchanged,
		Skipped:      r.Skipped,
		TotalFetched: r.Fetched,
	}
}

type calendarSyncRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

func (s *Server) syncCalendar(provider models.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req calendarSyncRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		var window service.Window
		if req.Start != nil {
			window.Start = *req.Start
		}
		if req.End != nil {
			window.End = *req.End
		}

		result, err := s.services.Calendar.SyncCalendar(c.Request.Context(), currentUser(c), provider, window)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, newSyncResponse("Calendar events", result))
	}
}

type gmailSyncRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

func (s *Server) syncGmail(c *gin.Context) {
	var req gmailSyncRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.MaxResults < 0 {
		badRequest(c, "maxResults must not be negative")
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultGmailResults
	}

	result, err := s.services.Mail.SyncMessages(c.Request.Context(), currentUser(c), req.Query, req.MaxResults)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSyncResponse("Emails", result))
}

func (s *Server) syncTasks(c *gin.Context) {
	result, err := s.services.Tasks.SyncTasks(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSyncResponse("Tasks", result))
}

type pushTaskRequest struct {
	TaskID string `json:"taskId" binding:"required"`
}

func (s *Server) pushTask(c *gin.Context) {
	var req pushTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "taskId is required")
		return
	}

	task, err := s.services.Tasks.PushTask(c.Request.Context(), currentUser(c), req.TaskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": newTaskResponse(task)})
}

func (s *Server) attachment(c *gin.Context) {
	att, err := s.services.Mail.AttachmentContent(c.Request.Context(), currentUser(c), c.Param("emailId"), c.Param("attachmentId"))
	if err != nil {
		s.fail(c, err)
		return
	}

	disposition := "attachment"
	if att.IsInline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, att.Filename))
	c.Data(http.StatusOK, att.MimeType, att.Data)
}

// bindOptionalJSON decodes the body when one was sent. An empty body leaves
// dst at its zero value.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
