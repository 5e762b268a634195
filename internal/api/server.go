// Package api exposes the sync engine over HTTP. Callers are identified by
// the X-User-ID header set by the upstream auth proxy.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

type CalendarSyncer interface {
	SyncCalendar(ctx context.Context, userID string, provider models.Provider, window service.Window) (*service.SyncResult, error)
}

type MailSyncer interface {
	SyncMessages(ctx context.Context, userID, query string, limit int) (*service.SyncResult, error)
	AttachmentContent(ctx context.Context, userID, emailID, attachmentID string) (*models.EmailAttachment, error)
}

type TaskSyncer interface {
	SyncTasks(ctx context.Context, userID string) (*service.SyncResult, error)
	PushTask(ctx context.Context, userID, taskID string) (*models.Task, error)
}

type EventEditor interface {
	CreateEvent(ctx context.Context, userID string, provider models.Provider, input service.EventInput) (*models.CalendarEvent, error)
	UpdateEvent(ctx context.Context, userID string, provider models.Provider, eventID string, input service.EventInput, scope models.EditScope) (*models.CalendarEvent, error)
	DeleteEvent(ctx context.Context, userID string, provider models.Provider, eventID string, scope models.EditScope) (*service.ScopePlan, error)
}

type Integrations interface {
	AuthURL(provider models.Provider, state string) (string, error)
	Connect(ctx context.Context, userID string, provider models.Provider, code string) (*models.Integration, error)
	Disconnect(ctx context.Context, userID string, provider models.Provider) error
	Status(ctx context.Context, userID string, provider models.Provider) (*service.ConnectionStatus, error)
}

// Services bundles everything the routes call into
type Services struct {
	Calendar     CalendarSyncer
	Mail         MailSyncer
	Tasks        TaskSyncer
	Events       EventEditor
	Integrations Integrations
}

type Server struct {
	services Services
	logger   *zap.Logger
}

func NewServer(services Services, logger *zap.Logger) *Server {
	return &Server{services: services, logger: logger}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", requireUser())
	{
		api.POST("/google/calendar/sync", s.syncCalendar(models.ProviderGoogleCalendar))
		api.POST("/microsoft/calendar/sync", s.syncCalendar(models.ProviderMicrosoftGraph))
		api.POST("/gmail/sync", s.syncGmail)
		api.POST("/google/tasks/sync", s.syncTasks)
		api.POST("/google/tasks/push", s.pushTask)

		api.POST("/calendar/:provider/events", s.createEvent)
		api.PUT("/calendar/:provider/events/:eventId", s.updateEvent)
		api.DELETE("/calendar/:provider/events/:eventId", s.deleteEvent)

		api.GET("/emails/:emailId/attachments/:attachmentId", s.attachment)

		api.GET("/integrations/:provider/connect", s.connect)
		api.GET("/integrations/:provider/callback", s.callback)
		api.GET("/integrations/:provider/status", s.status)
		api.POST("/integrations/:provider/disconnect", s.disconnect)
	}
	return r
}

// NewHTTPServer wraps handler with the timeouts used in production
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // a full sync pass runs inside the request
	}
}
