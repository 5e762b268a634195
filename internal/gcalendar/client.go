// Package gcalendar adapts the Google Calendar v3 API to service.CalendarProvider.
package gcalendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vipul43/privatezone/internal/retry"
	"github.com/vipul43/privatezone/internal/rrule"
	"github.com/vipul43/privatezone/internal/service"
)

const (
	primaryCalendar = "primary"
	pageSize        = 250
	MaxEvents       = 2500 // Upper bound on events returned by one ListEvents call
	defaultTimeZone = "UTC"
)

// Client talks to the user's primary calendar
type Client struct {
	opts   []option.ClientOption
	retry  retry.Policy
	logger *zap.Logger
}

func NewClient(logger *zap.Logger, opts ...option.ClientOption) *Client {
	return &Client{
		opts:   opts,
		retry:  retry.Default,
		logger: logger,
	}
}

func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, c.opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents returns the single occurrences starting in [start, end), ordered
// by start time.
func (c *Client) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]service.RemoteEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var events []service.RemoteEvent
	pageToken := ""
	for {
		call := svc.Events.List(primaryCalendar).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *calendar.Events
		err := c.retry.Do(ctx, func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, classify("list events", "", err)
		}

		for _, item := range resp.Items {
			events = append(events, toRemote(item))
			if len(events) >= MaxEvents {
				c.logger.Warn("calendar listing truncated", zap.Int("limit", MaxEvents))
				return events, nil
			}
		}
		if resp.NextPageToken == "" {
			return events, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) GetEvent(ctx context.Context, accessToken, eventID string) (*service.RemoteEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	event, err := c.get(ctx, svc, eventID)
	if err != nil {
		return nil, err
	}
	remote := toRemote(event)
	return &remote, nil
}

func (c *Client) get(ctx context.Context, svc *calendar.Service, eventID string) (*calendar.Event, error) {
	var event *calendar.Event
	err := c.retry.Do(ctx, func() error {
		var err error
		event, err = svc.Events.Get(primaryCalendar, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("get event", eventID, err)
	}
	return event, nil
}

func (c *Client) CreateEvent(ctx context.Context, accessToken string, input service.EventInput) (*service.RemoteEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var created *calendar.Event
	err = c.retry.Do(ctx, func() error {
		var err error
		created, err = svc.Events.Insert(primaryCalendar, toGoogle(input)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("create event", "", err)
	}
	remote := toRemote(created)
	return &remote, nil
}

// UpdateEvent patches the event. A nil input.Recurrence leaves the remote
// rule as it is.
func (c *Client) UpdateEvent(ctx context.Context, accessToken, eventID string, input service.EventInput) (*service.RemoteEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	patch := toGoogle(input)
	patch.ForceSendFields = []string{"Summary", "Description", "Location"}

	var updated *calendar.Event
	err = c.retry.Do(ctx, func() error {
		var err error
		updated, err = svc.Events.Patch(primaryCalendar, eventID, patch).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("update event", eventID, err)
	}
	remote := toRemote(updated)
	return &remote, nil
}

func (c *Client) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	err = c.retry.Do(ctx, func() error {
		return svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	})
	if err != nil {
		return classify("delete event", eventID, err)
	}
	return nil
}

// TruncateSeries rewrites the master's RRULE lines to end just before cutoff
func (c *Client) TruncateSeries(ctx context.Context, accessToken, masterID string, cutoff time.Time) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	master, err := c.get(ctx, svc, masterID)
	if err != nil {
		return err
	}
	if len(master.Recurrence) == 0 {
		return fmt.Errorf("event %s has no recurrence to truncate", masterID)
	}

	allDay := master.Start != nil && master.Start.Date != ""
	patch := &calendar.Event{Recurrence: rrule.Truncate(master.Recurrence, cutoff, allDay)}

	err = c.retry.Do(ctx, func() error {
		_, err := svc.Events.Patch(primaryCalendar, masterID, patch).Context(ctx).Do()
		return err
	})
	if err != nil {
		return classify("truncate series", masterID, err)
	}

	c.logger.Debug("series truncated", zap.String("provider_id", masterID), zap.Time("cutoff", cutoff))
	return nil
}

// classify maps missing or revoked resources onto service sentinels
func classify(op, eventID string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %s: %w", service.ErrEventNotFound, eventID, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", service.ErrReauthorizationRequired, op, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toRemote(e *calendar.Event) service.RemoteEvent {
	remote := service.RemoteEvent{
		ID:               e.Id,
		Title:            e.Summary,
		Description:      e.Description,
		Location:         e.Location,
		RecurringEventID: e.RecurringEventId,
		Recurrence:       e.Recurrence,
		Status:           e.Status,
	}
	remote.Recurring = len(e.Recurrence) > 0 || e.RecurringEventId != ""

	if e.Start != nil {
		if e.Start.Date != "" {
			remote.AllDay = true
			remote.Start = e.Start.Date
		} else {
			remote.Start = e.Start.DateTime
			remote.TimeZone = e.Start.TimeZone
		}
	}
	if e.End != nil {
		if e.End.Date != "" {
			remote.End = e.End.Date
		} else {
			remote.End = e.End.DateTime
		}
	}
	if e.OriginalStartTime != nil {
		if e.OriginalStartTime.Date != "" {
			remote.OriginalStart = e.OriginalStartTime.Date
		} else {
			remote.OriginalStart = e.OriginalStartTime.DateTime
		}
	}
	return remote
}

// toGoogle builds the request body. All-day end dates are exclusive and
// always at least one day after the start.
func toGoogle(input service.EventInput) *calendar.Event {
	event := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
		Recurrence:  input.Recurrence,
	}

	if input.AllDay {
		end := input.End
		if !end.After(input.Start) {
			end = input.Start.AddDate(0, 0, 1)
		}
		event.Start = &calendar.EventDateTime{Date: input.Start.Format(time.DateOnly)}
		event.End = &calendar.EventDateTime{Date: end.Format(time.DateOnly)}
		return event
	}

	tz := input.TimeZone
	if tz == "" {
		tz = defaultTimeZone
	}
	event.Start = &calendar.EventDateTime{DateTime: input.Start.Format(time.RFC3339), TimeZone: tz}
	event.End = &calendar.EventDateTime{DateTime: input.End.Format(time.RFC3339), TimeZone: tz}
	return event
}
