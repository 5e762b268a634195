// Package msgraph adapts the Microsoft Graph calendar API to
// service.CalendarProvider.
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/retry"
	"github.com/vipul43/privatezone/internal/service"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	MaxEvents      = 2500

	pageSize     = 100
	utcZone      = "UTC"
	graphLayout  = "2006-01-02T15:04:05.9999999"
	preferHeader = `outlook.timezone="UTC"`
)

// StatusError is a non-2xx Graph response
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph API error (status %d): %s %s", e.Status, e.Code, e.Message)
}

// StatusCode lets retry classify the error
func (e *StatusError) StatusCode() int {
	return e.Status
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Policy
	logger     *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  retry.Default,
		logger: logger,
	}
}

// SetBaseURL points the client at another Graph deployment
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// ListEvents reads /me/calendarView, which expands recurring series into
// occurrences, following @odata.nextLink up to MaxEvents.
func (c *Client) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]service.RemoteEvent, error) {
	q := url.Values{}
	q.Set("startDateTime", start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", end.UTC().Format(time.RFC3339))
	q.Set("$orderby", "start/dateTime")
	q.Set("$top", fmt.Sprint(pageSize))
	next := c.baseURL + "/me/calendarView?" + q.Encode()

	var events []service.RemoteEvent
	for next != "" {
		var page eventPage
		if err := c.do(ctx, accessToken, http.MethodGet, next, nil, &page); err != nil {
			return nil, classify("list events", "", err)
		}
		for _, e := range page.Value {
			events = append(events, toRemote(e))
			if len(events) >= MaxEvents {
				c.logger.Warn("calendar listing truncated", zap.Int("limit", MaxEvents))
				return events, nil
			}
		}
		next = page.NextLink
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, accessToken, eventID string) (*service.RemoteEvent, error) {
	e, err := c.get(ctx, accessToken, eventID)
	if err != nil {
		return nil, err
	}
	remote := toRemote(*e)
	return &remote, nil
}

func (c *Client) get(ctx context.Context, accessToken, eventID string) (*event, error) {
	var e event
	if err := c.do(ctx, accessToken, http.MethodGet, c.eventURL(eventID), nil, &e); err != nil {
		return nil, classify("get event", eventID, err)
	}
	return &e, nil
}

func (c *Client) CreateEvent(ctx context.Context, accessToken string, input service.EventInput) (*service.RemoteEvent, error) {
	body, err := toGraph(input)
	if err != nil {
		return nil, err
	}

	var created event
	if err := c.do(ctx, accessToken, http.MethodPost, c.baseURL+"/me/events", body, &created); err != nil {
		return nil, classify("create event", "", err)
	}
	remote := toRemote(created)
	return &remote, nil
}

// UpdateEvent patches the event; a nil input.Recurrence is not sent
func (c *Client) UpdateEvent(ctx context.Context, accessToken, eventID string, input service.EventInput) (*service.RemoteEvent, error) {
	body, err := toGraph(input)
	if err != nil {
		return nil, err
	}

	var updated event
	if err := c.do(ctx, accessToken, http.MethodPatch, c.eventURL(eventID), body, &updated); err != nil {
		return nil, classify("update event", eventID, err)
	}
	remote := toRemote(updated)
	return &remote, nil
}

func (c *Client) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	if err := c.do(ctx, accessToken, http.MethodDelete, c.eventURL(eventID), nil, nil); err != nil {
		return classify("delete event", eventID, err)
	}
	return nil
}

// TruncateSeries ends the master's recurrence range on the last day before
// cutoff. The range end is a date in the series' recurrence time zone.
func (c *Client) TruncateSeries(ctx context.Context, accessToken, masterID string, cutoff time.Time) error {
	master, err := c.get(ctx, accessToken, masterID)
	if err != nil {
		return err
	}
	if master.Recurrence == nil {
		return fmt.Errorf("event %s has no recurrence to truncate", masterID)
	}

	lastDay := cutoff.AddDate(0, 0, -1)
	if !master.IsAllDay {
		zone := master.Recurrence.Range.RecurrenceTimeZone
		if zone == "" {
			zone = master.OriginalStartTimeZone
		}
		loc, ok := recurrenceLocation(zone)
		if !ok {
			c.logger.Warn("unknown recurrence time zone, truncating in UTC",
				zap.String("provider_id", masterID), zap.String("time_zone", zone))
		}
		y, m, d := cutoff.In(loc).Date()
		lastDay = time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC)
	}

	rec := *master.Recurrence
	rec.Range = recurrenceRange{
		Type:               "endDate",
		StartDate:          master.Recurrence.Range.StartDate,
		EndDate:            lastDay.Format(time.DateOnly),
		RecurrenceTimeZone: master.Recurrence.Range.RecurrenceTimeZone,
	}
	patch := map[string]interface{}{"recurrence": rec}

	if err := c.do(ctx, accessToken, http.MethodPatch, c.eventURL(masterID), patch, nil); err != nil {
		return classify("truncate series", masterID, err)
	}
	return nil
}

func (c *Client) eventURL(eventID string) string {
	return c.baseURL + "/me/events/" + url.PathEscape(eventID)
}

// do sends one JSON request under the retry policy and decodes the
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, accessToken, method, endpoint string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return c.retry.Do(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Prefer", preferHeader)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{Status: resp.StatusCode}
			var eb errorBody
			if json.Unmarshal(data, &eb) == nil {
				statusErr.Code = eb.Error.Code
				statusErr.Message = eb.Error.Message
			}
			return statusErr
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}

func classify(op, eventID string, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %s: %w", service.ErrEventNotFound, eventID, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", service.ErrReauthorizationRequired, op, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toRemote(e event) service.RemoteEvent {
	remote := service.RemoteEvent{
		ID:               e.ID,
		Title:            e.Subject,
		AllDay:           e.IsAllDay,
		RecurringEventID: e.SeriesMasterID,
		Status:           "confirmed",
	}
	if e.IsCancelled {
		remote.Status = "cancelled"
	}
	if e.Body != nil && e.Body.ContentType == "text" {
		remote.Description = e.Body.Content
	} else {
		remote.Description = e.BodyPreview
	}
	if e.Location != nil {
		remote.Location = e.Location.DisplayName
	}

	remote.Start, remote.TimeZone = graphTime(e.Start, e.IsAllDay)
	remote.End, _ = graphTime(e.End, e.IsAllDay)

	if e.OriginalStart != "" {
		if t, err := time.Parse(time.RFC3339Nano, e.OriginalStart); err == nil {
			remote.OriginalStart = t.UTC().Format(time.RFC3339)
			if e.IsAllDay {
				remote.OriginalStart = t.Format(time.DateOnly)
			}
		}
	}

	switch e.Type {
	case typeSeriesMaster:
		remote.Recurring = true
		rules, err := toRRule(e.Recurrence)
		if err == nil {
			remote.Recurrence = rules
		}
	case typeOccurrence, typeException:
		remote.Recurring = true
	}
	return remote
}

// graphTime converts a Graph dateTimeTimeZone into the date or RFC3339 form
// RemoteEvent carries. Times outside UTC fall back to the raw value.
func graphTime(dt *dateTimeZone, allDay bool) (string, string) {
	if dt == nil || dt.DateTime == "" {
		return "", ""
	}
	loc := time.UTC
	if dt.TimeZone != "" && dt.TimeZone != utcZone {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphLayout, dt.DateTime, loc)
	if err != nil {
		return dt.DateTime, dt.TimeZone
	}
	if allDay {
		return t.Format(time.DateOnly), dt.TimeZone
	}
	return t.UTC().Format(time.RFC3339), dt.TimeZone
}

func toGraph(input service.EventInput) (*event, error) {
	e := &event{
		Subject:  input.Title,
		Body:     &itemBody{ContentType: "text", Content: input.Description},
		Location: &location{DisplayName: input.Location},
		IsAllDay: input.AllDay,
	}

	zone := utcZone
	start, end := input.Start.UTC(), input.End.UTC()
	if input.AllDay {
		if input.TimeZone != "" {
			zone = input.TimeZone
		}
		start = midnight(input.Start)
		end = midnight(input.End)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}
	e.Start = &dateTimeZone{DateTime: start.Format(graphLayout), TimeZone: zone}
	e.End = &dateTimeZone{DateTime: end.Format(graphLayout), TimeZone: zone}

	if input.Recurrence != nil {
		rec, err := fromRRule(input.Recurrence, input.Start, zone)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", service.ErrMalformedRecord, err)
		}
		e.Recurrence = rec
	}
	return e, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
