package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/rrule"
)

// ScopeAction is what a resolved edit scope does at the provider
type ScopeAction string

const (
	ActionInstance ScopeAction = "instance" // Operate on the given event only
	ActionSeries   ScopeAction = "series"   // Operate on the series master
	ActionTruncate ScopeAction = "truncate" // End the master's recurrence before the instance
)

// ScopePlan is the outcome of resolving an edit scope against a target event
type ScopePlan struct {
	Scope         models.EditScope
	Action        ScopeAction
	TargetID      string    // Event the provider call operates on
	MasterID      string    // Series master, empty for standalone events
	InstanceStart time.Time // Truncate only: start of the targeted occurrence, the cutoff sent to the provider
	Until         time.Time // Truncate only: last instant (timed) or day (all-day) the old series keeps
	AllDay        bool
	Fallback      bool // future was requested on a master and applied as all
}

// ResolveScope decides which provider event an edit touches. target may be nil
// for ScopeInstance, which never needs a lookup.
//
// A future-scoped edit on the series master itself has no instance date to
// split at, so it is applied to the whole series.
func ResolveScope(eventID string, target *RemoteEvent, scope models.EditScope) (ScopePlan, error) {
	plan := ScopePlan{Scope: scope, Action: ActionInstance, TargetID: eventID}

	switch scope {
	case models.ScopeInstance, "":
		plan.Scope = models.ScopeInstance
		return plan, nil
	case models.ScopeAll, models.ScopeFuture:
	default:
		return ScopePlan{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}

	if target == nil {
		return ScopePlan{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	plan.TargetID = target.ID
	plan.AllDay = target.AllDay

	isMaster := target.RecurringEventID == "" && (target.Recurring || len(target.Recurrence) > 0)

	if scope == models.ScopeAll {
		plan.Action = ActionSeries
		switch {
		case target.RecurringEventID != "":
			plan.TargetID = target.RecurringEventID
			plan.MasterID = target.RecurringEventID
		case isMaster:
			plan.MasterID = target.ID
		}
		return plan, nil
	}

	// future
	if target.RecurringEventID == "" {
		if isMaster {
			plan.Action = ActionSeries
			plan.MasterID = target.ID
			plan.Fallback = true
		}
		return plan, nil
	}

	startValue := target.OriginalStart
	if startValue == "" {
		startValue = target.Start
	}
	start, err := parseEventTime(startValue, target.AllDay)
	if err != nil {
		return ScopePlan{}, fmt.Errorf("%w: event %s start: %v", ErrMalformedRecord, target.ID, err)
	}

	plan.Action = ActionTruncate
	plan.TargetID = target.RecurringEventID
	plan.MasterID = target.RecurringEventID
	plan.InstanceStart = start
	if target.AllDay {
		plan.Until = start.AddDate(0, 0, -1)
	} else {
		plan.Until = start.Add(-time.Second)
	}
	return plan, nil
}

// EventEditor applies scoped creates, updates and deletes to provider
// calendars and keeps the local mirror in step.
type EventEditor struct {
	tokens    TokenSource
	store     EventStore
	mirror    *eventMirror
	providers map[models.Provider]CalendarProvider
	logger    *zap.Logger
}

func NewEventEditor(tokens TokenSource, store EventStore, providers map[models.Provider]CalendarProvider, logger *zap.Logger) *EventEditor {
	return &EventEditor{
		tokens:    tokens,
		store:     store,
		mirror:    newEventMirror(store),
		providers: providers,
		logger:    logger,
	}
}

func (e *EventEditor) calendar(ctx context.Context, userID string, provider models.Provider) (CalendarProvider, string, error) {
	cal, ok := e.providers[provider]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	token, err := e.tokens.AccessToken(ctx, userID, provider)
	if err != nil {
		return nil, "", err
	}
	return cal, token, nil
}

// plan looks the target up when the scope needs it and resolves the scope
func (e *EventEditor) plan(ctx context.Context, cal CalendarProvider, token, eventID string, scope models.EditScope) (ScopePlan, *RemoteEvent, error) {
	var target *RemoteEvent
	if scope == models.ScopeAll || scope == models.ScopeFuture {
		var err error
		if target, err = cal.GetEvent(ctx, token, eventID); err != nil {
			return ScopePlan{}, nil, providerError(err)
		}
	}
	plan, err := ResolveScope(eventID, target, scope)
	return plan, target, err
}

// CreateEvent creates a provider event and mirrors it locally
func (e *EventEditor) CreateEvent(ctx context.Context, userID string, provider models.Provider, input EventInput) (*models.CalendarEvent, error) {
	cal, token, err := e.calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	created, err := cal.CreateEvent(ctx, token, input)
	if err != nil {
		return nil, providerError(err)
	}
	event, _, err := e.mirror.upsert(ctx, userID, provider, *created)
	if err != nil {
		return nil, fmt.Errorf("failed to mirror created event: %w", err)
	}
	return event, nil
}

// UpdateEvent edits eventID within scope and returns the mirrored result
func (e *EventEditor) UpdateEvent(ctx context.Context, userID string, provider models.Provider, eventID string, input EventInput, scope models.EditScope) (*models.CalendarEvent, error) {
	cal, token, err := e.calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	plan, target, err := e.plan(ctx, cal, token, eventID, scope)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
		zap.String("provider_id", eventID),
		zap.String("action", string(plan.Action)))
	if plan.Fallback {
		log.Info("future scope on series master, applying to all occurrences")
	}

	var updated *RemoteEvent
	switch plan.Action {
	case ActionInstance:
		updated, err = cal.UpdateEvent(ctx, token, plan.TargetID, input)
	case ActionSeries:
		if updated, err = e.updateSeries(ctx, cal, token, plan, target, input); err != nil {
			return nil, err
		}
	case ActionTruncate:
		return e.splitSeries(ctx, cal, token, userID, provider, plan, target, input)
	}
	if err != nil {
		return nil, providerError(err)
	}

	event, _, err := e.mirror.upsert(ctx, userID, provider, *updated)
	if err != nil {
		return nil, fmt.Errorf("failed to mirror updated event: %w", err)
	}
	if plan.Action == ActionSeries && plan.MasterID != "" {
		e.refreshOccurrences(ctx, cal, token, userID, provider, plan.MasterID, log)
	}
	log.Info("event updated")
	return event, nil
}

// occurrenceRefreshPadding widens the refresh window past the mirrored
// occurrences so ones moved by the edit are still listed.
const occurrenceRefreshPadding = 7 * 24 * time.Hour

// refreshOccurrences re-mirrors the local occurrences of masterID after a
// series-wide edit. Rows the provider no longer lists are removed. Failures
// are logged and leave the rows for the next sync.
func (e *EventEditor) refreshOccurrences(ctx context.Context, cal CalendarProvider, token, userID string, provider models.Provider, masterID string, log *zap.Logger) {
	local, err := e.store.ListSeriesOccurrences(ctx, userID, masterID)
	if err != nil {
		log.Warn("failed to list local occurrences", zap.Error(err))
		return
	}
	if len(local) == 0 {
		return
	}

	start := local[0].StartTime.Add(-occurrenceRefreshPadding)
	end := local[len(local)-1].StartTime.Add(occurrenceRefreshPadding)
	remote, err := cal.ListEvents(ctx, token, start, end)
	if err != nil {
		log.Warn("failed to list provider occurrences", zap.Error(err))
		return
	}

	listed := make(map[string]bool, len(remote))
	var refreshed, removed int
	for _, occurrence := range remote {
		if occurrence.RecurringEventID != masterID {
			continue
		}
		listed[occurrence.ID] = true
		_, result, err := e.mirror.upsert(ctx, userID, provider, occurrence)
		if err != nil {
			log.Warn("failed to refresh occurrence", zap.String("occurrence_id", occurrence.ID), zap.Error(err))
			continue
		}
		if result != outcomeUnchanged {
			refreshed++
		}
	}

	for _, row := range local {
		if row.ProviderID == nil || listed[*row.ProviderID] {
			continue
		}
		err := e.store.DeleteEventByProviderID(ctx, userID, *row.ProviderID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			log.Warn("failed to remove stale occurrence", zap.String("occurrence_id", *row.ProviderID), zap.Error(err))
			continue
		}
		removed++
	}

	log.Info("series occurrences refreshed",
		zap.Int("refreshed", refreshed),
		zap.Int("removed", removed))
}

// updateSeries patches the master. A time change made on one occurrence moves
// the master by the same offset so every occurrence shifts alike.
func (e *EventEditor) updateSeries(ctx context.Context, cal CalendarProvider, token string, plan ScopePlan, target *RemoteEvent, input EventInput) (*RemoteEvent, error) {
	if !input.Start.IsZero() && plan.TargetID != target.ID {
		master, err := cal.GetEvent(ctx, token, plan.TargetID)
		if err != nil {
			return nil, providerError(err)
		}
		input, err = shiftToMaster(input, target, master)
		if err != nil {
			return nil, err
		}
	}
	updated, err := cal.UpdateEvent(ctx, token, plan.TargetID, input)
	if err != nil {
		return nil, providerError(err)
	}
	return updated, nil
}

func shiftToMaster(input EventInput, instance, master *RemoteEvent) (EventInput, error) {
	instanceValue := instance.OriginalStart
	if instanceValue == "" {
		instanceValue = instance.Start
	}
	instanceStart, err := parseEventTime(instanceValue, instance.AllDay)
	if err != nil {
		return input, fmt.Errorf("%w: event %s start: %v", ErrMalformedRecord, instance.ID, err)
	}
	masterStart, err := parseEventTime(master.Start, master.AllDay)
	if err != nil {
		return input, fmt.Errorf("%w: event %s start: %v", ErrMalformedRecord, master.ID, err)
	}

	duration := input.End.Sub(input.Start)
	input.Start = masterStart.Add(input.Start.Sub(instanceStart))
	input.End = input.Start.Add(duration)
	return input, nil
}

// splitSeries ends the old series just before the instance and starts a new
// one carrying the edit and the master's rule.
func (e *EventEditor) splitSeries(ctx context.Context, cal CalendarProvider, token, userID string, provider models.Provider, plan ScopePlan, target *RemoteEvent, input EventInput) (*models.CalendarEvent, error) {
	master, err := cal.GetEvent(ctx, token, plan.MasterID)
	if err != nil {
		return nil, providerError(err)
	}
	if err := cal.TruncateSeries(ctx, token, plan.MasterID, plan.InstanceStart); err != nil {
		return nil, providerError(err)
	}

	if input.Recurrence == nil {
		input.Recurrence = rrule.StripTermination(master.Recurrence)
	}
	if input.Start.IsZero() {
		input.Start = plan.InstanceStart
		if end, err := parseEventTime(target.End, target.AllDay); err == nil {
			input.End = end
		} else {
			input.End = plan.InstanceStart
		}
		input.AllDay = target.AllDay
		input.TimeZone = target.TimeZone
	}

	created, err := cal.CreateEvent(ctx, token, input)
	if err != nil {
		return nil, providerError(err)
	}

	removed, err := e.store.DeleteEventSeries(ctx, userID, plan.MasterID, &plan.InstanceStart)
	if err != nil {
		return nil, fmt.Errorf("failed to delete local occurrences: %w", err)
	}

	event, _, err := e.mirror.upsert(ctx, userID, provider, *created)
	if err != nil {
		return nil, fmt.Errorf("failed to mirror new series: %w", err)
	}

	e.logger.Info("recurring series split",
		zap.String("user_id", userID),
		zap.String("master_id", plan.MasterID),
		zap.String("new_series_id", created.ID),
		zap.Int64("local_removed", removed))
	return event, nil
}

// DeleteEvent removes eventID within scope, remotely and locally
func (e *EventEditor) DeleteEvent(ctx context.Context, userID string, provider models.Provider, eventID string, scope models.EditScope) (*ScopePlan, error) {
	cal, token, err := e.calendar(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	plan, _, err := e.plan(ctx, cal, token, eventID, scope)
	if err != nil {
		return nil, err
	}

	var removed int64
	switch plan.Action {
	case ActionInstance:
		if err := cal.DeleteEvent(ctx, token, plan.TargetID); err != nil {
			return nil, providerError(err)
		}
		err = e.store.DeleteEventByProviderID(ctx, userID, plan.TargetID)
		if err == nil {
			removed = 1
		} else if errors.Is(err, models.ErrNotFound) {
			err = nil
		}
	case ActionSeries:
		if err := cal.DeleteEvent(ctx, token, plan.TargetID); err != nil {
			return nil, providerError(err)
		}
		removed, err = e.store.DeleteEventSeries(ctx, userID, plan.TargetID, nil)
	case ActionTruncate:
		if err := cal.TruncateSeries(ctx, token, plan.MasterID, plan.InstanceStart); err != nil {
			return nil, providerError(err)
		}
		removed, err = e.store.DeleteEventSeries(ctx, userID, plan.MasterID, &plan.InstanceStart)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete local events: %w", err)
	}

	e.logger.Info("event deleted",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
		zap.String("provider_id", eventID),
		zap.String("action", string(plan.Action)),
		zap.Bool("fallback", plan.Fallback),
		zap.Int64("local_removed", removed))
	return &plan, nil
}

// providerError marks a provider failure as a fetch failure unless it is a
// condition callers handle on its own.
func providerError(err error) error {
	if errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrReauthorizationRequired) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetchFailed, err)
}
