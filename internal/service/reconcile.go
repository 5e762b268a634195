package service

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SyncResult summarizes one reconciliation pass
type SyncResult struct {
	Fetched   int
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    error // Per-record skip errors, combined with multierr
}

// SyncedCount is the number of records now mirrored locally
func (r *SyncResult) SyncedCount() int {
	return r.Created + r.Updated + r.Unchanged
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// reconcile applies every record in order. Malformed records are logged,
// counted and skipped; any other error stops the pass.
func reconcile[R any](
	ctx context.Context,
	logger *zap.Logger,
	records []R,
	idOf func(R) string,
	apply func(context.Context, R) (outcome, error),
) (*SyncResult, error) {
	result := &SyncResult{Fetched: len(records)}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, err := apply(ctx, record)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				logger.Warn("skipping malformed record", zap.String("provider_id", idOf(record)), zap.Error(err))
				result.Skipped++
				result.Errors = multierr.Append(result.Errors, err)
				continue
			}
			return result, err
		}

		switch out {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		}
	}

	return result, nil
}
