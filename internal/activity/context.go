package activity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.temporal.io/sdk/temporal"

	"github.com/runnable/controlplane/internal/metrics"
	"github.com/runnable/controlplane/internal/model"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Application error types surfaced to workflows. Non-retryable: retrying the
// same job can never change the outcome.
const (
	ErrTypeDockUnavailable = "DOCK_UNAVAILABLE"
	ErrTypeContainerGone   = "CONTAINER_GONE"
	ErrTypeClientError     = "CLIENT_ERROR"
	ErrTypeMarshalError    = "MARSHAL_ERROR"
)

func nonRetryable(msg, errType string, err error) error {
	return temporal.NewNonRetryableApplicationError(msg, errType, err)
}

// applyOutcome converts a guarded update's command tag into an ApplyResult
// and records the outcome.
func applyOutcome(target string, tag pgconn.CommandTag) model.ApplyResult {
	if tag.RowsAffected() > 0 {
		metrics.GuardedUpdates.WithLabelValues(target, "applied").Inc()
		return model.Applied
	}
	metrics.GuardedUpdates.WithLabelValues(target, "already-satisfied").Inc()
	return model.AlreadySatisfied
}
