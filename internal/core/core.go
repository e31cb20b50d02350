package core

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines the database operations used by services.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobDispatcher hands validated jobs to the event pipeline. Satisfied by
// dispatch.Dispatcher; mocked in tests.
type JobDispatcher interface {
	Dispatch(ctx context.Context, jobName string, raw json.RawMessage) error
}

// Services bundles every service for wiring into the API server.
type Services struct {
	Instance            *InstanceService
	Isolation           *IsolationService
	AutoIsolationConfig *AutoIsolationConfigService
	ContextVersion      *ContextVersionService
}

func NewServices(db DB, jobs JobDispatcher) *Services {
	return &Services{
		Instance:            NewInstanceService(db, jobs),
		Isolation:           NewIsolationService(db, jobs),
		AutoIsolationConfig: NewAutoIsolationConfigService(db),
		ContextVersion:      NewContextVersionService(db, jobs),
	}
}

func dispatchJob(ctx context.Context, jobs JobDispatcher, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return jobs.Dispatch(ctx, name, raw)
}
