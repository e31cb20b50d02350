package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/platform"
)

type IsolationService struct {
	db   DB
	jobs JobDispatcher
}

func NewIsolationService(db DB, jobs JobDispatcher) *IsolationService {
	return &IsolationService{db: db, jobs: jobs}
}

// Create makes a new isolation group with the given master instance.
func (s *IsolationService) Create(ctx context.Context, masterInstanceID string) (*model.Isolation, error) {
	if _, err := s.masterExists(ctx, masterInstanceID); err != nil {
		return nil, err
	}

	id := platform.NewID()
	_, err := s.db.Exec(ctx,
		`INSERT INTO isolations (id, state) VALUES ($1, $2)`, id, model.IsolationStateCreated)
	if err != nil {
		return nil, fmt.Errorf("insert isolation: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE instances SET isolated = $2, is_isolation_group_master = TRUE, updated_at = now()
		 WHERE id = $1`, masterInstanceID, id)
	if err != nil {
		return nil, fmt.Errorf("attach isolation master: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *IsolationService) masterExists(ctx context.Context, instanceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM instances WHERE id = $1)`, instanceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check master instance: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return true, nil
}

func (s *IsolationService) GetByID(ctx context.Context, id string) (*model.Isolation, error) {
	var iso model.Isolation
	err := s.db.QueryRow(ctx,
		`SELECT id, state, redeploy_on_killed, created_at, updated_at FROM isolations WHERE id = $1`, id,
	).Scan(&iso.ID, &iso.State, &iso.RedeployOnKilled, &iso.CreatedAt, &iso.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get isolation %s: %w", id, err)
	}
	return &iso, nil
}

// Kill requests asynchronous teardown of every member container.
func (s *IsolationService) Kill(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return dispatchJob(ctx, s.jobs, model.JobIsolationKill, model.IsolationKill{IsolationID: id})
}

// Redeploy tears every member down and brings the group back up on fresh
// containers once the last member is confirmed dead.
func (s *IsolationService) Redeploy(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return dispatchJob(ctx, s.jobs, model.JobIsolationKill, model.IsolationKill{
		IsolationID:     id,
		TriggerRedeploy: true,
	})
}

type AutoIsolationConfigService struct {
	db DB
}

func NewAutoIsolationConfigService(db DB) *AutoIsolationConfigService {
	return &AutoIsolationConfigService{db: db}
}

func (s *AutoIsolationConfigService) Create(ctx context.Context, cfg *model.AutoIsolationConfig) error {
	if cfg.ID == "" {
		cfg.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO auto_isolation_configs (id, instance_id, requested_dependencies)
		 VALUES ($1, $2, $3)`,
		cfg.ID, cfg.InstanceID, cfg.RequestedDependencies,
	)
	if err != nil {
		return fmt.Errorf("insert auto isolation config: %w", err)
	}
	return nil
}

func (s *AutoIsolationConfigService) GetByInstance(ctx context.Context, instanceID string) (*model.AutoIsolationConfig, error) {
	var cfg model.AutoIsolationConfig
	err := s.db.QueryRow(ctx,
		`SELECT id, instance_id, requested_dependencies, created_at, deleted_at
		 FROM auto_isolation_configs WHERE instance_id = $1 AND deleted_at IS NULL`, instanceID,
	).Scan(&cfg.ID, &cfg.InstanceID, &cfg.RequestedDependencies, &cfg.CreatedAt, &cfg.DeletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get auto isolation config for instance %s: %w", instanceID, err)
	}
	return &cfg, nil
}

// Delete soft-deletes the config; auto-deploys for the instance stop creating
// isolation groups.
func (s *AutoIsolationConfigService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE auto_isolation_configs SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete auto isolation config %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
