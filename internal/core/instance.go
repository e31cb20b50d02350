package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/platform"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoContainer is returned for lifecycle requests against an instance that
// has no container to act on.
var ErrNoContainer = errors.New("instance has no container")

type InstanceService struct {
	db   DB
	jobs JobDispatcher
}

func NewInstanceService(db DB, jobs JobDispatcher) *InstanceService {
	return &InstanceService{db: db, jobs: jobs}
}

const instanceColumns = `id, short_hash, name, owner_github_id, owner_username, master_pod, parent_id,
	is_testing, isolated, is_isolation_group_master, build_id, context_version_id,
	container_id, container_dock_host, container_state, container_error, container_ip,
	container_ports, container_inspect, created_at, updated_at`

func scanInstance(row pgx.Row) (*model.Instance, error) {
	var i model.Instance
	err := row.Scan(&i.ID, &i.ShortHash, &i.Name, &i.OwnerGithubID, &i.OwnerUsername,
		&i.MasterPod, &i.ParentID,
		&i.IsTesting, &i.Isolated, &i.IsIsolationGroupMaster, &i.BuildID, &i.ContextVersionID,
		&i.ContainerID, &i.ContainerDockHost, &i.ContainerState, &i.ContainerError, &i.ContainerIP,
		&i.ContainerPorts, &i.ContainerInspect, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (s *InstanceService) Create(ctx context.Context, inst *model.Instance) error {
	if inst.ID == "" {
		inst.ID = platform.NewID()
	}
	if inst.ShortHash == "" {
		inst.ShortHash = platform.NewShortHash()
	}
	if inst.ContainerState == "" {
		inst.ContainerState = model.ContainerStateNone
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO instances (id, short_hash, name, owner_github_id, owner_username, master_pod,
		     parent_id, is_testing, build_id, context_version_id, container_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inst.ID, inst.ShortHash, inst.Name, inst.OwnerGithubID, inst.OwnerUsername, inst.MasterPod,
		inst.ParentID, inst.IsTesting, inst.BuildID, inst.ContextVersionID, inst.ContainerState,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

func (s *InstanceService) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	row := s.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	return scanInstance(row)
}

func (s *InstanceService) GetByShortHash(ctx context.Context, shortHash string) (*model.Instance, error) {
	row := s.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE short_hash = $1`, shortHash)
	return scanInstance(row)
}

func (s *InstanceService) ListByOwner(ctx context.Context, ownerGithubID int64) ([]model.Instance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE owner_github_id = $1 ORDER BY name, id`, ownerGithubID)
	if err != nil {
		return nil, fmt.Errorf("list instances for owner %d: %w", ownerGithubID, err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// Start requests an asynchronous start of the instance's container. The
// container id is captured now so a slow job cannot act on a container the
// instance acquired later.
func (s *InstanceService) Start(ctx context.Context, id string, actingUserGithubID int64) error {
	inst, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inst.ContainerID == nil {
		return ErrNoContainer
	}
	return dispatchJob(ctx, s.jobs, model.JobInstanceStart, model.InstanceLifecycle{
		InstanceID:          inst.ID,
		ContainerID:         *inst.ContainerID,
		SessionUserGithubID: actingUserGithubID,
	})
}

// Stop requests an asynchronous stop of the instance's container.
func (s *InstanceService) Stop(ctx context.Context, id string, actingUserGithubID int64) error {
	inst, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inst.ContainerID == nil {
		return ErrNoContainer
	}
	return dispatchJob(ctx, s.jobs, model.JobInstanceStop, model.InstanceLifecycle{
		InstanceID:          inst.ID,
		ContainerID:         *inst.ContainerID,
		SessionUserGithubID: actingUserGithubID,
	})
}

// Delete requests asynchronous teardown of the instance, its hostname entries
// and its container. For master pods the teardown fans out to forks.
func (s *InstanceService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return dispatchJob(ctx, s.jobs, model.JobInstanceDelete, model.InstanceDelete{InstanceID: id})
}
