package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
)

// InstanceDB contains activities that read and mutate instance rows. Every
// mutation is a guarded conditional update: the WHERE clause embeds the
// expected prior state so duplicate or out-of-order event delivery is a
// benign no-op instead of a double-apply.
type InstanceDB struct {
	db DB
}

func NewInstanceDB(db DB) *InstanceDB {
	return &InstanceDB{db: db}
}

const instanceColumns = `id, short_hash, name, owner_github_id, owner_username, master_pod, parent_id,
	is_testing, isolated, is_isolation_group_master, build_id, context_version_id,
	container_id, container_dock_host, container_state, container_error, container_ip,
	container_ports, container_inspect, created_at, updated_at`

func scanInstance(row interface{ Scan(dest ...any) error }) (model.Instance, error) {
	var i model.Instance
	err := row.Scan(&i.ID, &i.ShortHash, &i.Name, &i.OwnerGithubID, &i.OwnerUsername,
		&i.MasterPod, &i.ParentID,
		&i.IsTesting, &i.Isolated, &i.IsIsolationGroupMaster, &i.BuildID, &i.ContextVersionID,
		&i.ContainerID, &i.ContainerDockHost, &i.ContainerState, &i.ContainerError, &i.ContainerIP,
		&i.ContainerPorts, &i.ContainerInspect, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

// GetInstanceByID retrieves an instance. A missing instance returns nil with
// no error: under at-least-once delivery the common cause is an event for an
// instance that has already been deleted, which is a stop condition for the
// calling workflow, not a failure.
func (a *InstanceDB) GetInstanceByID(ctx context.Context, id string) (*model.Instance, error) {
	row := a.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	i, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get instance by id: %w", err)
	}
	return &i, nil
}

// GetInstanceByShortHash retrieves an instance by its hostname short hash.
func (a *InstanceDB) GetInstanceByShortHash(ctx context.Context, shortHash string) (*model.Instance, error) {
	row := a.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE short_hash = $1`, shortHash)
	i, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get instance by short hash: %w", err)
	}
	return &i, nil
}

// AttachContainerParams holds the parameters for AttachContainer.
type AttachContainerParams struct {
	InstanceID  string `json:"instance_id"`
	ContainerID string `json:"container_id"`
	DockHost    string `json:"dock_host"`
}

// AttachContainer attaches a brand-new container reference to an instance
// that has none yet. The `container_id IS NULL` guard means that of two
// concurrent container-created deliveries exactly one wins; the loser sees
// AlreadySatisfied and must stop.
func (a *InstanceDB) AttachContainer(ctx context.Context, params AttachContainerParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances
		 SET container_id = $2, container_dock_host = $3, container_state = $4,
		     container_error = NULL, updated_at = now()
		 WHERE id = $1 AND container_id IS NULL`,
		params.InstanceID, params.ContainerID, params.DockHost, model.ContainerStateStarting,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("attach container: %w", err)
	}
	return applyOutcome("instance_attach", tag), nil
}

// MergeContainerInspectParams holds the parameters for MergeContainerInspect.
type MergeContainerInspectParams struct {
	InstanceID  string          `json:"instance_id"`
	ContainerID string          `json:"container_id"`
	State       string          `json:"state"`
	Inspect     json.RawMessage `json:"inspect,omitempty"`
	Ports       json.RawMessage `json:"ports,omitempty"`
	ContainerIP *string         `json:"container_ip,omitempty"`
}

// MergeContainerInspect merges a fresh inspect snapshot into the instance
// matched by both instance id and container id. The double guard keeps a
// stale event for an old container from overwriting a newer container's data:
// if the instance has since been given a different container the update
// matches zero rows.
func (a *InstanceDB) MergeContainerInspect(ctx context.Context, params MergeContainerInspectParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances
		 SET container_state = $3,
		     container_inspect = COALESCE($4, container_inspect),
		     container_ports = COALESCE($5, container_ports),
		     container_ip = COALESCE($6, container_ip),
		     updated_at = now()
		 WHERE id = $1 AND container_id = $2`,
		params.InstanceID, params.ContainerID, params.State, params.Inspect, params.Ports, params.ContainerIP,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("merge container inspect: %w", err)
	}
	return applyOutcome("instance_inspect", tag), nil
}

// SetContainerStateParams holds the parameters for SetContainerState.
type SetContainerStateParams struct {
	InstanceID  string   `json:"instance_id"`
	ContainerID string   `json:"container_id"`
	From        []string `json:"from"`
	To          string   `json:"to"`
}

// SetContainerState applies a guarded container-state transition. The row
// must still reference the given container and be in one of the expected
// prior states.
func (a *InstanceDB) SetContainerState(ctx context.Context, params SetContainerStateParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances SET container_state = $4, updated_at = now()
		 WHERE id = $1 AND container_id = $2 AND container_state = ANY($3)`,
		params.InstanceID, params.ContainerID, params.From, params.To,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("set container state: %w", err)
	}
	return applyOutcome("instance_state", tag), nil
}

// RecordContainerErrorParams holds the parameters for RecordContainerError.
type RecordContainerErrorParams struct {
	InstanceID  string `json:"instance_id"`
	ContainerID string `json:"container_id"`
	Message     string `json:"message"`
}

// RecordContainerError marks the instance's container errored with a
// human-readable message. Guarded on the container id so an error from a
// superseded container cannot mark a newer one.
func (a *InstanceDB) RecordContainerError(ctx context.Context, params RecordContainerErrorParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances SET container_state = $3, container_error = $4, updated_at = now()
		 WHERE id = $1 AND container_id = $2`,
		params.InstanceID, params.ContainerID, model.ContainerStateErrored, params.Message,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("record container error: %w", err)
	}
	return applyOutcome("instance_error", tag), nil
}

// ClearContainerParams holds the parameters for ClearContainer.
type ClearContainerParams struct {
	InstanceID  string `json:"instance_id"`
	ContainerID string `json:"container_id"`
}

// ClearContainer detaches the container reference so a new container can be
// attached (isolation redeploy, post-kill cleanup). Guarded on the container
// id: only the incarnation the caller saw is cleared.
func (a *InstanceDB) ClearContainer(ctx context.Context, params ClearContainerParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances
		 SET container_id = NULL, container_dock_host = NULL, container_state = $3,
		     container_ip = NULL, container_ports = NULL, container_inspect = NULL,
		     updated_at = now()
		 WHERE id = $1 AND container_id = $2`,
		params.InstanceID, params.ContainerID, model.ContainerStateNone,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("clear container: %w", err)
	}
	return applyOutcome("instance_clear", tag), nil
}

// UpdateBuildLinkageParams holds the parameters for UpdateBuildLinkage.
type UpdateBuildLinkageParams struct {
	InstanceID       string `json:"instance_id"`
	BuildID          string `json:"build_id"`
	ContextVersionID string `json:"context_version_id"`
}

// UpdateBuildLinkage points the instance at a new build and context version
// (auto-deploy of a pushed commit).
func (a *InstanceDB) UpdateBuildLinkage(ctx context.Context, params UpdateBuildLinkageParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE instances SET build_id = $2, context_version_id = $3, updated_at = now() WHERE id = $1`,
		params.InstanceID, params.BuildID, params.ContextVersionID,
	)
	if err != nil {
		return fmt.Errorf("update build linkage: %w", err)
	}
	return nil
}

// ListInstanceForks retrieves all instances forked from a master instance,
// excluding the master itself.
func (a *InstanceDB) ListInstanceForks(ctx context.Context, masterID string) ([]model.Instance, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE parent_id = $1 AND id != $1 ORDER BY id`, masterID)
	if err != nil {
		return nil, fmt.Errorf("list instance forks: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}

// ListInstancesByContextVersion retrieves all instances referencing a context
// version. Used for the post-build container fan-out and the delete-in-use
// check.
func (a *InstanceDB) ListInstancesByContextVersion(ctx context.Context, contextVersionID string) ([]model.Instance, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE context_version_id = $1 ORDER BY id`, contextVersionID)
	if err != nil {
		return nil, fmt.Errorf("list instances by context version: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}

// DeleteInstance removes the instance row. Idempotent: deleting a row that is
// already gone reports AlreadySatisfied.
func (a *InstanceDB) DeleteInstance(ctx context.Context, id string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("delete instance: %w", err)
	}
	return applyOutcome("instance_delete", tag), nil
}
