package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/platform"
)

// IsolationDB contains activities for isolation group state and membership.
type IsolationDB struct {
	db DB
}

func NewIsolationDB(db DB) *IsolationDB {
	return &IsolationDB{db: db}
}

const isolationColumns = `id, state, redeploy_on_killed, created_at, updated_at`

func scanIsolation(row interface{ Scan(dest ...any) error }) (model.Isolation, error) {
	var iso model.Isolation
	err := row.Scan(&iso.ID, &iso.State, &iso.RedeployOnKilled, &iso.CreatedAt, &iso.UpdatedAt)
	return iso, err
}

// GetIsolationByID retrieves an isolation group. Missing groups return nil
// with no error; a member's death event can outlive its group.
func (a *IsolationDB) GetIsolationByID(ctx context.Context, id string) (*model.Isolation, error) {
	row := a.db.QueryRow(ctx, `SELECT `+isolationColumns+` FROM isolations WHERE id = $1`, id)
	iso, err := scanIsolation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get isolation by id: %w", err)
	}
	return &iso, nil
}

// MarkIsolationKillingParams holds the parameters for MarkIsolationKilling.
type MarkIsolationKillingParams struct {
	IsolationID     string `json:"isolation_id"`
	TriggerRedeploy bool   `json:"trigger_redeploy"`
}

// MarkIsolationKilling moves the group into "killing" and records whether a
// redeploy should follow once all members are down. Guarded so a second
// isolation.kill delivery cannot restart a kill cycle already under way.
func (a *IsolationDB) MarkIsolationKilling(ctx context.Context, params MarkIsolationKillingParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE isolations SET state = $2, redeploy_on_killed = $3, updated_at = now()
		 WHERE id = $1 AND state != $2`,
		params.IsolationID, model.IsolationStateKilling, params.TriggerRedeploy,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("mark isolation killing: %w", err)
	}
	return applyOutcome("isolation_killing", tag), nil
}

// MarkIsolationKilled moves the group from "killing" to "killed". This is the
// exactly-once gate for the group redeploy: with N members dying in any
// order the transition applies for exactly one all-killed check.
func (a *IsolationDB) MarkIsolationKilled(ctx context.Context, isolationID string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE isolations SET state = $3, updated_at = now()
		 WHERE id = $1 AND state = $2`,
		isolationID, model.IsolationStateKilling, model.IsolationStateKilled,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("mark isolation killed: %w", err)
	}
	return applyOutcome("isolation_killed", tag), nil
}

// MarkIsolationCreated resets the group to "created" after its members have
// been redeployed, guarded on the terminal "killed" state.
func (a *IsolationDB) MarkIsolationCreated(ctx context.Context, isolationID string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE isolations SET state = $3, redeploy_on_killed = FALSE, updated_at = now()
		 WHERE id = $1 AND state = $2`,
		isolationID, model.IsolationStateKilled, model.IsolationStateCreated,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("mark isolation created: %w", err)
	}
	return applyOutcome("isolation_created", tag), nil
}

// ListIsolationMembers retrieves every instance in the group. Instances
// deleted concurrently simply do not appear, which excludes them from the
// all-killed computation by construction.
func (a *IsolationDB) ListIsolationMembers(ctx context.Context, isolationID string) ([]model.Instance, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE isolated = $1 ORDER BY id`, isolationID)
	if err != nil {
		return nil, fmt.Errorf("list isolation members: %w", err)
	}
	defer rows.Close()

	var members []model.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan isolation member: %w", err)
		}
		members = append(members, i)
	}
	return members, rows.Err()
}

// IsTestingIsolation reports whether any member of the group is a testing
// instance, i.e. the group is currently in an isolated test run.
func (a *IsolationDB) IsTestingIsolation(ctx context.Context, isolationID string) (bool, error) {
	var testing bool
	err := a.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM instances WHERE isolated = $1 AND is_testing)`, isolationID,
	).Scan(&testing)
	if err != nil {
		return false, fmt.Errorf("check testing isolation: %w", err)
	}
	return testing, nil
}

// GetAutoIsolationConfig retrieves the active auto-isolation config for a
// master instance, or nil when auto-isolation is not enabled for it.
func (a *IsolationDB) GetAutoIsolationConfig(ctx context.Context, instanceID string) (*model.AutoIsolationConfig, error) {
	var cfg model.AutoIsolationConfig
	err := a.db.QueryRow(ctx,
		`SELECT id, instance_id, requested_dependencies, created_at, deleted_at
		 FROM auto_isolation_configs WHERE instance_id = $1 AND deleted_at IS NULL`, instanceID,
	).Scan(&cfg.ID, &cfg.InstanceID, &cfg.RequestedDependencies, &cfg.CreatedAt, &cfg.DeletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get auto isolation config: %w", err)
	}
	return &cfg, nil
}

// CreateIsolatedMemberParams holds the parameters for CreateIsolatedMember.
type CreateIsolatedMemberParams struct {
	IsolationID     string `json:"isolation_id"`
	MasterShortHash string `json:"master_short_hash"`
	OwnerGithubID   int64  `json:"owner_github_id"`
	DependencyName  string `json:"dependency_name"`
}

// CreateIsolatedMember forks a named dependency of the same owner into an
// isolation group: a copy of the dependency's master instance, named with the
// group master's short hash prefix so it routes inside the group. A
// dependency with no master instance to fork from returns nil and is skipped
// by the caller. Ids are generated here so the calling workflow stays
// deterministic.
func (a *IsolationDB) CreateIsolatedMember(ctx context.Context, params CreateIsolatedMemberParams) (*model.Instance, error) {
	row := a.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE owner_github_id = $1 AND name = $2 AND master_pod AND isolated IS NULL`,
		params.OwnerGithubID, params.DependencyName,
	)
	source, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find dependency instance: %w", err)
	}

	id := platform.NewID()
	_, err = a.db.Exec(ctx,
		`INSERT INTO instances (id, short_hash, name, owner_github_id, owner_username,
		     master_pod, parent_id, is_testing, isolated, is_isolation_group_master,
		     build_id, context_version_id, container_state)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6, FALSE, $7, FALSE, $8, $9, $10)`,
		id, platform.NewShortHash(), platform.IsolatedName(params.MasterShortHash, source.Name),
		source.OwnerGithubID, source.OwnerUsername, source.ID, params.IsolationID,
		source.BuildID, source.ContextVersionID, model.ContainerStateNone,
	)
	if err != nil {
		return nil, fmt.Errorf("create isolated member: %w", err)
	}

	row = a.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	member, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("create isolated member: %w", err)
	}
	return &member, nil
}

// CreateIsolation inserts a new isolation group, attaches the master instance
// to it and returns the group id. The id is generated here so the calling
// workflow stays deterministic.
func (a *IsolationDB) CreateIsolation(ctx context.Context, masterInstanceID string) (string, error) {
	id := platform.NewID()
	_, err := a.db.Exec(ctx,
		`INSERT INTO isolations (id, state) VALUES ($1, $2)`,
		id, model.IsolationStateCreated,
	)
	if err != nil {
		return "", fmt.Errorf("create isolation: %w", err)
	}

	_, err = a.db.Exec(ctx,
		`UPDATE instances SET isolated = $2, is_isolation_group_master = TRUE, updated_at = now()
		 WHERE id = $1`,
		masterInstanceID, id,
	)
	if err != nil {
		return "", fmt.Errorf("attach isolation master: %w", err)
	}
	return id, nil
}
