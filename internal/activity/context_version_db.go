package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/platform"
)

// ContextVersionDB contains activities that drive the build-state machine.
// Image builds are deduplicated: several context versions with identical
// inputs share one build id, so every transition targets all rows with that
// build id and the expected prior state. Zero rows affected means a duplicate
// or late event and stops the calling workflow without error.
type ContextVersionDB struct {
	db DB
}

func NewContextVersionDB(db DB) *ContextVersionDB {
	return &ContextVersionDB{db: db}
}

const contextVersionColumns = `id, context_id, owner_github_id, repo, branch, commit_sha,
	build_id, build_state, build_failed,
	build_error, build_duration_ms, build_container_id, build_dock_host,
	build_started_at, build_completed_at, created_at, updated_at`

func scanContextVersion(row interface{ Scan(dest ...any) error }) (model.ContextVersion, error) {
	var cv model.ContextVersion
	err := row.Scan(&cv.ID, &cv.ContextID, &cv.OwnerGithubID, &cv.Repo, &cv.Branch, &cv.CommitSHA,
		&cv.BuildID, &cv.BuildState, &cv.BuildFailed,
		&cv.BuildError, &cv.BuildDurationMS, &cv.BuildContainerID, &cv.BuildDockHost,
		&cv.BuildStartedAt, &cv.BuildCompletedAt, &cv.CreatedAt, &cv.UpdatedAt)
	return cv, err
}

// GetContextVersionByID retrieves a context version. Missing rows return nil
// with no error; the caller treats that as a stale event.
func (a *ContextVersionDB) GetContextVersionByID(ctx context.Context, id string) (*model.ContextVersion, error) {
	row := a.db.QueryRow(ctx, `SELECT `+contextVersionColumns+` FROM context_versions WHERE id = $1`, id)
	cv, err := scanContextVersion(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get context version by id: %w", err)
	}
	return &cv, nil
}

// ListContextVersionsByBuild retrieves every context version sharing a build
// id, for fanning build state out across a dedupe build.
func (a *ContextVersionDB) ListContextVersionsByBuild(ctx context.Context, buildID string) ([]model.ContextVersion, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+contextVersionColumns+` FROM context_versions WHERE build_id = $1 ORDER BY id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("list context versions by build: %w", err)
	}
	defer rows.Close()

	var cvs []model.ContextVersion
	for rows.Next() {
		cv, err := scanContextVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context version: %w", err)
		}
		cvs = append(cvs, cv)
	}
	return cvs, rows.Err()
}

// MarkBuildStartedParams holds the parameters for MarkBuildStarted.
type MarkBuildStartedParams struct {
	BuildID     string `json:"build_id"`
	ContainerID string `json:"container_id"`
	DockHost    string `json:"dock_host"`
}

// MarkBuildStarted advances every context version on the build from
// "build starting" to "build started" and records the builder container.
// One underlying container build advances all logical versions relying on it.
func (a *ContextVersionDB) MarkBuildStarted(ctx context.Context, params MarkBuildStartedParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE context_versions
		 SET build_state = $3, build_container_id = $4, build_dock_host = $5,
		     build_started_at = now(), updated_at = now()
		 WHERE build_id = $1 AND build_state = $2`,
		params.BuildID, model.BuildStateStarting, model.BuildStateStarted, params.ContainerID, params.DockHost,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("mark build started: %w", err)
	}
	return applyOutcome("cv_build_started", tag), nil
}

// MarkBuildRunning advances every context version on the build from
// "build started" to "build running".
func (a *ContextVersionDB) MarkBuildRunning(ctx context.Context, buildID string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE context_versions SET build_state = $3, updated_at = now()
		 WHERE build_id = $1 AND build_state = $2`,
		buildID, model.BuildStateStarted, model.BuildStateRunning,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("mark build running: %w", err)
	}
	return applyOutcome("cv_build_running", tag), nil
}

// CompleteBuildParams holds the parameters for CompleteBuild.
type CompleteBuildParams struct {
	BuildID string  `json:"build_id"`
	Failed  bool    `json:"failed"`
	Error   *string `json:"error,omitempty"`
}

// CompleteBuild moves every context version on the build into the terminal
// "build completed" state with the success/failure flag. Accepted from either
// "build started" or "build running": a builder can die before the running
// transition was observed. Build duration is derived from the recorded start
// time.
func (a *ContextVersionDB) CompleteBuild(ctx context.Context, params CompleteBuildParams) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE context_versions
		 SET build_state = $4, build_failed = $5, build_error = $6,
		     build_duration_ms = (EXTRACT(EPOCH FROM (now() - build_started_at)) * 1000)::BIGINT,
		     build_completed_at = now(), updated_at = now()
		 WHERE build_id = $1 AND build_state = ANY(ARRAY[$2, $3])`,
		params.BuildID, model.BuildStateStarted, model.BuildStateRunning,
		model.BuildStateCompleted, params.Failed, params.Error,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("complete build: %w", err)
	}
	return applyOutcome("cv_build_completed", tag), nil
}

// RecoverBuild reconciles a context version that was marked failed or
// timed out but whose container eventually showed up anyway: it moves the
// version back into an active build state instead of leaving it stuck in
// error. A version not in the failed-completed state is left alone.
func (a *ContextVersionDB) RecoverBuild(ctx context.Context, contextVersionID string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE context_versions
		 SET build_state = $3, build_failed = FALSE, build_error = NULL,
		     build_completed_at = NULL, updated_at = now()
		 WHERE id = $1 AND build_state = $2 AND build_failed`,
		contextVersionID, model.BuildStateCompleted, model.BuildStateRunning,
	)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("recover build: %w", err)
	}
	return applyOutcome("cv_recover", tag), nil
}

// CountInstancesUsing reports how many instances still reference a context
// version.
func (a *ContextVersionDB) CountInstancesUsing(ctx context.Context, contextVersionID string) (int, error) {
	var n int
	err := a.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM instances WHERE context_version_id = $1`, contextVersionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count instances using context version: %w", err)
	}
	return n, nil
}

// DeleteContextVersion removes a context version only while no instance
// references it. The NOT EXISTS guard closes the race with a concurrent
// deploy picking the version up between check and delete.
func (a *ContextVersionDB) DeleteContextVersion(ctx context.Context, id string) (model.ApplyResult, error) {
	tag, err := a.db.Exec(ctx,
		`DELETE FROM context_versions
		 WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM instances WHERE context_version_id = $1)`, id)
	if err != nil {
		return model.AlreadySatisfied, fmt.Errorf("delete context version: %w", err)
	}
	return applyOutcome("cv_delete", tag), nil
}

// CreateContextVersionParams holds the parameters for CreateContextVersion.
type CreateContextVersionParams struct {
	ContextID     string `json:"context_id"`
	OwnerGithubID int64  `json:"owner_github_id"`
	Repo          string `json:"repo"`
	Branch        string `json:"branch"`
	CommitSHA     string `json:"commit_sha"`
}

// CreateContextVersion inserts a fresh context version in "build starting"
// for an auto-deploy of a pushed commit. Ids are generated here so the
// calling workflow stays deterministic.
func (a *ContextVersionDB) CreateContextVersion(ctx context.Context, params CreateContextVersionParams) (*model.ContextVersion, error) {
	id := platform.NewID()
	buildID := platform.NewID()
	_, err := a.db.Exec(ctx,
		`INSERT INTO context_versions (id, context_id, owner_github_id, repo, branch, commit_sha, build_id, build_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, params.ContextID, params.OwnerGithubID, params.Repo, params.Branch, params.CommitSHA,
		buildID, model.BuildStateStarting,
	)
	if err != nil {
		return nil, fmt.Errorf("create context version: %w", err)
	}
	return a.GetContextVersionByID(ctx, id)
}
