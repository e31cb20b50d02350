package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/runnable/controlplane/internal/model"
)

type ContextVersionService struct {
	db   DB
	jobs JobDispatcher
}

func NewContextVersionService(db DB, jobs JobDispatcher) *ContextVersionService {
	return &ContextVersionService{db: db, jobs: jobs}
}

const contextVersionColumns = `id, context_id, owner_github_id, repo, branch, commit_sha,
	build_id, build_state, build_failed,
	build_error, build_duration_ms, build_container_id, build_dock_host,
	build_started_at, build_completed_at, created_at, updated_at`

func scanContextVersion(row pgx.Row) (*model.ContextVersion, error) {
	var cv model.ContextVersion
	err := row.Scan(&cv.ID, &cv.ContextID, &cv.OwnerGithubID, &cv.Repo, &cv.Branch, &cv.CommitSHA,
		&cv.BuildID, &cv.BuildState, &cv.BuildFailed,
		&cv.BuildError, &cv.BuildDurationMS, &cv.BuildContainerID, &cv.BuildDockHost,
		&cv.BuildStartedAt, &cv.BuildCompletedAt, &cv.CreatedAt, &cv.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cv, nil
}

func (s *ContextVersionService) GetByID(ctx context.Context, id string) (*model.ContextVersion, error) {
	row := s.db.QueryRow(ctx, `SELECT `+contextVersionColumns+` FROM context_versions WHERE id = $1`, id)
	return scanContextVersion(row)
}

func (s *ContextVersionService) ListByBuild(ctx context.Context, buildID string) ([]model.ContextVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+contextVersionColumns+` FROM context_versions WHERE build_id = $1 ORDER BY id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("list context versions for build %s: %w", buildID, err)
	}
	defer rows.Close()

	var cvs []model.ContextVersion
	for rows.Next() {
		cv, err := scanContextVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context version: %w", err)
		}
		cvs = append(cvs, *cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context versions: %w", err)
	}
	return cvs, nil
}

// Delete requests asynchronous removal of an unused context version. The
// usage check is repeated inside the job against concurrent deploys.
func (s *ContextVersionService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return dispatchJob(ctx, s.jobs, model.JobContextVersionDelete, model.ContextVersionDelete{
		ContextVersionID: id,
	})
}
