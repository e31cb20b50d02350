package model

import "time"

// ContextVersion is one buildable snapshot of a Docker build context.
// Several context versions with identical inputs share one BuildID (a dedupe
// build); build-state transitions therefore fan out across all rows with the
// same BuildID, guarded on the expected prior state.
type ContextVersion struct {
	ID            string `json:"id" db:"id"`
	ContextID     string `json:"context_id" db:"context_id"`
	OwnerGithubID int64  `json:"owner_github_id" db:"owner_github_id"`

	Repo      string `json:"repo" db:"repo"`
	Branch    string `json:"branch" db:"branch"`
	CommitSHA string `json:"commit_sha" db:"commit_sha"`

	BuildID          string     `json:"build_id" db:"build_id"`
	BuildState       string     `json:"build_state" db:"build_state"`
	BuildFailed      bool       `json:"build_failed" db:"build_failed"`
	BuildError       *string    `json:"build_error,omitempty" db:"build_error"`
	BuildDurationMS  *int64     `json:"build_duration_ms,omitempty" db:"build_duration_ms"`
	BuildContainerID *string    `json:"build_container_id,omitempty" db:"build_container_id"`
	BuildDockHost    *string    `json:"build_dock_host,omitempty" db:"build_dock_host"`
	BuildStartedAt   *time.Time `json:"build_started_at,omitempty" db:"build_started_at"`
	BuildCompletedAt *time.Time `json:"build_completed_at,omitempty" db:"build_completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BuildSucceeded reports whether the build reached a successful terminal state.
func (cv *ContextVersion) BuildSucceeded() bool {
	return cv.BuildState == BuildStateCompleted && !cv.BuildFailed
}
