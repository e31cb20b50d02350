package model

import (
	"encoding/json"
	"time"
)

// Instance is a deployed, named unit combining a build output with a running
// (or pending) container and a routable hostname. The container_* columns are
// the denormalized container reference; ContainerID nil means the instance
// has no container yet, which is the guard for attaching a new one.
type Instance struct {
	ID            string `json:"id" db:"id"`
	ShortHash     string `json:"short_hash" db:"short_hash"`
	Name          string `json:"name" db:"name"`
	OwnerGithubID int64  `json:"owner_github_id" db:"owner_github_id"`
	OwnerUsername string `json:"owner_username" db:"owner_username"`

	MasterPod bool    `json:"master_pod" db:"master_pod"`
	ParentID  *string `json:"parent_id,omitempty" db:"parent_id"`

	IsTesting              bool    `json:"is_testing" db:"is_testing"`
	Isolated               *string `json:"isolated,omitempty" db:"isolated"`
	IsIsolationGroupMaster bool    `json:"is_isolation_group_master" db:"is_isolation_group_master"`

	BuildID          string `json:"build_id" db:"build_id"`
	ContextVersionID string `json:"context_version_id" db:"context_version_id"`

	ContainerID       *string         `json:"container_id,omitempty" db:"container_id"`
	ContainerDockHost *string         `json:"container_dock_host,omitempty" db:"container_dock_host"`
	ContainerState    string          `json:"container_state" db:"container_state"`
	ContainerError    *string         `json:"container_error,omitempty" db:"container_error"`
	ContainerIP       *string         `json:"container_ip,omitempty" db:"container_ip"`
	ContainerPorts    json.RawMessage `json:"container_ports,omitempty" db:"container_ports"`
	ContainerInspect  json.RawMessage `json:"container_inspect,omitempty" db:"container_inspect"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasRunningContainer reports whether the instance's container reference is
// in a state that counts as "not yet confirmed dead" for the isolation
// all-killed computation.
func (i *Instance) HasRunningContainer() bool {
	if i.ContainerID == nil {
		return false
	}
	switch i.ContainerState {
	case ContainerStateStopped, ContainerStateKilled, ContainerStateDied, ContainerStateErrored, ContainerStateNone:
		return false
	}
	return true
}
