package model

import (
	"encoding/json"
	"time"
)

// Isolation groups a set of instances that are started and stopped together
// for an isolated test run. Members reference the group via
// Instance.Isolated. A group only redeploys once every member's container is
// confirmed non-running.
type Isolation struct {
	ID               string    `json:"id" db:"id"`
	State            string    `json:"state" db:"state"`
	RedeployOnKilled bool      `json:"redeploy_on_killed" db:"redeploy_on_killed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AutoIsolationConfig marks a master instance whose auto-forked branches get
// an isolation group created on deploy, plus the dependency instances pulled
// into that group.
type AutoIsolationConfig struct {
	ID                    string          `json:"id" db:"id"`
	InstanceID            string          `json:"instance_id" db:"instance_id"`
	RequestedDependencies json.RawMessage `json:"requested_dependencies" db:"requested_dependencies"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	DeletedAt             *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// AutoIsolationDependency names one dependency instance, by its name under
// the same owner, to fork into an auto-created isolation group.
type AutoIsolationDependency struct {
	Name string `json:"name"`
}

// ContainerHost is one routable hostname entry in the host directory.
type ContainerHost struct {
	Hostname    string    `json:"hostname" db:"hostname"`
	InstanceID  string    `json:"instance_id" db:"instance_id"`
	ContainerID string    `json:"container_id" db:"container_id"`
	HostIP      string    `json:"host_ip" db:"host_ip"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
