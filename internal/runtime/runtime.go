package runtime

import (
	"context"
	"errors"
)

// ErrContainerGone is returned by Inspect when the engine no longer knows the
// container. Stop/kill/remove callers never see it; for those operations a
// missing container already satisfies the request.
var ErrContainerGone = errors.New("container no longer exists")

// ContainerStatus is the subset of the engine inspect payload the lifecycle
// services act on. RawInspect carries the full payload for the instance
// inspect merge.
type ContainerStatus struct {
	ID         string            `json:"id"`
	State      string            `json:"state"` // running, exited, created, ...
	Running    bool              `json:"running"`
	ExitCode   int               `json:"exit_code"`
	Ports      map[string]string `json:"ports"` // container port/proto -> host port
	RawInspect []byte            `json:"raw_inspect"`
}

// Runtime is the container engine gateway. Every call is addressed to one
// dock by its engine URL; the instance's container record carries that URL.
type Runtime interface {
	StartContainer(ctx context.Context, dockHost, containerID string) error
	StopContainer(ctx context.Context, dockHost, containerID string) error
	KillContainer(ctx context.Context, dockHost, containerID string) error
	RemoveContainer(ctx context.Context, dockHost, containerID string) error
	InspectContainer(ctx context.Context, dockHost, containerID string) (*ContainerStatus, error)
}
