package activity

import (
	"context"
	"errors"

	"github.com/runnable/controlplane/internal/runtime"
)

// Container contains activities that call the container runtime gateway.
// Transient engine errors are returned as-is and retried per the workflow's
// retry policy; conditions that can never change on retry come back as typed
// non-retryable errors.
type Container struct {
	rt runtime.Runtime
}

func NewContainer(rt runtime.Runtime) *Container {
	return &Container{rt: rt}
}

// ContainerRef addresses one container on one dock.
type ContainerRef struct {
	DockHost    string `json:"dock_host"`
	ContainerID string `json:"container_id"`
}

func (r ContainerRef) check() error {
	if r.DockHost == "" {
		return nonRetryable("container has no dock host recorded; a dock may have been removed",
			ErrTypeDockUnavailable, nil)
	}
	return nil
}

func (a *Container) StartContainer(ctx context.Context, ref ContainerRef) error {
	if err := ref.check(); err != nil {
		return err
	}
	return a.rt.StartContainer(ctx, ref.DockHost, ref.ContainerID)
}

// StopContainer stops the container; a container that is already gone or
// already stopped satisfies the request (the gateway maps those to success).
func (a *Container) StopContainer(ctx context.Context, ref ContainerRef) error {
	if err := ref.check(); err != nil {
		return err
	}
	return a.rt.StopContainer(ctx, ref.DockHost, ref.ContainerID)
}

// KillContainer kills the container; already gone counts as done.
func (a *Container) KillContainer(ctx context.Context, ref ContainerRef) error {
	if err := ref.check(); err != nil {
		return err
	}
	return a.rt.KillContainer(ctx, ref.DockHost, ref.ContainerID)
}

func (a *Container) RemoveContainer(ctx context.Context, ref ContainerRef) error {
	if err := ref.check(); err != nil {
		return err
	}
	return a.rt.RemoveContainer(ctx, ref.DockHost, ref.ContainerID)
}

// InspectContainer fetches a fresh inspect snapshot. A container the engine
// no longer knows is a non-retryable condition: the event that referenced it
// is stale.
func (a *Container) InspectContainer(ctx context.Context, ref ContainerRef) (*runtime.ContainerStatus, error) {
	if err := ref.check(); err != nil {
		return nil, err
	}
	status, err := a.rt.InspectContainer(ctx, ref.DockHost, ref.ContainerID)
	if err != nil {
		if errors.Is(err, runtime.ErrContainerGone) {
			return nil, nonRetryable("container no longer exists", ErrTypeContainerGone, err)
		}
		return nil, err
	}
	return status, nil
}
