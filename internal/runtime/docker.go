package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// DockerRuntime implements Runtime against the Docker engine API of each dock.
type DockerRuntime struct{}

func NewDockerRuntime() *DockerRuntime {
	return &DockerRuntime{}
}

func (d *DockerRuntime) clientForDock(dockHost string) (*client.Client, error) {
	return client.NewClientWithOpts(
		client.WithHost(dockHost),
		client.WithAPIVersionNegotiation(),
	)
}

func (d *DockerRuntime) StartContainer(ctx context.Context, dockHost, containerID string) error {
	cli, err := d.clientForDock(dockHost)
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", containerID, err)
	}
	return nil
}

// StopContainer stops a container. A container the engine no longer knows, or
// one that is already stopped, satisfies the request.
func (d *DockerRuntime) StopContainer(ctx context.Context, dockHost, containerID string) error {
	cli, err := d.clientForDock(dockHost)
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if err := cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) || errdefs.IsNotModified(err) {
			return nil
		}
		return fmt.Errorf("stop container %s: %w", containerID, err)
	}
	return nil
}

// KillContainer kills a container. A missing or already-dead container
// satisfies the request.
func (d *DockerRuntime) KillContainer(ctx context.Context, dockHost, containerID string) error {
	cli, err := d.clientForDock(dockHost)
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if err := cli.ContainerKill(ctx, containerID, "SIGKILL"); err != nil {
		if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
			return nil
		}
		return fmt.Errorf("kill container %s: %w", containerID, err)
	}
	return nil
}

func (d *DockerRuntime) RemoveContainer(ctx context.Context, dockHost, containerID string) error {
	cli, err := d.clientForDock(dockHost)
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	err = cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

func (d *DockerRuntime) InspectContainer(ctx context.Context, dockHost, containerID string) (*ContainerStatus, error) {
	cli, err := d.clientForDock(dockHost)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	inspect, raw, err := cli.ContainerInspectWithRaw(ctx, containerID, false)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, ErrContainerGone
		}
		return nil, fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	status := &ContainerStatus{
		ID:         inspect.ID,
		Ports:      map[string]string{},
		RawInspect: raw,
	}
	if inspect.State != nil {
		status.State = inspect.State.Status
		status.Running = inspect.State.Running
		status.ExitCode = inspect.State.ExitCode
	}
	if inspect.NetworkSettings != nil {
		for port, bindings := range inspect.NetworkSettings.Ports {
			if len(bindings) > 0 {
				status.Ports[string(port)] = bindings[0].HostPort
			}
		}
	}

	// Raw payload must round-trip as JSON for the inspect merge.
	if !json.Valid(status.RawInspect) {
		return nil, fmt.Errorf("inspect container %s: engine returned invalid JSON", containerID)
	}

	return status, nil
}
