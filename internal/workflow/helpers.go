package workflow

import (
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// TaskQueue is the Temporal task queue all event workflows and their
// activities run on.
const TaskQueue = "runnable-events"

// withDefaultOptions configures database and notification activities: quick
// operations with a short timeout and a handful of retries.
func withDefaultOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// withDockOptions configures activities that talk to a dock's container
// engine or the build service. Docks can be slow or briefly unreachable, so
// the timeout is generous and retries back off further apart.
func withDockOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    2 * time.Minute,
		ScheduleToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    4,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// setContainerErrored records the failure on the instance row and announces
// it to connected clients. Called exactly once, after the primary activity
// has exhausted its retries or failed non-retryably. Secondary errors are
// dropped: the primary error is the one worth surfacing.
func setContainerErrored(ctx workflow.Context, inst *model.Instance, containerID string, actingUserGithubID int64, cause error) {
	_ = workflow.ExecuteActivity(ctx, "RecordContainerError", activity.RecordContainerErrorParams{
		InstanceID:  inst.ID,
		ContainerID: containerID,
		Message:     cause.Error(),
	}).Get(ctx, nil)
	_ = workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventErrored,
		ActingUserGithubID: actingUserGithubID,
		ContainerErrorMsg:  cause.Error(),
	}).Get(ctx, nil)
}

// hostIPFromPorts picks the host IP out of a docker inspect port map.
// Keys are walked in sorted order so replays see the same result.
func hostIPFromPorts(ports map[string][]model.PortBinding) string {
	keys := make([]string, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, b := range ports[k] {
			if b.HostIP != "" && b.HostIP != "0.0.0.0" {
				return b.HostIP
			}
		}
	}
	return ""
}
