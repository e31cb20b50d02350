package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceStartWorkflow starts an instance's container on its dock. Clients
// are told "starting" immediately; "start" is only announced later, by the
// network-attached workflow, once the container is actually reachable.
// If the engine cannot start the container after retries, the instance is
// marked errored once and clients are notified.
func InstanceStartWorkflow(ctx workflow.Context, job model.InstanceLifecycle) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil || inst.ContainerID == nil || *inst.ContainerID != job.ContainerID {
		logger.Info("start targets a gone or superseded container, dropping",
			"instanceId", job.InstanceID, "containerId", job.ContainerID)
		return nil
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "SetContainerState", activity.SetContainerStateParams{
		InstanceID:  inst.ID,
		ContainerID: job.ContainerID,
		From:        []string{model.ContainerStateStarting, model.ContainerStateStopped, model.ContainerStateCreating},
		To:          model.ContainerStateStarting,
	}).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("container not in a startable state, dropping start",
			"instanceId", inst.ID, "containerState", inst.ContainerState)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventStarting,
		ActingUserGithubID: job.SessionUserGithubID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	dockHost := ""
	if inst.ContainerDockHost != nil {
		dockHost = *inst.ContainerDockHost
	}
	err = workflow.ExecuteActivity(withDockOptions(ctx), "StartContainer", activity.ContainerRef{
		DockHost:    dockHost,
		ContainerID: job.ContainerID,
	}).Get(ctx, nil)
	if err != nil {
		setContainerErrored(ctx, inst, job.ContainerID, job.SessionUserGithubID, err)
		return err
	}

	// The dock emits container.network.attached once the engine has wired
	// the container up; that event finishes the transition to running.
	return nil
}
