package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceKillWorkflow force-kills an instance's container. Kill is internal
// plumbing for isolation teardown: no user-facing "stopping" announcement,
// the container is killed and the row moved straight to killed. The engine's
// die event then drives the group's all-killed progression.
func InstanceKillWorkflow(ctx workflow.Context, job model.InstanceKill) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil || inst.ContainerID == nil || *inst.ContainerID != job.ContainerID {
		logger.Info("kill targets a gone or superseded container, dropping",
			"instanceId", job.InstanceID, "containerId", job.ContainerID)
		return nil
	}

	dockHost := ""
	if inst.ContainerDockHost != nil {
		dockHost = *inst.ContainerDockHost
	}
	err = workflow.ExecuteActivity(withDockOptions(ctx), "KillContainer", activity.ContainerRef{
		DockHost:    dockHost,
		ContainerID: job.ContainerID,
	}).Get(ctx, nil)
	if err != nil {
		setContainerErrored(ctx, inst, job.ContainerID, 0, err)
		return err
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "SetContainerState", activity.SetContainerStateParams{
		InstanceID:  inst.ID,
		ContainerID: job.ContainerID,
		From: []string{
			model.ContainerStateCreating, model.ContainerStateStarting,
			model.ContainerStateRunning, model.ContainerStateStopping,
			model.ContainerStateStopped,
		},
		To: model.ContainerStateKilled,
	}).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("container already in a terminal state", "instanceId", inst.ID)
	}

	return workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:    inst.ID,
		ShortHash:     inst.ShortHash,
		OwnerGithubID: inst.OwnerGithubID,
		Event:         model.EventUpdate,
		IsInternal:    true,
	}).Get(ctx, nil)
}
