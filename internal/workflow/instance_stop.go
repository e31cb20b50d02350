package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceStopWorkflow stops an instance's container. The stopping transition
// is guarded on the container still being up, so a duplicate stop or a stop
// racing a death event is a no-op.
func InstanceStopWorkflow(ctx workflow.Context, job model.InstanceLifecycle) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil || inst.ContainerID == nil || *inst.ContainerID != job.ContainerID {
		logger.Info("stop targets a gone or superseded container, dropping",
			"instanceId", job.InstanceID, "containerId", job.ContainerID)
		return nil
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "SetContainerState", activity.SetContainerStateParams{
		InstanceID:  inst.ID,
		ContainerID: job.ContainerID,
		From:        []string{model.ContainerStateRunning, model.ContainerStateStarting},
		To:          model.ContainerStateStopping,
	}).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("container not in a stoppable state, dropping stop",
			"instanceId", inst.ID, "containerState", inst.ContainerState)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventStopping,
		ActingUserGithubID: job.SessionUserGithubID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	dockHost := ""
	if inst.ContainerDockHost != nil {
		dockHost = *inst.ContainerDockHost
	}
	err = workflow.ExecuteActivity(withDockOptions(ctx), "StopContainer", activity.ContainerRef{
		DockHost:    dockHost,
		ContainerID: job.ContainerID,
	}).Get(ctx, nil)
	if err != nil {
		setContainerErrored(ctx, inst, job.ContainerID, job.SessionUserGithubID, err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, "SetContainerState", activity.SetContainerStateParams{
		InstanceID:  inst.ID,
		ContainerID: job.ContainerID,
		From:        []string{model.ContainerStateStopping},
		To:          model.ContainerStateStopped,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	return workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventUpdate,
		ActingUserGithubID: job.SessionUserGithubID,
	}).Get(ctx, nil)
}
