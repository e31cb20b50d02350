package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceContainerCreatedWorkflow handles a dock reporting that a user
// container has been created for an instance. It attaches the container to
// the instance row and chains into the start workflow. The attach is guarded
// on the instance having no container yet, so of two containers racing for
// the same instance exactly one wins and the loser stops here.
func InstanceContainerCreatedWorkflow(ctx workflow.Context, job model.InstanceContainerCreated) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)
	labels := job.InspectData.Config.Labels

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", labels.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil {
		logger.Info("instance gone, dropping container-created event",
			"instanceId", labels.InstanceID, "containerId", job.ID)
		return nil
	}
	if inst.ContextVersionID != labels.ContextVersionID {
		logger.Info("container belongs to a superseded context version, dropping",
			"instanceId", inst.ID, "containerId", job.ID,
			"containerContextVersionId", labels.ContextVersionID,
			"instanceContextVersionId", inst.ContextVersionID)
		return nil
	}

	// A container showing up proves the build is alive even if a timeout
	// marked it failed in the meantime. Reconcile before attaching.
	var recovered model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "RecoverBuild", labels.ContextVersionID).Get(ctx, &recovered)
	if err != nil {
		return err
	}
	if recovered == model.Applied {
		logger.Info("recovered context version out of failed build state",
			"contextVersionId", labels.ContextVersionID)
	}

	var attached model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "AttachContainer", activity.AttachContainerParams{
		InstanceID:  inst.ID,
		ContainerID: job.ID,
		DockHost:    job.Host,
	}).Get(ctx, &attached)
	if err != nil {
		return err
	}
	if attached == model.AlreadySatisfied {
		logger.Info("instance already has a container, dropping duplicate creation",
			"instanceId", inst.ID, "containerId", job.ID)
		return nil
	}

	return workflow.ExecuteChildWorkflow(ctx, InstanceStartWorkflow, model.InstanceLifecycle{
		InstanceID:          inst.ID,
		ContainerID:         job.ID,
		SessionUserGithubID: labels.SessionUserGithubID,
	}).Get(ctx, nil)
}
