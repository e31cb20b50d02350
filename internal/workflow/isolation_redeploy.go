package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// IsolationRedeployWorkflow brings a fully-killed isolation group back up:
// each member's dead container reference is cleared and a fresh container
// requested from the build service. New containers surface later as
// container-created events and flow through the normal start path.
func IsolationRedeployWorkflow(ctx workflow.Context, job model.IsolationRedeploy) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var iso *model.Isolation
	err := workflow.ExecuteActivity(ctx, "GetIsolationByID", job.IsolationID).Get(ctx, &iso)
	if err != nil {
		return err
	}
	if iso == nil {
		logger.Info("isolation group gone, dropping redeploy", "isolationId", job.IsolationID)
		return nil
	}
	if iso.State != model.IsolationStateKilled {
		logger.Info("isolation group not fully killed, dropping redeploy",
			"isolationId", job.IsolationID, "state", iso.State)
		return nil
	}

	var members []model.Instance
	err = workflow.ExecuteActivity(ctx, "ListIsolationMembers", job.IsolationID).Get(ctx, &members)
	if err != nil {
		return err
	}

	for _, m := range members {
		if m.ContainerID != nil {
			err = workflow.ExecuteActivity(ctx, "ClearContainer", activity.ClearContainerParams{
				InstanceID:  m.ID,
				ContainerID: *m.ContainerID,
			}).Get(ctx, nil)
			if err != nil {
				return err
			}
		}
		err = workflow.ExecuteActivity(withDockOptions(ctx), "DeployContainer", activity.DeployContainerParams{
			InstanceID:       m.ID,
			ContextVersionID: m.ContextVersionID,
			BuildID:          m.BuildID,
		}).Get(ctx, nil)
		if err != nil {
			return err
		}
	}

	return workflow.ExecuteActivity(ctx, "MarkIsolationCreated", job.IsolationID).Get(ctx, nil)
}
