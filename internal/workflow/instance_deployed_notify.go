package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceDeployedNotifyWorkflow announces a completed deploy outward: a chat
// message, and a deployment status on the pushed commit when the context
// version came from a push. Re-delivery re-sends the notifications, which the
// receivers tolerate.
func InstanceDeployedNotifyWorkflow(ctx workflow.Context, job model.InstanceDeployedNotify) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil {
		logger.Info("instance gone, dropping deploy notification", "instanceId", job.InstanceID)
		return nil
	}

	var cv *model.ContextVersion
	err = workflow.ExecuteActivity(ctx, "GetContextVersionByID", job.ContextVersionID).Get(ctx, &cv)
	if err != nil {
		return err
	}
	if cv == nil {
		logger.Info("context version gone, dropping deploy notification",
			"contextVersionId", job.ContextVersionID)
		return nil
	}
	if inst.ContextVersionID != cv.ID {
		logger.Info("instance moved on to another context version, dropping deploy notification",
			"instanceId", inst.ID, "contextVersionId", cv.ID)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "SendDeployChat", activity.DeployChatParams{
		InstanceName:  inst.Name,
		ShortHash:     inst.ShortHash,
		OwnerUsername: inst.OwnerUsername,
		PusherIsUser:  cv.OwnerGithubID == inst.OwnerGithubID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	if cv.Repo == "" || cv.CommitSHA == "" {
		return nil
	}
	return workflow.ExecuteActivity(ctx, "CreateDeploymentStatus", activity.DeploymentStatusParams{
		Repo:          cv.Repo,
		Commit:        cv.CommitSHA,
		InstanceName:  inst.Name,
		ShortHash:     inst.ShortHash,
		OwnerUsername: inst.OwnerUsername,
		Description:   "Deployed " + inst.Name,
	}).Get(ctx, nil)
}
