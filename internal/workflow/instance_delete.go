package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceDeleteWorkflow tears an instance down: hostname entries first so
// traffic stops routing, then the container, then the row. Deleting a master
// pod fans out to its forks before the master row goes away. Idempotent end
// to end; a re-delivered delete finds nothing and stops.
func InstanceDeleteWorkflow(ctx workflow.Context, job model.InstanceDelete) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil {
		logger.Info("instance already deleted", "instanceId", job.InstanceID)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "RemoveContainerHosts", inst.ID).Get(ctx, nil)
	if err != nil {
		return err
	}

	if inst.ContainerID != nil {
		dockHost := ""
		if inst.ContainerDockHost != nil {
			dockHost = *inst.ContainerDockHost
		}
		// Best effort: the container's dock may itself be gone, and an
		// unreachable dock must not leave the row behind forever.
		rmErr := workflow.ExecuteActivity(withDockOptions(ctx), "RemoveContainer", activity.ContainerRef{
			DockHost:    dockHost,
			ContainerID: *inst.ContainerID,
		}).Get(ctx, nil)
		if rmErr != nil {
			logger.Warn("could not remove container, deleting instance anyway",
				"instanceId", inst.ID, "containerId", *inst.ContainerID, "error", rmErr)
		}
	}

	if inst.MasterPod {
		var forks []model.Instance
		err = workflow.ExecuteActivity(ctx, "ListInstanceForks", inst.ID).Get(ctx, &forks)
		if err != nil {
			return err
		}
		var futures []workflow.ChildWorkflowFuture
		for _, f := range forks {
			futures = append(futures, workflow.ExecuteChildWorkflow(ctx, InstanceDeleteWorkflow, model.InstanceDelete{
				InstanceID: f.ID,
			}))
		}
		for _, f := range futures {
			if err := f.Get(ctx, nil); err != nil {
				return err
			}
		}
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "DeleteInstance", inst.ID).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("instance row deleted concurrently", "instanceId", inst.ID)
		return nil
	}

	return workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:    inst.ID,
		ShortHash:     inst.ShortHash,
		OwnerGithubID: inst.OwnerGithubID,
		Event:         model.EventUpdate,
	}).Get(ctx, nil)
}
