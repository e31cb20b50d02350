package workflow

import (
	"encoding/json"

	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceContainerDiedWorkflow handles a user container exiting. The inspect
// snapshot is merged into the instance (guarded on the container id, so a
// death report for a superseded container changes nothing), clients are told,
// and for isolated instances the group's kill/redeploy machinery advances.
func InstanceContainerDiedWorkflow(ctx workflow.Context, job model.InstanceContainerDied) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)
	labels := job.InspectData.Config.Labels

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", labels.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil || inst.ContainerID == nil || *inst.ContainerID != job.ID {
		logger.Info("death report for a gone or superseded container, dropping",
			"instanceId", labels.InstanceID, "containerId", job.ID)
		return nil
	}

	inspect, err := json.Marshal(job.InspectData)
	if err != nil {
		return err
	}

	// Preserve an explicit kill: a killed container also dies, but "killed"
	// carries the intent and must survive the merge.
	state := model.ContainerStateDied
	if inst.ContainerState == model.ContainerStateKilled {
		state = model.ContainerStateKilled
	}
	var merged model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "MergeContainerInspect", activity.MergeContainerInspectParams{
		InstanceID:  inst.ID,
		ContainerID: job.ID,
		State:       state,
		Inspect:     inspect,
	}).Get(ctx, &merged)
	if err != nil {
		return err
	}
	if merged == model.AlreadySatisfied {
		logger.Info("container reference changed underneath the death report, dropping",
			"instanceId", inst.ID, "containerId", job.ID)
		return nil
	}

	err = workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventUpdate,
		ActingUserGithubID: labels.SessionUserGithubID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	if inst.Isolated == nil {
		return nil
	}
	isolationID := *inst.Isolated

	// A dead testing container should stop pinning dock memory while the
	// rest of the group winds down. Best effort.
	if inst.IsTesting {
		dockHost := ""
		if inst.ContainerDockHost != nil {
			dockHost = *inst.ContainerDockHost
		}
		_ = workflow.ExecuteActivity(withDockOptions(ctx), "ClearContainerMemory", activity.ClearContainerMemoryParams{
			DockHost:    dockHost,
			ContainerID: job.ID,
		}).Get(ctx, nil)
	}

	// A non-master member of a testing group dying ends the test run: tear
	// the whole group down. Anything else just advances the all-killed check.
	if !inst.IsIsolationGroupMaster {
		var testing bool
		err = workflow.ExecuteActivity(ctx, "IsTestingIsolation", isolationID).Get(ctx, &testing)
		if err != nil {
			return err
		}
		if testing {
			return workflow.ExecuteChildWorkflow(ctx, IsolationKillWorkflow, model.IsolationKill{
				IsolationID: isolationID,
			}).Get(ctx, nil)
		}
	}

	return workflow.ExecuteChildWorkflow(ctx, RedeployCheckWorkflow, isolationID).Get(ctx, nil)
}
