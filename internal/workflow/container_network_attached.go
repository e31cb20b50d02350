package workflow

import (
	"encoding/json"

	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// ContainerNetworkAttachedWorkflow handles the authoritative "this container
// is reachable" signal. Ordering matters: the hostname entry is written
// before anything else so that by the time clients hear "start" the hostname
// already resolves. If the instance's isolation group began a kill in the
// meantime, the start is swallowed: the container is about to go away.
func ContainerNetworkAttachedWorkflow(ctx workflow.Context, job model.ContainerNetworkAttached) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)
	labels := job.InspectData.Config.Labels

	var inst *model.Instance
	err := workflow.ExecuteActivity(ctx, "GetInstanceByID", labels.InstanceID).Get(ctx, &inst)
	if err != nil {
		return err
	}
	if inst == nil || inst.ContainerID == nil || *inst.ContainerID != job.ID {
		logger.Info("network attach for a gone or superseded container, dropping",
			"instanceId", labels.InstanceID, "containerId", job.ID)
		return nil
	}

	hostIP := hostIPFromPorts(job.InspectData.NetworkSettings.Ports)
	if hostIP == "" {
		hostIP = job.ContainerIP
	}
	var hostname string
	err = workflow.ExecuteActivity(ctx, "UpsertInstanceHostname", activity.UpsertInstanceHostnameParams{
		InstanceID:    inst.ID,
		ShortHash:     inst.ShortHash,
		Name:          inst.Name,
		OwnerUsername: labels.OwnerUsername,
		ContainerID:   job.ID,
		HostIP:        hostIP,
	}).Get(ctx, &hostname)
	if err != nil {
		return err
	}

	ports, err := json.Marshal(job.InspectData.NetworkSettings.Ports)
	if err != nil {
		return err
	}
	containerIP := job.ContainerIP
	var merged model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "MergeContainerInspect", activity.MergeContainerInspectParams{
		InstanceID:  inst.ID,
		ContainerID: job.ID,
		State:       model.ContainerStateRunning,
		Ports:       ports,
		ContainerIP: &containerIP,
	}).Get(ctx, &merged)
	if err != nil {
		return err
	}
	if merged == model.AlreadySatisfied {
		logger.Info("container reference changed underneath the network attach, dropping",
			"instanceId", inst.ID, "containerId", job.ID)
		return nil
	}

	if inst.Isolated != nil {
		var iso *model.Isolation
		err = workflow.ExecuteActivity(ctx, "GetIsolationByID", *inst.Isolated).Get(ctx, &iso)
		if err != nil {
			return err
		}
		if iso != nil && iso.State == model.IsolationStateKilling {
			logger.Info("isolation group is being killed, not announcing start",
				"instanceId", inst.ID, "isolationId", iso.ID)
			return nil
		}
	}

	logger.Info("instance running", "instanceId", inst.ID, "hostname", hostname)
	return workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:    inst.ID,
		ShortHash:     inst.ShortHash,
		OwnerGithubID: inst.OwnerGithubID,
		Event:         model.EventStart,
	}).Get(ctx, nil)
}
