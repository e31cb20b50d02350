package workflow

import (
	"encoding/json"

	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// InstanceAutoDeployWorkflow handles a git push to a branch an instance
// follows: a fresh context version is cut for the pushed commit, the instance
// is pointed at it and a build is triggered. Build progress then arrives as
// image-builder events. Master instances with an auto-isolation config and no
// group yet also get an isolation group created here, with the requested
// dependency instances forked into it.
func InstanceAutoDeployWorkflow(ctx workflow.Context, job model.InstanceAutoDeploy) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var inst *model.Instance
	var err error
	if job.InstanceID != "" {
		err = workflow.ExecuteActivity(ctx, "GetInstanceByID", job.InstanceID).Get(ctx, &inst)
	} else {
		err = workflow.ExecuteActivity(ctx, "GetInstanceByShortHash", job.InstanceShortHash).Get(ctx, &inst)
	}
	if err != nil {
		return err
	}
	if inst == nil {
		logger.Info("instance gone, dropping auto-deploy",
			"instanceId", job.InstanceID, "shortHash", job.InstanceShortHash)
		return nil
	}

	var current *model.ContextVersion
	err = workflow.ExecuteActivity(ctx, "GetContextVersionByID", inst.ContextVersionID).Get(ctx, &current)
	if err != nil {
		return err
	}
	if current == nil {
		logger.Info("instance has no context version, dropping auto-deploy", "instanceId", inst.ID)
		return nil
	}

	var cv *model.ContextVersion
	err = workflow.ExecuteActivity(ctx, "CreateContextVersion", activity.CreateContextVersionParams{
		ContextID:     current.ContextID,
		OwnerGithubID: inst.OwnerGithubID,
		Repo:          job.PushInfo.Repo,
		Branch:        job.PushInfo.Branch,
		CommitSHA:     job.PushInfo.Commit,
	}).Get(ctx, &cv)
	if err != nil {
		return err
	}

	err = workflow.ExecuteActivity(ctx, "UpdateBuildLinkage", activity.UpdateBuildLinkageParams{
		InstanceID:       inst.ID,
		BuildID:          cv.BuildID,
		ContextVersionID: cv.ID,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	err = workflow.ExecuteActivity(withDockOptions(ctx), "TriggerBuild", activity.TriggerBuildParams{
		BuildID:          cv.BuildID,
		ContextVersionID: cv.ID,
		Repo:             job.PushInfo.Repo,
		Commit:           job.PushInfo.Commit,
		Branch:           job.PushInfo.Branch,
	}).Get(ctx, nil)
	if err != nil {
		_ = workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
			InstanceID:         inst.ID,
			ShortHash:          inst.ShortHash,
			OwnerGithubID:      inst.OwnerGithubID,
			Event:              model.EventErrored,
			ActingUserGithubID: job.PushInfo.User.ID,
			ContainerErrorMsg:  err.Error(),
		}).Get(ctx, nil)
		return err
	}

	if inst.MasterPod && inst.Isolated == nil {
		var cfg *model.AutoIsolationConfig
		err = workflow.ExecuteActivity(ctx, "GetAutoIsolationConfig", inst.ID).Get(ctx, &cfg)
		if err != nil {
			return err
		}
		if cfg != nil {
			var isolationID string
			err = workflow.ExecuteActivity(ctx, "CreateIsolation", inst.ID).Get(ctx, &isolationID)
			if err != nil {
				return err
			}
			logger.Info("auto-created isolation group",
				"instanceId", inst.ID, "isolationId", isolationID)

			var deps []model.AutoIsolationDependency
			if len(cfg.RequestedDependencies) > 0 {
				if err := json.Unmarshal(cfg.RequestedDependencies, &deps); err != nil {
					logger.Error("bad requested dependencies, forking none",
						"instanceId", inst.ID, "error", err)
				}
			}
			for _, dep := range deps {
				var member *model.Instance
				err = workflow.ExecuteActivity(ctx, "CreateIsolatedMember", activity.CreateIsolatedMemberParams{
					IsolationID:     isolationID,
					MasterShortHash: inst.ShortHash,
					OwnerGithubID:   inst.OwnerGithubID,
					DependencyName:  dep.Name,
				}).Get(ctx, &member)
				if err != nil {
					return err
				}
				if member == nil {
					logger.Warn("dependency has no instance to fork, skipping",
						"instanceId", inst.ID, "dependency", dep.Name)
					continue
				}
				err = workflow.ExecuteActivity(withDockOptions(ctx), "DeployContainer", activity.DeployContainerParams{
					InstanceID:       member.ID,
					ContextVersionID: member.ContextVersionID,
					BuildID:          member.BuildID,
				}).Get(ctx, nil)
				if err != nil {
					return err
				}
			}
		}
	}

	return workflow.ExecuteActivity(ctx, "NotifyInstanceUpdate", activity.InstanceUpdateParams{
		InstanceID:         inst.ID,
		ShortHash:          inst.ShortHash,
		OwnerGithubID:      inst.OwnerGithubID,
		Event:              model.EventDeploy,
		ActingUserGithubID: job.PushInfo.User.ID,
	}).Get(ctx, nil)
}
