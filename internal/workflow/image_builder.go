package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// ImageBuilderStartedWorkflow handles the image-builder container for a build
// beginning to run. The transition fans out across every context version
// sharing the build id; a duplicate event matches zero rows and stops here.
func ImageBuilderStartedWorkflow(ctx workflow.Context, job model.ImageBuilderStarted) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)
	buildID := job.InspectData.Config.Labels.BuildID

	var applied model.ApplyResult
	err := workflow.ExecuteActivity(ctx, "MarkBuildStarted", activity.MarkBuildStartedParams{
		BuildID:     buildID,
		ContainerID: job.ID,
		DockHost:    job.Host,
	}).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("build already past starting, dropping builder-started event", "buildId", buildID)
		return nil
	}

	var cvs []model.ContextVersion
	err = workflow.ExecuteActivity(ctx, "ListContextVersionsByBuild", buildID).Get(ctx, &cvs)
	if err != nil {
		return err
	}
	for _, cv := range cvs {
		err = workflow.ExecuteActivity(ctx, "NotifyBuildUpdate", activity.BuildUpdateParams{
			ContextVersionID: cv.ID,
			BuildID:          buildID,
			OwnerGithubID:    cv.OwnerGithubID,
			Event:            model.EventBuildRunning,
		}).Get(ctx, nil)
		if err != nil {
			return err
		}
	}

	return workflow.ExecuteActivity(ctx, "MarkBuildRunning", buildID).Get(ctx, nil)
}

// ImageBuilderDiedWorkflow handles the image-builder container exiting. Exit
// code zero means the image built: every instance on every context version of
// the build gets a fresh container requested. Non-zero marks the build failed
// and tells the owners. The complete transition is the dedupe gate, so a
// re-delivered death event does nothing.
func ImageBuilderDiedWorkflow(ctx workflow.Context, job model.ImageBuilderDied) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)
	buildID := job.InspectData.Config.Labels.BuildID
	exitCode := job.InspectData.State.ExitCode
	failed := exitCode != 0

	params := activity.CompleteBuildParams{BuildID: buildID, Failed: failed}
	if failed {
		msg := "image build exited non-zero"
		params.Error = &msg
	}
	var applied model.ApplyResult
	err := workflow.ExecuteActivity(ctx, "CompleteBuild", params).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("build already completed, dropping builder-died event", "buildId", buildID)
		return nil
	}

	var cvs []model.ContextVersion
	err = workflow.ExecuteActivity(ctx, "ListContextVersionsByBuild", buildID).Get(ctx, &cvs)
	if err != nil {
		return err
	}

	if failed {
		logger.Info("build failed", "buildId", buildID, "exitCode", exitCode)
		for _, cv := range cvs {
			err = workflow.ExecuteActivity(ctx, "NotifyBuildUpdate", activity.BuildUpdateParams{
				ContextVersionID: cv.ID,
				BuildID:          buildID,
				OwnerGithubID:    cv.OwnerGithubID,
				Event:            model.EventBuildErrored,
			}).Get(ctx, nil)
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, cv := range cvs {
		var instances []model.Instance
		err = workflow.ExecuteActivity(ctx, "ListInstancesByContextVersion", cv.ID).Get(ctx, &instances)
		if err != nil {
			return err
		}
		for _, inst := range instances {
			err = workflow.ExecuteActivity(withDockOptions(ctx), "DeployContainer", activity.DeployContainerParams{
				InstanceID:       inst.ID,
				ContextVersionID: cv.ID,
				BuildID:          buildID,
			}).Get(ctx, nil)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
