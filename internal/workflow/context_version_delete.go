package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// ContextVersionDeleteWorkflow removes a context version nothing deploys
// from anymore. The delete itself re-checks usage, closing the race with a
// deploy that picked the version up after the caller's check.
func ContextVersionDeleteWorkflow(ctx workflow.Context, job model.ContextVersionDelete) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var cv *model.ContextVersion
	err := workflow.ExecuteActivity(ctx, "GetContextVersionByID", job.ContextVersionID).Get(ctx, &cv)
	if err != nil {
		return err
	}
	if cv == nil {
		logger.Info("context version already gone", "contextVersionId", job.ContextVersionID)
		return nil
	}

	var inUse int
	err = workflow.ExecuteActivity(ctx, "CountInstancesUsing", job.ContextVersionID).Get(ctx, &inUse)
	if err != nil {
		return err
	}
	if inUse > 0 {
		logger.Info("context version still in use, dropping delete",
			"contextVersionId", job.ContextVersionID, "instances", inUse)
		return nil
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "DeleteContextVersion", job.ContextVersionID).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("context version picked up or deleted concurrently, dropping",
			"contextVersionId", job.ContextVersionID)
		return nil
	}

	return workflow.ExecuteActivity(ctx, "NotifyBuildUpdate", activity.BuildUpdateParams{
		ContextVersionID: cv.ID,
		BuildID:          cv.BuildID,
		OwnerGithubID:    cv.OwnerGithubID,
		Event:            model.EventContextVersionDeleted,
	}).Get(ctx, nil)
}
