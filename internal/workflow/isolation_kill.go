package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// IsolationKillWorkflow tears down every member of an isolation group. The
// killing transition is guarded, so concurrent kill requests for the same
// group collapse into one teardown; whether a redeploy follows is latched on
// the group row at that moment and cannot be flipped by a later duplicate.
func IsolationKillWorkflow(ctx workflow.Context, job model.IsolationKill) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var iso *model.Isolation
	err := workflow.ExecuteActivity(ctx, "GetIsolationByID", job.IsolationID).Get(ctx, &iso)
	if err != nil {
		return err
	}
	if iso == nil {
		logger.Info("isolation group gone, dropping kill", "isolationId", job.IsolationID)
		return nil
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "MarkIsolationKilling", activity.MarkIsolationKillingParams{
		IsolationID:     job.IsolationID,
		TriggerRedeploy: job.TriggerRedeploy,
	}).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("isolation group already being killed, dropping duplicate",
			"isolationId", job.IsolationID)
		return nil
	}

	var members []model.Instance
	err = workflow.ExecuteActivity(ctx, "ListIsolationMembers", job.IsolationID).Get(ctx, &members)
	if err != nil {
		return err
	}

	killed := 0
	var futures []workflow.ChildWorkflowFuture
	for _, m := range members {
		if !m.HasRunningContainer() {
			continue
		}
		killed++
		futures = append(futures, workflow.ExecuteChildWorkflow(ctx, InstanceKillWorkflow, model.InstanceKill{
			InstanceID:  m.ID,
			ContainerID: *m.ContainerID,
		}))
	}
	for _, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			return err
		}
	}

	// Every member was already down: no die events are coming to advance the
	// group, so run the all-killed check here.
	if killed == 0 {
		return workflow.ExecuteChildWorkflow(ctx, RedeployCheckWorkflow, job.IsolationID).Get(ctx, nil)
	}
	return nil
}
