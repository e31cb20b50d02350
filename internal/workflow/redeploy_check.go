package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/runnable/controlplane/internal/model"
)

// RedeployCheckWorkflow runs after each member of a killing isolation group
// goes down. Once no member has a running container it moves the group from
// killing to killed; that guarded transition is the exactly-once gate, so
// with N members dying in any order at most one check proceeds to redeploy.
func RedeployCheckWorkflow(ctx workflow.Context, isolationID string) error {
	ctx = withDefaultOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var iso *model.Isolation
	err := workflow.ExecuteActivity(ctx, "GetIsolationByID", isolationID).Get(ctx, &iso)
	if err != nil {
		return err
	}
	if iso == nil || iso.State != model.IsolationStateKilling {
		logger.Info("isolation group not in a kill cycle, nothing to check",
			"isolationId", isolationID)
		return nil
	}

	var members []model.Instance
	err = workflow.ExecuteActivity(ctx, "ListIsolationMembers", isolationID).Get(ctx, &members)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.HasRunningContainer() {
			logger.Info("isolation member still up, group not killed yet",
				"isolationId", isolationID, "instanceId", m.ID)
			return nil
		}
	}

	var applied model.ApplyResult
	err = workflow.ExecuteActivity(ctx, "MarkIsolationKilled", isolationID).Get(ctx, &applied)
	if err != nil {
		return err
	}
	if applied == model.AlreadySatisfied {
		logger.Info("another check already marked the group killed", "isolationId", isolationID)
		return nil
	}

	if iso.RedeployOnKilled {
		return workflow.ExecuteChildWorkflow(ctx, IsolationRedeployWorkflow, model.IsolationRedeploy{
			IsolationID: isolationID,
		}).Get(ctx, nil)
	}
	return nil
}
