package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/runnable/controlplane/internal/metrics"
	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/workflow"
)

// ErrUnknownJob is returned for a job name no workflow is registered for.
var ErrUnknownJob = errors.New("unknown job name")

// ErrInvalidJob is returned when a payload does not decode or fails schema
// validation. Invalid payloads are rejected here, at the ingest boundary,
// and never reach a workflow: retrying them could not change anything.
var ErrInvalidJob = errors.New("invalid job payload")

// entry binds a job name to its payload schema and workflow.
type entry struct {
	newPayload func() any
	workflow   string
	workflowID func(payload any) string
}

// The registry. Workflow ids are derived from the payload so that duplicate
// deliveries of one event collapse onto one running workflow; Temporal
// rejects the second start and the dispatcher treats that as done.
var registry = map[string]entry{
	model.JobInstanceContainerCreated: {
		newPayload: func() any { return &model.InstanceContainerCreated{} },
		workflow:   "InstanceContainerCreatedWorkflow",
		workflowID: func(p any) string { return p.(*model.InstanceContainerCreated).ID },
	},
	model.JobInstanceContainerDied: {
		newPayload: func() any { return &model.InstanceContainerDied{} },
		workflow:   "InstanceContainerDiedWorkflow",
		workflowID: func(p any) string { return p.(*model.InstanceContainerDied).ID },
	},
	model.JobContainerNetworkAttached: {
		newPayload: func() any { return &model.ContainerNetworkAttached{} },
		workflow:   "ContainerNetworkAttachedWorkflow",
		workflowID: func(p any) string { return p.(*model.ContainerNetworkAttached).ID },
	},
	model.JobInstanceStart: {
		newPayload: func() any { return &model.InstanceLifecycle{} },
		workflow:   "InstanceStartWorkflow",
		workflowID: func(p any) string {
			j := p.(*model.InstanceLifecycle)
			return j.InstanceID + "/" + j.ContainerID
		},
	},
	model.JobInstanceStop: {
		newPayload: func() any { return &model.InstanceLifecycle{} },
		workflow:   "InstanceStopWorkflow",
		workflowID: func(p any) string {
			j := p.(*model.InstanceLifecycle)
			return j.InstanceID + "/" + j.ContainerID
		},
	},
	model.JobInstanceKill: {
		newPayload: func() any { return &model.InstanceKill{} },
		workflow:   "InstanceKillWorkflow",
		workflowID: func(p any) string {
			j := p.(*model.InstanceKill)
			return j.InstanceID + "/" + j.ContainerID
		},
	},
	model.JobInstanceDelete: {
		newPayload: func() any { return &model.InstanceDelete{} },
		workflow:   "InstanceDeleteWorkflow",
		workflowID: func(p any) string { return p.(*model.InstanceDelete).InstanceID },
	},
	model.JobInstanceAutoDeploy: {
		newPayload: func() any { return &model.InstanceAutoDeploy{} },
		workflow:   "InstanceAutoDeployWorkflow",
		workflowID: func(p any) string {
			j := p.(*model.InstanceAutoDeploy)
			id := j.InstanceID
			if id == "" {
				id = j.InstanceShortHash
			}
			return id + "/" + j.PushInfo.Commit
		},
	},
	model.JobInstanceDeployedNotify: {
		newPayload: func() any { return &model.InstanceDeployedNotify{} },
		workflow:   "InstanceDeployedNotifyWorkflow",
		workflowID: func(p any) string {
			j := p.(*model.InstanceDeployedNotify)
			return j.InstanceID + "/" + j.ContextVersionID
		},
	},
	model.JobIsolationKill: {
		newPayload: func() any { return &model.IsolationKill{} },
		workflow:   "IsolationKillWorkflow",
		workflowID: func(p any) string { return p.(*model.IsolationKill).IsolationID },
	},
	model.JobIsolationRedeploy: {
		newPayload: func() any { return &model.IsolationRedeploy{} },
		workflow:   "IsolationRedeployWorkflow",
		workflowID: func(p any) string { return p.(*model.IsolationRedeploy).IsolationID },
	},
	model.JobContextVersionDelete: {
		newPayload: func() any { return &model.ContextVersionDelete{} },
		workflow:   "ContextVersionDeleteWorkflow",
		workflowID: func(p any) string { return p.(*model.ContextVersionDelete).ContextVersionID },
	},
	model.JobImageBuilderStarted: {
		newPayload: func() any { return &model.ImageBuilderStarted{} },
		workflow:   "ImageBuilderStartedWorkflow",
		workflowID: func(p any) string { return p.(*model.ImageBuilderStarted).ID },
	},
	model.JobImageBuilderDied: {
		newPayload: func() any { return &model.ImageBuilderDied{} },
		workflow:   "ImageBuilderDiedWorkflow",
		workflowID: func(p any) string { return p.(*model.ImageBuilderDied).ID },
	},
}

// Dispatcher validates job payloads and starts the matching workflow.
type Dispatcher struct {
	tc       temporalclient.Client
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewDispatcher(tc temporalclient.Client, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		tc:       tc,
		validate: validator.New(),
		logger:   logger,
	}
}

// Dispatch decodes and validates the payload for the named job and starts
// its workflow. Unknown names and invalid payloads are rejected without
// touching Temporal. A workflow id collision means the same event is already
// being handled and counts as dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, jobName string, raw json.RawMessage) error {
	ent, ok := registry[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobName)
	}

	payload := ent.newPayload()
	if err := json.Unmarshal(raw, payload); err != nil {
		metrics.JobsRejected.WithLabelValues(jobName).Inc()
		return fmt.Errorf("%w: %s: %v", ErrInvalidJob, jobName, err)
	}
	if err := d.validate.Struct(payload); err != nil {
		metrics.JobsRejected.WithLabelValues(jobName).Inc()
		return fmt.Errorf("%w: %s: %v", ErrInvalidJob, jobName, err)
	}

	wfID := jobName + "/" + ent.workflowID(payload)
	_, err := d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: workflow.TaskQueue,
	}, ent.workflow, payload)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			d.logger.Debug().Str("job", jobName).Str("workflowId", wfID).
				Msg("duplicate event, workflow already running")
			metrics.JobsDispatched.WithLabelValues(jobName).Inc()
			return nil
		}
		return fmt.Errorf("start %s: %w", ent.workflow, err)
	}

	d.logger.Info().Str("job", jobName).Str("workflowId", wfID).Msg("job dispatched")
	metrics.JobsDispatched.WithLabelValues(jobName).Inc()
	return nil
}

// KnownJobs lists every registered job name.
func KnownJobs() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
