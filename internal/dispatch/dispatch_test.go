package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/runnable/controlplane/internal/model"
	"github.com/runnable/controlplane/internal/workflow"
)

func newTestDispatcher(tc temporalclient.Client) *Dispatcher {
	return NewDispatcher(tc, zerolog.Nop())
}

func matchWorkflowID(id string) interface{} {
	return mock.MatchedBy(func(opts temporalclient.StartWorkflowOptions) bool {
		return opts.ID == id && opts.TaskQueue == workflow.TaskQueue
	})
}

func TestDispatch_UnknownJob(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	err := d.Dispatch(context.Background(), "no.such.job", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownJob)
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestDispatch_MalformedPayload(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	err := d.Dispatch(context.Background(), model.JobInstanceDelete, json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJob)
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestDispatch_ValidationFailure(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	// instanceId is required.
	err := d.Dispatch(context.Background(), model.JobInstanceDelete, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJob)
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestDispatch_Success(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", mock.Anything,
		matchWorkflowID("instance.delete/inst-1"),
		"InstanceDeleteWorkflow", mock.Anything).Return(wfRun, nil)

	err := d.Dispatch(context.Background(), model.JobInstanceDelete,
		json.RawMessage(`{"instanceId":"inst-1"}`))
	require.NoError(t, err)
	tc.AssertExpectations(t)
}

func TestDispatch_LifecycleWorkflowIDPinsContainer(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", mock.Anything,
		matchWorkflowID("instance.start/inst-1/cont-1"),
		"InstanceStartWorkflow", mock.Anything).Return(wfRun, nil)

	err := d.Dispatch(context.Background(), model.JobInstanceStart,
		json.RawMessage(`{"instanceId":"inst-1","containerId":"cont-1","sessionUserGithubId":42}`))
	require.NoError(t, err)
	tc.AssertExpectations(t)
}

func TestDispatch_AutoDeployIDFallsBackToShortHash(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", mock.Anything,
		matchWorkflowID("instance.auto-deploy/abc123/deadbeef"),
		"InstanceAutoDeployWorkflow", mock.Anything).Return(wfRun, nil)

	payload := `{"instanceShortHash":"abc123","pushInfo":{"repo":"alice/api","branch":"main","commit":"deadbeef","user":{"id":42}}}`
	err := d.Dispatch(context.Background(), model.JobInstanceAutoDeploy, json.RawMessage(payload))
	require.NoError(t, err)
	tc.AssertExpectations(t)
}

func TestDispatch_DuplicateDelivery_AlreadyStartedIsBenign(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "req-1", "run-1"))

	err := d.Dispatch(context.Background(), model.JobIsolationKill,
		json.RawMessage(`{"isolationId":"iso-1"}`))
	require.NoError(t, err)
	tc.AssertExpectations(t)
}

func TestDispatch_TemporalDown(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	err := d.Dispatch(context.Background(), model.JobIsolationKill,
		json.RawMessage(`{"isolationId":"iso-1"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidJob)
	tc.AssertExpectations(t)
}

func TestDispatch_DockerEventPayload(t *testing.T) {
	tc := &temporalmocks.Client{}
	d := newTestDispatcher(tc)

	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("ExecuteWorkflow", mock.Anything,
		matchWorkflowID("instance.container.created/cont-1"),
		"InstanceContainerCreatedWorkflow", mock.Anything).Return(wfRun, nil)

	payload := `{
		"id": "cont-1",
		"host": "http://dock-1:4242",
		"inspectData": {
			"Config": {
				"Labels": {
					"instanceId": "inst-1",
					"contextVersionId": "cv-1",
					"sessionUserGithubId": 42
				}
			}
		}
	}`
	err := d.Dispatch(context.Background(), model.JobInstanceContainerCreated, json.RawMessage(payload))
	require.NoError(t, err)
	tc.AssertExpectations(t)
}

func TestKnownJobs_CoversRegistry(t *testing.T) {
	names := KnownJobs()
	assert.Len(t, names, len(registry))
	assert.Contains(t, names, model.JobInstanceContainerCreated)
	assert.Contains(t, names, model.JobImageBuilderDied)
}
