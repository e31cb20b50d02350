package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized correctly
// by the Temporal test framework. In unit tests, all activities are mocked via
// OnActivity, but the framework still needs the type information for proper
// serialization/deserialization of activity parameters and return values.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.InstanceDB{})
	env.RegisterActivity(&activity.ContextVersionDB{})
	env.RegisterActivity(&activity.IsolationDB{})
	env.RegisterActivity(&activity.Hosts{})
	env.RegisterActivity(&activity.Container{})
	env.RegisterActivity(&activity.BuildService{})
	env.RegisterActivity(&activity.Notify{})
}

// matchContainerError returns a matcher for RecordContainerErrorParams that
// checks instance and container ids and that some message was recorded. The
// exact message includes Temporal activity error wrapping that is not
// predictable in tests.
func matchContainerError(instanceID, containerID string) interface{} {
	return mock.MatchedBy(func(params activity.RecordContainerErrorParams) bool {
		return params.InstanceID == instanceID &&
			params.ContainerID == containerID &&
			params.Message != ""
	})
}

// matchErroredNotify returns a matcher for the errored InstanceUpdateParams
// sent after a container operation fails.
func matchErroredNotify(instanceID string) interface{} {
	return mock.MatchedBy(func(params activity.InstanceUpdateParams) bool {
		return params.InstanceID == instanceID &&
			params.Event == model.EventErrored &&
			params.ContainerErrorMsg != ""
	})
}

func strPtr(s string) *string { return &s }
