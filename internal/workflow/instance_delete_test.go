package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

type InstanceDeleteWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *InstanceDeleteWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *InstanceDeleteWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *InstanceDeleteWorkflowTestSuite) TestSuccess() {
	inst := model.Instance{
		ID:                "inst-1",
		ShortHash:         "abc123",
		OwnerGithubID:     100,
		ContainerID:       strPtr("cont-1"),
		ContainerDockHost: strPtr("http://dock-1:4242"),
	}

	s.env.OnActivity("GetInstanceByID", mock.Anything, "inst-1").Return(&inst, nil)
	s.env.OnActivity("RemoveContainerHosts", mock.Anything, "inst-1").Return(nil)
	s.env.OnActivity("RemoveContainer", mock.Anything, activity.ContainerRef{
		DockHost:    "http://dock-1:4242",
		ContainerID: "cont-1",
	}).Return(nil)
	s.env.OnActivity("DeleteInstance", mock.Anything, "inst-1").Return(model.Applied, nil)
	s.env.OnActivity("NotifyInstanceUpdate", mock.Anything, activity.InstanceUpdateParams{
		InstanceID:    "inst-1",
		ShortHash:     "abc123",
		OwnerGithubID: 100,
		Event:         model.EventUpdate,
	}).Return(nil)

	s.env.ExecuteWorkflow(InstanceDeleteWorkflow, model.InstanceDelete{InstanceID: "inst-1"})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *InstanceDeleteWorkflowTestSuite) TestMaster_DeletesForksFirst() {
	inst := model.Instance{
		ID:            "inst-1",
		ShortHash:     "abc123",
		OwnerGithubID: 100,
		MasterPod:     true,
	}
	forks := []model.Instance{
		{ID: "fork-1"},
		{ID: "fork-2"},
	}

	s.env.OnActivity("GetInstanceByID", mock.Anything, "inst-1").Return(&inst, nil)
	s.env.OnActivity("RemoveContainerHosts", mock.Anything, "inst-1").Return(nil)
	s.env.OnActivity("ListInstanceForks", mock.Anything, "inst-1").Return(forks, nil)
	s.env.OnWorkflow(InstanceDeleteWorkflow, mock.Anything, model.InstanceDelete{InstanceID: "fork-1"}).Return(nil)
	s.env.OnWorkflow(InstanceDeleteWorkflow, mock.Anything, model.InstanceDelete{InstanceID: "fork-2"}).Return(nil)
	s.env.OnActivity("DeleteInstance", mock.Anything, "inst-1").Return(model.Applied, nil)
	s.env.OnActivity("NotifyInstanceUpdate", mock.Anything, mock.Anything).Return(nil)

	s.env.ExecuteWorkflow(InstanceDeleteWorkflow, model.InstanceDelete{InstanceID: "inst-1"})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *InstanceDeleteWorkflowTestSuite) TestContainerRemovalFails_DeletesAnyway() {
	inst := model.Instance{
		ID:                "inst-1",
		ShortHash:         "abc123",
		OwnerGithubID:     100,
		ContainerID:       strPtr("cont-1"),
		ContainerDockHost: strPtr("http://dock-gone:4242"),
	}

	s.env.OnActivity("GetInstanceByID", mock.Anything, "inst-1").Return(&inst, nil)
	s.env.OnActivity("RemoveContainerHosts", mock.Anything, "inst-1").Return(nil)
	s.env.OnActivity("RemoveContainer", mock.Anything, mock.Anything).Return(fmt.Errorf("dock unreachable"))
	s.env.OnActivity("DeleteInstance", mock.Anything, "inst-1").Return(model.Applied, nil)
	s.env.OnActivity("NotifyInstanceUpdate", mock.Anything, mock.Anything).Return(nil)

	s.env.ExecuteWorkflow(InstanceDeleteWorkflow, model.InstanceDelete{InstanceID: "inst-1"})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *InstanceDeleteWorkflowTestSuite) TestAlreadyDeleted_Drops() {
	s.env.OnActivity("GetInstanceByID", mock.Anything, "inst-gone").Return(nil, nil)

	s.env.ExecuteWorkflow(InstanceDeleteWorkflow, model.InstanceDelete{InstanceID: "inst-gone"})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *InstanceDeleteWorkflowTestSuite) TestRowDeletedConcurrently_NoNotify() {
	inst := model.Instance{
		ID:        "inst-1",
		ShortHash: "abc123",
	}

	s.env.OnActivity("GetInstanceByID", mock.Anything, "inst-1").Return(&inst, nil)
	s.env.OnActivity("RemoveContainerHosts", mock.Anything, "inst-1").Return(nil)
	s.env.OnActivity("DeleteInstance", mock.Anything, "inst-1").Return(model.AlreadySatisfied, nil)

	s.env.ExecuteWorkflow(InstanceDeleteWorkflow, model.InstanceDelete{InstanceID: "inst-1"})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestInstanceDeleteWorkflow(t *testing.T) {
	suite.Run(t, new(InstanceDeleteWorkflowTestSuite))
}
