package workflow

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/model"
)

type ImageBuilderStartedWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ImageBuilderStartedWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ImageBuilderStartedWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func imageBuilderStartedJob(containerID, buildID string) model.ImageBuilderStarted {
	var job model.ImageBuilderStarted
	job.ID = containerID
	job.Host = "http://dock-1:4242"
	job.InspectData.Config.Labels.BuildID = buildID
	job.InspectData.Config.Labels.ContextVersionID = "cv-1"
	return job
}

func (s *ImageBuilderStartedWorkflowTestSuite) TestSuccess_FansOutAcrossDedupe() {
	cvs := []model.ContextVersion{
		{ID: "cv-1", BuildID: "build-1", OwnerGithubID: 100},
		{ID: "cv-2", BuildID: "build-1", OwnerGithubID: 200},
	}

	s.env.OnActivity("MarkBuildStarted", mock.Anything, activity.MarkBuildStartedParams{
		BuildID:     "build-1",
		ContainerID: "builder-1",
		DockHost:    "http://dock-1:4242",
	}).Return(model.Applied, nil)
	s.env.OnActivity("ListContextVersionsByBuild", mock.Anything, "build-1").Return(cvs, nil)
	s.env.OnActivity("NotifyBuildUpdate", mock.Anything, activity.BuildUpdateParams{
		ContextVersionID: "cv-1",
		BuildID:          "build-1",
		OwnerGithubID:    100,
		Event:            model.EventBuildRunning,
	}).Return(nil)
	s.env.OnActivity("NotifyBuildUpdate", mock.Anything, activity.BuildUpdateParams{
		ContextVersionID: "cv-2",
		BuildID:          "build-1",
		OwnerGithubID:    200,
		Event:            model.EventBuildRunning,
	}).Return(nil)
	s.env.OnActivity("MarkBuildRunning", mock.Anything, "build-1").Return(model.Applied, nil)

	s.env.ExecuteWorkflow(ImageBuilderStartedWorkflow, imageBuilderStartedJob("builder-1", "build-1"))
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ImageBuilderStartedWorkflowTestSuite) TestDuplicateEvent_Drops() {
	s.env.OnActivity("MarkBuildStarted", mock.Anything, mock.Anything).Return(model.AlreadySatisfied, nil)

	s.env.ExecuteWorkflow(ImageBuilderStartedWorkflow, imageBuilderStartedJob("builder-1", "build-1"))
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

type ImageBuilderDiedWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ImageBuilderDiedWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ImageBuilderDiedWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func imageBuilderDiedJob(containerID, buildID string, exitCode int) model.ImageBuilderDied {
	var job model.ImageBuilderDied
	job.ID = containerID
	job.Host = "http://dock-1:4242"
	job.InspectData.State.ExitCode = exitCode
	job.InspectData.Config.Labels.BuildID = buildID
	job.InspectData.Config.Labels.ContextVersionID = "cv-1"
	return job
}

func (s *ImageBuilderDiedWorkflowTestSuite) TestSuccess_DeploysEveryInstance() {
	cvs := []model.ContextVersion{
		{ID: "cv-1", BuildID: "build-1", OwnerGithubID: 100},
		{ID: "cv-2", BuildID: "build-1", OwnerGithubID: 200},
	}

	s.env.OnActivity("CompleteBuild", mock.Anything, activity.CompleteBuildParams{
		BuildID: "build-1",
	}).Return(model.Applied, nil)
	s.env.OnActivity("ListContextVersionsByBuild", mock.Anything, "build-1").Return(cvs, nil)
	s.env.OnActivity("ListInstancesByContextVersion", mock.Anything, "cv-1").Return([]model.Instance{
		{ID: "inst-1"}, {ID: "inst-2"},
	}, nil)
	s.env.OnActivity("ListInstancesByContextVersion", mock.Anything, "cv-2").Return([]model.Instance{
		{ID: "inst-3"},
	}, nil)
	s.env.OnActivity("DeployContainer", mock.Anything, activity.DeployContainerParams{
		InstanceID: "inst-1", ContextVersionID: "cv-1", BuildID: "build-1",
	}).Return(nil)
	s.env.OnActivity("DeployContainer", mock.Anything, activity.DeployContainerParams{
		InstanceID: "inst-2", ContextVersionID: "cv-1", BuildID: "build-1",
	}).Return(nil)
	s.env.OnActivity("DeployContainer", mock.Anything, activity.DeployContainerParams{
		InstanceID: "inst-3", ContextVersionID: "cv-2", BuildID: "build-1",
	}).Return(nil)

	s.env.ExecuteWorkflow(ImageBuilderDiedWorkflow, imageBuilderDiedJob("builder-1", "build-1", 0))
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ImageBuilderDiedWorkflowTestSuite) TestNonZeroExit_MarksFailedAndNotifies() {
	cvs := []model.ContextVersion{
		{ID: "cv-1", BuildID: "build-1", OwnerGithubID: 100},
	}

	s.env.OnActivity("CompleteBuild", mock.Anything, mock.MatchedBy(func(params activity.CompleteBuildParams) bool {
		return params.BuildID == "build-1" && params.Failed && params.Error != nil
	})).Return(model.Applied, nil)
	s.env.OnActivity("ListContextVersionsByBuild", mock.Anything, "build-1").Return(cvs, nil)
	s.env.OnActivity("NotifyBuildUpdate", mock.Anything, activity.BuildUpdateParams{
		ContextVersionID: "cv-1",
		BuildID:          "build-1",
		OwnerGithubID:    100,
		Event:            model.EventBuildErrored,
	}).Return(nil)

	s.env.ExecuteWorkflow(ImageBuilderDiedWorkflow, imageBuilderDiedJob("builder-1", "build-1", 2))
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ImageBuilderDiedWorkflowTestSuite) TestDuplicateEvent_Drops() {
	s.env.OnActivity("CompleteBuild", mock.Anything, mock.Anything).Return(model.AlreadySatisfied, nil)

	s.env.ExecuteWorkflow(ImageBuilderDiedWorkflow, imageBuilderDiedJob("builder-1", "build-1", 0))
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestImageBuilderStartedWorkflow(t *testing.T) {
	suite.Run(t, new(ImageBuilderStartedWorkflowTestSuite))
}

func TestImageBuilderDiedWorkflow(t *testing.T) {
	suite.Run(t, new(ImageBuilderDiedWorkflowTestSuite))
}
