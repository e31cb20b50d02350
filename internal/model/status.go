package model

// Container runtime states for an instance. Transitions are driven
// exclusively by incoming jobs; every mutation is a guarded update.
const (
	ContainerStateNone     = "none"
	ContainerStateCreating = "creating"
	ContainerStateStarting = "starting"
	ContainerStateRunning  = "running"
	ContainerStateStopping = "stopping"
	ContainerStateStopped  = "stopped"
	ContainerStateKilled   = "killed"
	ContainerStateDied     = "died"
	ContainerStateErrored  = "errored"
)

// Build states for a context version. Monotonic, no skipping.
const (
	BuildStateStarting  = "build starting"
	BuildStateStarted   = "build started"
	BuildStateRunning   = "build running"
	BuildStateCompleted = "build completed"
)

// Isolation group states.
const (
	IsolationStateCreated = "created"
	IsolationStateKilling = "killing"
	IsolationStateKilled  = "killed"
)

// ApplyResult reports the outcome of a guarded conditional update.
// AlreadySatisfied means the update matched zero rows: the target either
// already moved past the expected prior state or never was in it. Both are
// benign under at-least-once delivery and must stop the worker without error.
type ApplyResult int

const (
	AlreadySatisfied ApplyResult = iota
	Applied
)

func (r ApplyResult) String() string {
	if r == Applied {
		return "applied"
	}
	return "already-satisfied"
}

// Notification event names published to the real-time gateway.
const (
	EventStarting = "starting"
	EventStart    = "start"
	EventStopping = "stopping"
	EventUpdate   = "update"
	EventErrored  = "errored"
	EventDeploy   = "deploy"

	EventBuildRunning          = "build_running"
	EventBuildErrored          = "build_errored"
	EventContextVersionDeleted = "context_version_deleted"
)
