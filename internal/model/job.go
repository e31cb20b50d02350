package model

// Job names. Each name maps to exactly one payload type and one workflow in
// the dispatch registry. Names follow the event vocabulary of the docks:
// dotted, entity-first.
const (
	JobInstanceContainerCreated = "instance.container.created"
	JobInstanceContainerDied    = "instance.container.died"
	JobContainerNetworkAttached = "container.network.attached"
	JobInstanceStart            = "instance.start"
	JobInstanceStop             = "instance.stop"
	JobInstanceKill             = "instance.kill"
	JobInstanceDelete           = "instance.delete"
	JobInstanceAutoDeploy       = "instance.auto-deploy"
	JobInstanceDeployedNotify   = "instance.deployed.notify"
	JobIsolationKill            = "isolation.kill"
	JobIsolationRedeploy        = "isolation.redeploy"
	JobContextVersionDelete     = "context-version.delete"
	JobImageBuilderStarted      = "container.image-builder.started"
	JobImageBuilderDied         = "container.image-builder.died"
)

// InstanceContainerCreated is emitted by a dock when a user container has
// been created for an instance.
type InstanceContainerCreated struct {
	ID          string `json:"id" validate:"required"`
	Host        string `json:"host" validate:"required,url"`
	InspectData struct {
		Config struct {
			Labels struct {
				InstanceID          string `json:"instanceId" validate:"required"`
				ContextVersionID    string `json:"contextVersionId" validate:"required"`
				SessionUserGithubID int64  `json:"sessionUserGithubId" validate:"required"`
			} `json:"Labels"`
		} `json:"Config"`
	} `json:"inspectData"`
}

// InstanceContainerDied is emitted by a dock when a user container exited.
type InstanceContainerDied struct {
	ID          string `json:"id" validate:"required"`
	InspectData struct {
		State struct {
			ExitCode int `json:"ExitCode"`
		} `json:"State"`
		Config struct {
			Labels struct {
				InstanceID          string `json:"instanceId" validate:"required"`
				SessionUserGithubID int64  `json:"sessionUserGithubId" validate:"required"`
			} `json:"Labels"`
		} `json:"Config"`
	} `json:"inspectData"`
}

// ContainerNetworkAttached is the authoritative "this container is reachable"
// signal. An instance is not announced as started until this arrives.
type ContainerNetworkAttached struct {
	ID          string `json:"id" validate:"required"`
	ContainerIP string `json:"containerIp" validate:"required,ip"`
	InspectData struct {
		NetworkSettings struct {
			Ports map[string][]PortBinding `json:"Ports" validate:"required"`
		} `json:"NetworkSettings"`
		Config struct {
			Labels struct {
				InstanceID    string `json:"instanceId" validate:"required"`
				OwnerUsername string `json:"ownerUsername" validate:"required"`
			} `json:"Labels"`
		} `json:"Config"`
	} `json:"inspectData"`
}

// PortBinding mirrors the docker inspect port map entries.
type PortBinding struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

// InstanceLifecycle is the payload for instance.start and instance.stop.
// ContainerID pins the job to one container incarnation so a retried job
// cannot act on a newer container.
type InstanceLifecycle struct {
	InstanceID          string `json:"instanceId" validate:"required"`
	ContainerID         string `json:"containerId" validate:"required"`
	SessionUserGithubID int64  `json:"sessionUserGithubId" validate:"required"`
}

// InstanceKill is the payload for instance.kill. Kill is internal (isolation
// teardown) and carries no acting user.
type InstanceKill struct {
	InstanceID  string `json:"instanceId" validate:"required"`
	ContainerID string `json:"containerId" validate:"required"`
}

// InstanceDelete is the payload for instance.delete.
type InstanceDelete struct {
	InstanceID string `json:"instanceId" validate:"required"`
}

// PushInfo describes the git push that triggered an auto-deploy.
type PushInfo struct {
	Repo   string `json:"repo" validate:"required"`
	Branch string `json:"branch" validate:"required"`
	Commit string `json:"commit" validate:"required"`
	User   struct {
		ID int64 `json:"id" validate:"required"`
	} `json:"user"`
}

// InstanceAutoDeploy is the payload for instance.auto-deploy. Either the
// short hash or the id identifies the instance.
type InstanceAutoDeploy struct {
	InstanceID        string   `json:"instanceId" validate:"required_without=InstanceShortHash"`
	InstanceShortHash string   `json:"instanceShortHash" validate:"required_without=InstanceID"`
	PushInfo          PushInfo `json:"pushInfo" validate:"required"`
}

// InstanceDeployedNotify is the payload for instance.deployed.notify.
type InstanceDeployedNotify struct {
	InstanceID       string `json:"instanceId" validate:"required"`
	ContextVersionID string `json:"cvId" validate:"required"`
}

// IsolationKill is the payload for isolation.kill.
type IsolationKill struct {
	IsolationID     string `json:"isolationId" validate:"required"`
	TriggerRedeploy bool   `json:"triggerRedeploy"`
}

// IsolationRedeploy is the payload for isolation.redeploy.
type IsolationRedeploy struct {
	IsolationID string `json:"isolationId" validate:"required"`
}

// ContextVersionDelete is the payload for context-version.delete.
type ContextVersionDelete struct {
	ContextVersionID string `json:"contextVersionId" validate:"required"`
}

// ImageBuilderStarted is emitted when the image-builder container for a build
// begins running.
type ImageBuilderStarted struct {
	ID          string `json:"id" validate:"required"`
	Host        string `json:"host" validate:"required,url"`
	InspectData struct {
		Config struct {
			Labels struct {
				ContextVersionID string `json:"contextVersionId" validate:"required"`
				BuildID          string `json:"buildId" validate:"required"`
			} `json:"Labels"`
		} `json:"Config"`
	} `json:"inspectData"`
}

// ImageBuilderDied is emitted when the image-builder container exits. Exit
// code zero means the image build succeeded.
type ImageBuilderDied struct {
	ID          string `json:"id" validate:"required"`
	Host        string `json:"host" validate:"required,url"`
	InspectData struct {
		State struct {
			ExitCode int `json:"ExitCode"`
		} `json:"State"`
		Config struct {
			Labels struct {
				ContextVersionID string `json:"contextVersionId" validate:"required"`
				BuildID          string `json:"buildId" validate:"required"`
			} `json:"Labels"`
		} `json:"Config"`
	} `json:"inspectData"`
}
