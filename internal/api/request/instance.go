package request

// CreateInstance is the body for POST /instances.
type CreateInstance struct {
	Name             string  `json:"name" validate:"required,slug"`
	OwnerGithubID    int64   `json:"owner_github_id" validate:"required"`
	OwnerUsername    string  `json:"owner_username" validate:"required"`
	MasterPod        bool    `json:"master_pod"`
	ParentID         *string `json:"parent_id,omitempty"`
	IsTesting        bool    `json:"is_testing"`
	BuildID          string  `json:"build_id" validate:"required,uuid"`
	ContextVersionID string  `json:"context_version_id" validate:"required,uuid"`
}

// InstanceLifecycle is the body for POST /instances/{id}/start and /stop.
type InstanceLifecycle struct {
	ActingUserGithubID int64 `json:"acting_user_github_id" validate:"required"`
}
