package request

import "encoding/json"

// CreateIsolation is the body for POST /isolations.
type CreateIsolation struct {
	MasterInstanceID string `json:"master_instance_id" validate:"required,uuid"`
}

// CreateAutoIsolationConfig is the body for POST /auto-isolation-configs.
type CreateAutoIsolationConfig struct {
	InstanceID            string          `json:"instance_id" validate:"required,uuid"`
	RequestedDependencies json.RawMessage `json:"requested_dependencies" validate:"required"`
}
