package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BuildService calls the external image build service. The service is opaque:
// it schedules image-builder containers on docks and (on success) creates the
// instance containers; progress comes back as image-builder and container
// lifecycle events on the queue.
type BuildService struct {
	client  *http.Client
	baseURL string
}

func NewBuildService(baseURL string) *BuildService {
	return &BuildService{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
	}
}

// TriggerBuildParams holds the parameters for TriggerBuild.
type TriggerBuildParams struct {
	BuildID          string `json:"build_id"`
	ContextVersionID string `json:"context_version_id"`
	Repo             string `json:"repo"`
	Commit           string `json:"commit"`
	Branch           string `json:"branch"`
}

// TriggerBuild asks the build service to build the image for a context
// version at a specific commit.
func (a *BuildService) TriggerBuild(ctx context.Context, params TriggerBuildParams) error {
	return a.post(ctx, a.baseURL+"/builds", params)
}

// DeployContainerParams holds the parameters for DeployContainer.
type DeployContainerParams struct {
	InstanceID       string `json:"instance_id"`
	ContextVersionID string `json:"context_version_id"`
	BuildID          string `json:"build_id"`
}

// DeployContainer asks the build service to create a fresh container for an
// instance from its completed build. The resulting container surfaces as an
// instance.container.created event.
func (a *BuildService) DeployContainer(ctx context.Context, params DeployContainerParams) error {
	return a.post(ctx, a.baseURL+"/containers", params)
}

// ClearContainerMemoryParams holds the parameters for ClearContainerMemory.
type ClearContainerMemoryParams struct {
	DockHost    string `json:"dock_host"`
	ContainerID string `json:"container_id"`
}

// ClearContainerMemory asks the dock to release cached memory accounting for
// a dead testing container so short-lived isolation members do not pin dock
// capacity.
func (a *BuildService) ClearContainerMemory(ctx context.Context, params ClearContainerMemoryParams) error {
	return a.post(ctx, a.baseURL+"/containers/clear-memory", params)
}

func (a *BuildService) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return nonRetryable("marshal build service payload", ErrTypeMarshalError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nonRetryable("create build service request", ErrTypeMarshalError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("build service POST to %s: %w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		// The build service answers 503 when no dock has capacity. Retrying
		// cannot help until an operator adds capacity.
		return nonRetryable("no dock available for scheduling", ErrTypeDockUnavailable, nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nonRetryable(fmt.Sprintf("build service returned %d", resp.StatusCode),
			ErrTypeClientError, nil)
	default:
		return fmt.Errorf("build service returned %d", resp.StatusCode)
	}
}
