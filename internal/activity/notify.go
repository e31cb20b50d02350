package activity

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runnable/controlplane/internal/platform"
)

// Notify contains activities that publish state changes outward: instance and
// build updates to the real-time gateway, and deploy notifications to chat
// and the pull request. All of these are fire-and-forget relative to entity
// mutations; at-least-once delivery is acceptable.
type Notify struct {
	client            *http.Client
	gatewayURL        string
	chatURL           string
	githubURL         string
	userContentDomain string
	templates         notifyTemplates
}

//go:embed notify_templates.yaml
var defaultTemplatesYAML []byte

type notifyTemplates struct {
	DeployChat      string `yaml:"deploy_chat"`
	DeployPRContext string `yaml:"deploy_pr_context"`
}

// NewNotify creates the Notify activity struct. Message templates come from
// the embedded defaults; operators override them by shipping a different
// notify_templates.yaml at build time.
func NewNotify(gatewayURL, chatURL, githubURL, userContentDomain string) (*Notify, error) {
	var tpl notifyTemplates
	if err := yaml.Unmarshal(defaultTemplatesYAML, &tpl); err != nil {
		return nil, fmt.Errorf("parse notify templates: %w", err)
	}
	return &Notify{
		client:            &http.Client{Timeout: 30 * time.Second},
		gatewayURL:        gatewayURL,
		chatURL:           chatURL,
		githubURL:         githubURL,
		userContentDomain: userContentDomain,
		templates:         tpl,
	}, nil
}

func (a *Notify) instanceURL(shortHash, name, ownerUsername string) string {
	return "https://" + platform.ContainerHostname(shortHash, name, ownerUsername, a.userContentDomain)
}

// InstanceUpdateParams holds the parameters for NotifyInstanceUpdate.
type InstanceUpdateParams struct {
	InstanceID         string `json:"instance_id"`
	ShortHash          string `json:"short_hash"`
	OwnerGithubID      int64  `json:"owner_github_id"`
	Event              string `json:"event"` // starting, start, stopping, update, errored
	ActingUserGithubID int64  `json:"acting_user_github_id"`
	IsInternal         bool   `json:"is_internal"`
	ContainerErrorMsg  string `json:"container_error_msg,omitempty"`
}

// NotifyInstanceUpdate publishes an instance state-change event to the
// real-time gateway, which fans it out to connected clients.
func (a *Notify) NotifyInstanceUpdate(ctx context.Context, params InstanceUpdateParams) error {
	return a.post(ctx, a.gatewayURL+"/events/instance", map[string]any{
		"event":               "instance." + params.Event,
		"instanceId":          params.InstanceID,
		"shortHash":           params.ShortHash,
		"ownerGithubId":       params.OwnerGithubID,
		"actingUserGithubId":  params.ActingUserGithubID,
		"internal":            params.IsInternal,
		"containerErrorMsg":   params.ContainerErrorMsg,
	})
}

// BuildUpdateParams holds the parameters for NotifyBuildUpdate.
type BuildUpdateParams struct {
	ContextVersionID string `json:"context_version_id"`
	BuildID          string `json:"build_id"`
	OwnerGithubID    int64  `json:"owner_github_id"`
	Event            string `json:"event"` // build_running, context_version_deleted
}

// NotifyBuildUpdate publishes a build state-change event for one context
// version. Dedupe builds call this once per version sharing the build.
func (a *Notify) NotifyBuildUpdate(ctx context.Context, params BuildUpdateParams) error {
	return a.post(ctx, a.gatewayURL+"/events/build", map[string]any{
		"event":            params.Event,
		"contextVersionId": params.ContextVersionID,
		"buildId":          params.BuildID,
		"ownerGithubId":    params.OwnerGithubID,
	})
}

// DeployChatParams holds the parameters for SendDeployChat.
type DeployChatParams struct {
	InstanceName  string `json:"instance_name"`
	ShortHash     string `json:"short_hash"`
	OwnerUsername string `json:"owner_username"`
	PusherIsUser  bool   `json:"pusher_is_user"`
}

// SendDeployChat posts the deploy message to the configured chat webhook.
func (a *Notify) SendDeployChat(ctx context.Context, params DeployChatParams) error {
	t, err := template.New("deploy_chat").Parse(a.templates.DeployChat)
	if err != nil {
		return nonRetryable("parse deploy chat template", ErrTypeMarshalError, err)
	}
	var msg bytes.Buffer
	err = t.Execute(&msg, struct {
		DeployChatParams
		InstanceURL string
	}{params, a.instanceURL(params.ShortHash, params.InstanceName, params.OwnerUsername)})
	if err != nil {
		return nonRetryable("render deploy chat template", ErrTypeMarshalError, err)
	}
	return a.post(ctx, a.chatURL, map[string]any{"text": msg.String()})
}

// DeploymentStatusParams holds the parameters for CreateDeploymentStatus.
type DeploymentStatusParams struct {
	Repo          string `json:"repo"` // owner/name
	Commit        string `json:"commit"`
	InstanceName  string `json:"instance_name"`
	ShortHash     string `json:"short_hash"`
	OwnerUsername string `json:"owner_username"`
	Description   string `json:"description"`
}

// CreateDeploymentStatus records a successful deployment against the pushed
// commit on the pull request.
func (a *Notify) CreateDeploymentStatus(ctx context.Context, params DeploymentStatusParams) error {
	url := fmt.Sprintf("%s/repos/%s/statuses/%s", a.githubURL, params.Repo, params.Commit)
	return a.post(ctx, url, map[string]any{
		"state":       "success",
		"context":     a.templates.DeployPRContext,
		"target_url":  a.instanceURL(params.ShortHash, params.InstanceName, params.OwnerUsername),
		"description": params.Description,
	})
}

func (a *Notify) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return nonRetryable("marshal notification payload", ErrTypeMarshalError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nonRetryable("create notification request", ErrTypeMarshalError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification POST to %s: %w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nonRetryable(fmt.Sprintf("notification endpoint returned %d", resp.StatusCode),
			ErrTypeClientError, nil)
	}
	return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
}
