package activity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/runnable/controlplane/internal/model"
)

func newTestNotify(t *testing.T, gatewayURL, chatURL, githubURL string) *Notify {
	t.Helper()
	a, err := NewNotify(gatewayURL, chatURL, githubURL, "runnableapp.com")
	require.NoError(t, err)
	return a
}

func TestNotify_NotifyInstanceUpdate_Success(t *testing.T) {
	var received map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestNotify(t, srv.URL, "", "")
	err := a.NotifyInstanceUpdate(context.Background(), InstanceUpdateParams{
		InstanceID:         "inst-1",
		ShortHash:          "abc123",
		OwnerGithubID:      100,
		Event:              model.EventStarting,
		ActingUserGithubID: 42,
	})

	require.NoError(t, err)
	assert.Equal(t, "/events/instance", path)
	assert.Equal(t, "instance."+model.EventStarting, received["event"])
	assert.Equal(t, "inst-1", received["instanceId"])
	assert.Equal(t, float64(42), received["actingUserGithubId"])
	assert.Equal(t, false, received["internal"])
}

func TestNotify_NotifyBuildUpdate_Success(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/build", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestNotify(t, srv.URL, "", "")
	err := a.NotifyBuildUpdate(context.Background(), BuildUpdateParams{
		ContextVersionID: "cv-1",
		BuildID:          "build-1",
		OwnerGithubID:    100,
		Event:            model.EventBuildRunning,
	})

	require.NoError(t, err)
	assert.Equal(t, model.EventBuildRunning, received["event"])
	assert.Equal(t, "cv-1", received["contextVersionId"])
}

func TestNotify_SendDeployChat_RendersTemplate(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestNotify(t, "", srv.URL, "")
	err := a.SendDeployChat(context.Background(), DeployChatParams{
		InstanceName:  "api",
		ShortHash:     "abc123",
		OwnerUsername: "alice",
		PusherIsUser:  true,
	})

	require.NoError(t, err)
	assert.Contains(t, received["text"], "alice/api")
	assert.Contains(t, received["text"], "(pushed by you)")
	assert.Contains(t, received["text"], "https://abc123-api.alice.runnableapp.com")
}

func TestNotify_SendDeployChat_OtherPusher(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestNotify(t, "", srv.URL, "")
	err := a.SendDeployChat(context.Background(), DeployChatParams{
		InstanceName:  "api",
		ShortHash:     "abc123",
		OwnerUsername: "alice",
		PusherIsUser:  false,
	})

	require.NoError(t, err)
	assert.NotContains(t, received["text"], "(pushed by you)")
}

func TestNotify_CreateDeploymentStatus_Success(t *testing.T) {
	var received map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a := newTestNotify(t, "", "", srv.URL)
	err := a.CreateDeploymentStatus(context.Background(), DeploymentStatusParams{
		Repo:          "alice/api",
		Commit:        "deadbeef",
		InstanceName:  "api",
		ShortHash:     "abc123",
		OwnerUsername: "alice",
		Description:   "Deployed api",
	})

	require.NoError(t, err)
	assert.Equal(t, "/repos/alice/api/statuses/deadbeef", path)
	assert.Equal(t, "success", received["state"])
	assert.Equal(t, "runnable/deploy", received["context"])
	assert.Equal(t, "https://abc123-api.alice.runnableapp.com", received["target_url"])
}

func TestNotify_ClientError_NonRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := newTestNotify(t, srv.URL, "", "")
	err := a.NotifyInstanceUpdate(context.Background(), InstanceUpdateParams{
		InstanceID: "inst-1",
		Event:      model.EventUpdate,
	})

	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, ErrTypeClientError, appErr.Type())
}

func TestNotify_ServerError_Retryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestNotify(t, srv.URL, "", "")
	err := a.NotifyInstanceUpdate(context.Background(), InstanceUpdateParams{
		InstanceID: "inst-1",
		Event:      model.EventUpdate,
	})

	require.Error(t, err)
	var appErr *temporal.ApplicationError
	assert.False(t, errors.As(err, &appErr))
}
