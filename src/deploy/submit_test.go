package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/edgefreight/src/azure"
	"github.com/sofmeright/edgefreight/src/process"
)

// memoryHub keeps deployments per hub and id.
type memoryHub struct {
	deployments map[string]Deployment
	calls       []string
	deleteErr   error
	createErr   error
}

func newMemoryHub() *memoryHub {
	return &memoryHub{deployments: map[string]Deployment{}}
}

func (h *memoryHub) DeleteDeployment(_ context.Context, hubName, id string) error {
	h.calls = append(h.calls, "delete "+id)
	if h.deleteErr != nil {
		return h.deleteErr
	}
	key := hubName + "/" + id
	if _, ok := h.deployments[key]; !ok {
		return ErrDeploymentNotFound
	}
	delete(h.deployments, key)
	return nil
}

func (h *memoryHub) CreateDeployment(_ context.Context, d Deployment) error {
	h.calls = append(h.calls, "create "+d.ID)
	if h.createErr != nil {
		return h.createErr
	}
	key := d.HubName + "/" + d.ID
	if _, ok := h.deployments[key]; ok {
		return errors.New("ConfigurationAlreadyExists")
	}
	h.deployments[key] = d
	return nil
}

func submission(t *testing.T) Submission {
	target, err := ForDevice("device-a")
	require.NoError(t, err)
	return Submission{HubName: "hub1", DeploymentID: "cfg-1", ContentPath: "/ws/config/deployment.amd64.json", Target: target, Priority: 10}
}

func TestSubmitIsIdempotent(t *testing.T) {
	hub := newMemoryHub()
	s := NewSubmitter(hub, nil)

	state, err := s.Submit(context.Background(), submission(t))
	require.NoError(t, err)
	assert.Equal(t, DeleteAbsent, state)

	state, err = s.Submit(context.Background(), submission(t))
	require.NoError(t, err)
	assert.Equal(t, DeleteRemoved, state)

	assert.Len(t, hub.deployments, 1)
	assert.Equal(t, []string{"delete cfg-1", "create cfg-1", "delete cfg-1", "create cfg-1"}, hub.calls)
}

func TestSubmitReplacesExisting(t *testing.T) {
	hub := newMemoryHub()
	hub.deployments["hub1/cfg-1"] = Deployment{HubName: "hub1", ID: "cfg-1", TargetCondition: "tags.old='x'", Priority: 1}

	_, err := NewSubmitter(hub, nil).Submit(context.Background(), submission(t))
	require.NoError(t, err)

	got := hub.deployments["hub1/cfg-1"]
	assert.Equal(t, "deviceId='device-a'", got.TargetCondition)
	assert.Equal(t, 10, got.Priority)
	assert.Equal(t, "/ws/config/deployment.amd64.json", got.ContentPath)
}

func TestSubmitAbortsOnDeleteFailure(t *testing.T) {
	hub := newMemoryHub()
	hub.deleteErr = &process.CloudError{Message: "(Unauthorized) access denied"}

	_, err := NewSubmitter(hub, nil).Submit(context.Background(), submission(t))
	require.Error(t, err)

	var ce *process.CloudError
	assert.True(t, errors.As(err, &ce))
	assert.NotErrorIs(t, err, ErrDeploymentSubmitFailed)
	assert.Equal(t, []string{"delete cfg-1"}, hub.calls, "create must not run after a failed delete")
}

func TestSubmitCreateFailure(t *testing.T) {
	hub := newMemoryHub()
	hub.createErr = &process.ToolError{Command: "az", ExitCode: 1, Diagnostic: "bad content"}

	_, err := NewSubmitter(hub, nil).Submit(context.Background(), submission(t))
	require.ErrorIs(t, err, ErrDeploymentSubmitFailed)

	var te *process.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "bad content", te.Diagnostic)
}

type recordingRunner struct {
	calls []process.Command
	err   error
}

func (r *recordingRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.calls = append(r.calls, cmd)
	return &process.Result{}, r.err
}

func TestCLIHubCommands(t *testing.T) {
	r := &recordingRunner{}
	hub := NewCLIHub(&azure.Session{AzBinary: "az", Dir: "/tmp/az-session", Runner: r})

	require.NoError(t, hub.DeleteDeployment(context.Background(), "hub1", "cfg-1"))
	require.NoError(t, hub.CreateDeployment(context.Background(), Deployment{
		HubName: "hub1", ID: "cfg-1", ContentPath: "/ws/deployment.json",
		TargetCondition: "deviceId='device-a'", Priority: 10,
	}))

	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"iot", "edge", "deployment", "delete", "--hub-name", "hub1", "--deployment-id", "cfg-1"}, r.calls[0].Args)
	assert.Equal(t, []string{
		"iot", "edge", "deployment", "create",
		"--deployment-id", "cfg-1",
		"--hub-name", "hub1",
		"--content", "/ws/deployment.json",
		"--target-condition", "deviceId='device-a'",
		"--priority", "10",
	}, r.calls[1].Args)
	assert.True(t, r.calls[1].CaptureCloudErrors)
	assert.Equal(t, "/tmp/az-session", r.calls[1].Env["AZURE_CONFIG_DIR"])
}

func TestCLIHubDeleteNotFound(t *testing.T) {
	r := &recordingRunner{err: &process.CloudError{
		Message: "(ConfigurationNotFound) Configuration 'cfg-1' not found.",
		Err:     &process.ToolError{Command: "az", ExitCode: 3},
	}}
	hub := NewCLIHub(&azure.Session{AzBinary: "az", Runner: r})

	err := hub.DeleteDeployment(context.Background(), "hub1", "cfg-1")
	assert.ErrorIs(t, err, ErrDeploymentNotFound)

	r.err = &process.CloudError{Message: "(Forbidden) nope"}
	err = hub.DeleteDeployment(context.Background(), "hub1", "cfg-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeploymentNotFound)
}
