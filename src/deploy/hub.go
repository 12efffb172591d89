package deploy

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/sofmeright/edgefreight/src/azure"
	"github.com/sofmeright/edgefreight/src/process"
)

// ErrDeploymentNotFound means the hub has no deployment with the given id.
// Delete treats it as nothing to remove.
var ErrDeploymentNotFound = errors.New("deployment not found")

// notFoundMarker is the error code the hub reports for an unknown
// deployment id.
const notFoundMarker = "ConfigurationNotFound"

// Deployment is everything the hub needs to create a deployment.
type Deployment struct {
	HubName         string
	ID              string
	ContentPath     string
	TargetCondition string
	Priority        int
}

// Hub manages deployments on an IoT Hub.
type Hub interface {
	// DeleteDeployment removes a deployment. It returns ErrDeploymentNotFound
	// when there is none with that id.
	DeleteDeployment(ctx context.Context, hubName, deploymentID string) error

	CreateDeployment(ctx context.Context, d Deployment) error
}

// CLIHub implements Hub with "az iot edge deployment" inside a signed-in
// Azure CLI session.
type CLIHub struct {
	Session *azure.Session
}

// NewCLIHub creates a hub client bound to session.
func NewCLIHub(session *azure.Session) *CLIHub {
	return &CLIHub{Session: session}
}

// DeleteDeployment implements Hub.
func (h *CLIHub) DeleteDeployment(ctx context.Context, hubName, deploymentID string) error {
	_, err := h.Session.Run(ctx, "iot", "edge", "deployment", "delete",
		"--hub-name", hubName,
		"--deployment-id", deploymentID)
	if err != nil && isDeploymentNotFound(err) {
		return ErrDeploymentNotFound
	}
	return err
}

// CreateDeployment implements Hub.
func (h *CLIHub) CreateDeployment(ctx context.Context, d Deployment) error {
	_, err := h.Session.Run(ctx, "iot", "edge", "deployment", "create",
		"--deployment-id", d.ID,
		"--hub-name", d.HubName,
		"--content", d.ContentPath,
		"--target-condition", d.TargetCondition,
		"--priority", strconv.Itoa(d.Priority))
	return err
}

// isDeploymentNotFound recognizes the hub's not-found answer. Only the
// hub error code counts; any other failure stays a failure.
func isDeploymentNotFound(err error) bool {
	var ce *process.CloudError
	if errors.As(err, &ce) && strings.Contains(ce.Message, notFoundMarker) {
		return true
	}
	var te *process.ToolError
	if errors.As(err, &te) && strings.Contains(te.Diagnostic, notFoundMarker) {
		return true
	}
	return false
}
