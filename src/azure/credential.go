// Package azure talks to the Azure management plane and prepares Azure CLI
// sessions for the deploy stage.
package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/version"
)

// Azure cloud environment names, as the Azure CLI spells them.
const (
	CloudPublic     = "AzureCloud"
	CloudChina      = "AzureChinaCloud"
	CloudGovernment = "AzureUSGovernment"
)

// CloudConfiguration maps a cloud environment name to SDK endpoints.
// Empty selects the public cloud.
func CloudConfiguration(name string) (cloud.Configuration, error) {
	switch name {
	case "", CloudPublic:
		return cloud.AzurePublic, nil
	case CloudChina:
		return cloud.AzureChina, nil
	case CloudGovernment:
		return cloud.AzureGovernment, nil
	default:
		return cloud.Configuration{}, fmt.Errorf("unknown cloud environment %q (valid: %s, %s, %s)",
			name, CloudPublic, CloudChina, CloudGovernment)
	}
}

// HubSuffix returns the IoT Hub host suffix for a cloud environment.
func HubSuffix(name string) string {
	switch name {
	case CloudChina:
		return "azure-devices.cn"
	case CloudGovernment:
		return "azure-devices.us"
	default:
		return "azure-devices.net"
	}
}

// HubURL returns the host name of an IoT Hub.
func HubURL(hubName, cloudEnvironment string) string {
	if hubName == "" {
		return ""
	}
	return hubName + "." + HubSuffix(cloudEnvironment)
}

// Connection is an authenticated management-plane identity for one
// subscription.
type Connection struct {
	SubscriptionID string
	Credential     azcore.TokenCredential
	Options        *arm.ClientOptions
}

// Connect builds a client-secret credential for sp. No token is requested
// until the first management call.
func Connect(sp credentials.ServicePrincipal) (*Connection, error) {
	cfg, err := CloudConfiguration(sp.CloudEnvironment)
	if err != nil {
		return nil, err
	}

	clientOpts := azcore.ClientOptions{Cloud: cfg}
	clientOpts.Telemetry.ApplicationID = "edgefreight/" + version.Version

	cred, err := azidentity.NewClientSecretCredential(sp.TenantID, sp.ClientID, sp.ClientSecret,
		&azidentity.ClientSecretCredentialOptions{ClientOptions: clientOpts})
	if err != nil {
		return nil, fmt.Errorf("creating credential for %s: %w", sp.ClientID, err)
	}

	return &Connection{
		SubscriptionID: sp.SubscriptionID,
		Credential:     cred,
		Options:        &arm.ClientOptions{ClientOptions: clientOpts},
	}, nil
}

// statusCode reports the HTTP status of a management-plane failure, or 0
// when err did not come from a response.
func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}
