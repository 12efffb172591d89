package azure

import (
	"context"
	"fmt"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"

	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/registry"
)

// RegistriesAPI is the part of the container registry client edgefreight
// uses.
type RegistriesAPI interface {
	Get(ctx context.Context, resourceGroupName, registryName string,
		options *armcontainerregistry.RegistriesClientGetOptions) (armcontainerregistry.RegistriesClientGetResponse, error)
	ListCredentials(ctx context.Context, resourceGroupName, registryName string,
		options *armcontainerregistry.RegistriesClientListCredentialsOptions) (armcontainerregistry.RegistriesClientListCredentialsResponse, error)
}

// RegistriesFactory creates a registries client for a connection.
type RegistriesFactory func(conn *Connection) (RegistriesAPI, error)

// Registries looks up Azure Container Registries. It implements
// registry.Cloud.
type Registries struct {
	NewClient RegistriesFactory
}

// NewRegistries creates a Registries backed by the ARM SDK.
func NewRegistries() *Registries {
	return &Registries{NewClient: newRegistriesClient}
}

func newRegistriesClient(conn *Connection) (RegistriesAPI, error) {
	return armcontainerregistry.NewRegistriesClient(conn.SubscriptionID, conn.Credential, conn.Options)
}

func (r *Registries) client(sp credentials.ServicePrincipal) (RegistriesAPI, error) {
	conn, err := Connect(sp)
	if err != nil {
		return nil, err
	}
	factory := r.NewClient
	if factory == nil {
		factory = newRegistriesClient
	}
	c, err := factory(conn)
	if err != nil {
		return nil, fmt.Errorf("creating registries client: %w", err)
	}
	return c, nil
}

// LoginServer implements registry.Cloud.
func (r *Registries) LoginServer(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup, name string) (string, error) {
	c, err := r.client(sp)
	if err != nil {
		return "", err
	}

	resp, err := c.Get(ctx, resourceGroup, name, nil)
	if err != nil {
		if isNotFound(err) {
			return "", registry.ErrRegistryNotFound
		}
		return "", err
	}
	if resp.Properties == nil || resp.Properties.LoginServer == nil || *resp.Properties.LoginServer == "" {
		return "", fmt.Errorf("registry %q has no login server", name)
	}
	return *resp.Properties.LoginServer, nil
}

// AdminCredentials implements registry.Cloud. The primary key is used; the
// registry must have its admin user enabled.
func (r *Registries) AdminCredentials(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup, name string) (string, string, error) {
	c, err := r.client(sp)
	if err != nil {
		return "", "", err
	}

	resp, err := c.ListCredentials(ctx, resourceGroup, name, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", registry.ErrCredentialRetrievalFailed, err)
	}

	var username string
	if resp.Username != nil {
		username = *resp.Username
	}
	for _, p := range resp.Passwords {
		if p == nil || p.Name == nil || p.Value == nil {
			continue
		}
		if *p.Name == armcontainerregistry.PasswordNamePassword {
			return username, *p.Value, nil
		}
	}
	return "", "", fmt.Errorf("%w: no primary key returned for %q (is the admin user enabled?)",
		registry.ErrCredentialRetrievalFailed, name)
}

// List returns the registry names in a resource group, sorted.
func (r *Registries) List(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup string) ([]string, error) {
	conn, err := Connect(sp)
	if err != nil {
		return nil, err
	}
	client, err := armcontainerregistry.NewRegistriesClient(conn.SubscriptionID, conn.Credential, conn.Options)
	if err != nil {
		return nil, fmt.Errorf("creating registries client: %w", err)
	}

	var names []string
	pager := client.NewListByResourceGroupPager(resourceGroup, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing registries in %s: %w", resourceGroup, err)
		}
		for _, reg := range page.Value {
			if reg != nil && reg.Name != nil {
				names = append(names, *reg.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
