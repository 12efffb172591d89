// Package registry resolves the container registry endpoint and login the
// push stage hands to iotedgedev.
//
// Two registry kinds are supported. An Azure Container Registry is looked
// up through the management plane and its admin key is used as the
// password. Any other registry ("common") is described by a URL plus an
// optional stored username/password credential.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/sofmeright/edgefreight/src/credentials"
)

// Mode selects how the registry credential is obtained.
type Mode string

const (
	ModeCloud      Mode = "acr"
	ModeSelfHosted Mode = "common"
)

var (
	// ErrRegistryNotFound means the named registry does not exist in the
	// resource group.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrCredentialRetrievalFailed means the registry exists but its access
	// key could not be read, usually for lack of permission.
	ErrCredentialRetrievalFailed = errors.New("registry credential retrieval failed")
)

// Credential is a registry endpoint and login.
type Credential struct {
	LoginServer string
	Username    string
	Password    string
}

// String identifies the credential without its password.
func (c Credential) String() string {
	return fmt.Sprintf("%s (username %q, password [redacted])", c.LoginServer, c.Username)
}

// GoString keeps %#v from printing the password.
func (c Credential) GoString() string {
	return c.String()
}

// Env returns the child-process variables iotedgedev reads the login from.
// Empty values are omitted so an anonymous registry stays anonymous.
func (c Credential) Env() map[string]string {
	env := map[string]string{}
	if c.Username != "" {
		env["CONTAINER_REGISTRY_USERNAME"] = c.Username
	}
	if c.Password != "" {
		env["CONTAINER_REGISTRY_PASSWORD"] = c.Password
	}
	return env
}

// Secrets lists the values that must be scrubbed from job output.
func (c Credential) Secrets() []string {
	if c.Password == "" {
		return nil
	}
	return []string{c.Password}
}

// Cloud looks up managed registries through the management plane.
type Cloud interface {
	// LoginServer returns the registry's login host, e.g. "acr1.azurecr.io".
	LoginServer(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup, name string) (string, error)

	// AdminCredentials returns the registry's admin username and primary key.
	AdminCredentials(ctx context.Context, sp credentials.ServicePrincipal, resourceGroup, name string) (username, password string, err error)
}

// Request describes which registry credential to fetch.
type Request struct {
	Mode Mode

	// Cloud mode.
	CredentialsID string
	ResourceGroup string
	RegistryName  string

	// Self-hosted mode.
	RegistryURL           string
	RegistryCredentialsID string
}

// Fetcher resolves registry credentials for the push stage.
type Fetcher struct {
	Resolver *credentials.Resolver
	Cloud    Cloud
}

// NewFetcher creates a Fetcher.
func NewFetcher(resolver *credentials.Resolver, cloud Cloud) *Fetcher {
	return &Fetcher{Resolver: resolver, Cloud: cloud}
}

// Fetch resolves the registry credential described by req.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Credential, error) {
	switch req.Mode {
	case ModeCloud:
		return f.fetchCloud(ctx, req)
	case ModeSelfHosted:
		return f.fetchSelfHosted(ctx, req)
	default:
		return Credential{}, fmt.Errorf("registry: unsupported mode %q (valid: %s, %s)", req.Mode, ModeCloud, ModeSelfHosted)
	}
}

func (f *Fetcher) fetchCloud(ctx context.Context, req Request) (Credential, error) {
	if req.ResourceGroup == "" || req.RegistryName == "" {
		return Credential{}, fmt.Errorf("registry: resource group and registry name are required for %s", ModeCloud)
	}
	if err := ValidateRegistryName(req.RegistryName); err != nil {
		return Credential{}, err
	}
	if f.Cloud == nil {
		return Credential{}, fmt.Errorf("registry: no management client configured for %s", ModeCloud)
	}

	sp, err := f.Resolver.ServicePrincipal(ctx, req.CredentialsID)
	if err != nil {
		return Credential{}, err
	}

	server, err := f.Cloud.LoginServer(ctx, sp, req.ResourceGroup, req.RegistryName)
	if err != nil {
		return Credential{}, lookupError(err, req)
	}

	user, pass, err := f.Cloud.AdminCredentials(ctx, sp, req.ResourceGroup, req.RegistryName)
	if err != nil {
		if errors.Is(err, ErrCredentialRetrievalFailed) {
			return Credential{}, fmt.Errorf("reading access key of %s: %w", req.RegistryName, err)
		}
		return Credential{}, fmt.Errorf("reading access key of %s: %w: %w", req.RegistryName, ErrCredentialRetrievalFailed, err)
	}

	return Credential{LoginServer: server, Username: user, Password: pass}, nil
}

func lookupError(err error, req Request) error {
	if errors.Is(err, ErrRegistryNotFound) {
		return fmt.Errorf("registry %q in resource group %q: %w", req.RegistryName, req.ResourceGroup, err)
	}
	return fmt.Errorf("looking up registry %q in resource group %q: %w", req.RegistryName, req.ResourceGroup, err)
}

// fetchSelfHosted never fails on a missing login: anonymous registries are
// legitimate, and a registry that needs one rejects the push itself.
func (f *Fetcher) fetchSelfHosted(ctx context.Context, req Request) (Credential, error) {
	if err := ValidateRegistryURL(req.RegistryURL); err != nil {
		return Credential{}, err
	}

	cred := Credential{LoginServer: LoginServer(req.RegistryURL)}
	if f.Resolver == nil {
		return cred, nil
	}

	up, found, err := f.Resolver.UsernamePassword(ctx, req.RegistryCredentialsID)
	if err != nil {
		return Credential{}, err
	}
	if found {
		cred.Username = up.Username
		cred.Password = up.Password
	}
	return cred, nil
}
