// Package credentials resolves opaque identity references against the
// host's credential store. Two kinds of record exist: Azure service
// principals (for the management plane and the hub) and username/password
// pairs (for self-hosted registries).
//
// Resolution is a pure lookup. Resolved values are returned by copy, are
// never written to disk by this package, and redact themselves when printed.
package credentials

import (
	"context"
	"fmt"
)

// Kind identifies the shape of a stored credential.
type Kind string

const (
	KindServicePrincipal Kind = "azure-service-principal"
	KindUsernamePassword Kind = "username-password"
)

// DefaultCloudEnvironment is used when a service principal does not name one.
const DefaultCloudEnvironment = "AzureCloud"

// Entry is one record in a credential store.
type Entry struct {
	Kind Kind `yaml:"kind" toml:"kind" json:"kind"`

	SubscriptionID   string `yaml:"subscription_id" toml:"subscription_id" json:"subscription_id"`
	ClientID         string `yaml:"client_id" toml:"client_id" json:"client_id"`
	ClientSecret     string `yaml:"client_secret" toml:"client_secret" json:"client_secret"`
	TenantID         string `yaml:"tenant_id" toml:"tenant_id" json:"tenant_id"`
	CloudEnvironment string `yaml:"cloud_environment" toml:"cloud_environment" json:"cloud_environment"`

	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// kind returns the declared kind, inferring it from the populated fields
// when the record does not say.
func (e *Entry) kind() Kind {
	if e.Kind != "" {
		return e.Kind
	}
	if e.ClientID != "" {
		return KindServicePrincipal
	}
	if e.Username != "" || e.Password != "" {
		return KindUsernamePassword
	}
	return ""
}

// Store is the external credential store. Lookup returns an error wrapping
// ErrCredentialNotFound when id is unknown. Implementations must return a
// copy the caller may keep.
type Store interface {
	Name() string
	Lookup(ctx context.Context, id string) (*Entry, error)
}

// ServicePrincipal is an Azure identity resolved from a reference.
type ServicePrincipal struct {
	SubscriptionID   string
	ClientID         string
	ClientSecret     string
	TenantID         string
	CloudEnvironment string
}

// String identifies the principal without its secret.
func (sp ServicePrincipal) String() string {
	return fmt.Sprintf("service principal %s (tenant %s, subscription %s, %s)",
		sp.ClientID, sp.TenantID, sp.SubscriptionID, sp.CloudEnvironment)
}

// GoString keeps %#v from printing the secret.
func (sp ServicePrincipal) GoString() string {
	return sp.String()
}

// UsernamePassword is a registry login.
type UsernamePassword struct {
	Username string
	Password string
}

// String identifies the login without its password.
func (up UsernamePassword) String() string {
	return fmt.Sprintf("username %q, password [redacted]", up.Username)
}

// GoString keeps %#v from printing the password.
func (up UsernamePassword) GoString() string {
	return up.String()
}

// Resolver turns identity references into credentials.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// StoreName returns the backing store's name.
func (r *Resolver) StoreName() string {
	return r.store.Name()
}

// ServicePrincipal resolves ref to an Azure service principal.
func (r *Resolver) ServicePrincipal(ctx context.Context, ref string) (ServicePrincipal, error) {
	if ref == "" {
		return ServicePrincipal{}, fmt.Errorf("azure credentials reference is empty: %w", ErrCredentialNotFound)
	}

	entry, err := r.store.Lookup(ctx, ref)
	if err != nil {
		return ServicePrincipal{}, err
	}

	if k := entry.kind(); k != KindServicePrincipal {
		return ServicePrincipal{}, fmt.Errorf("credential %q is %q, not a service principal: %w", ref, k, ErrInvalidCredential)
	}

	var missing []string
	for field, v := range map[string]string{
		"subscription_id": entry.SubscriptionID,
		"client_id":       entry.ClientID,
		"client_secret":   entry.ClientSecret,
		"tenant_id":       entry.TenantID,
	} {
		if v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return ServicePrincipal{}, fmt.Errorf("credential %q is missing %v: %w", ref, sortedCopy(missing), ErrInvalidCredential)
	}

	cloud := entry.CloudEnvironment
	if cloud == "" {
		cloud = DefaultCloudEnvironment
	}

	return ServicePrincipal{
		SubscriptionID:   entry.SubscriptionID,
		ClientID:         entry.ClientID,
		ClientSecret:     entry.ClientSecret,
		TenantID:         entry.TenantID,
		CloudEnvironment: cloud,
	}, nil
}

// UsernamePassword resolves ref to a registry login. An empty ref or an
// unknown id is not an error: found is false and the login is empty, which
// is how anonymous registries are expressed.
func (r *Resolver) UsernamePassword(ctx context.Context, ref string) (up UsernamePassword, found bool, err error) {
	if ref == "" {
		return UsernamePassword{}, false, nil
	}

	entry, err := r.store.Lookup(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			return UsernamePassword{}, false, nil
		}
		return UsernamePassword{}, false, err
	}

	if k := entry.kind(); k != KindUsernamePassword {
		return UsernamePassword{}, false, fmt.Errorf("credential %q is %q, not a username/password: %w", ref, k, ErrInvalidCredential)
	}

	return UsernamePassword{Username: entry.Username, Password: entry.Password}, true, nil
}
