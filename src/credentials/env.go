package credentials

import (
	"context"
	"os"
)

// EnvStore resolves credentials from environment variables named after the
// reference. For reference "sp-prod" the prefix is SP_PROD:
//
//	SP_PROD_SUBSCRIPTION_ID, SP_PROD_CLIENT_ID, SP_PROD_CLIENT_SECRET,
//	SP_PROD_TENANT_ID, SP_PROD_CLOUD_ENVIRONMENT   (service principal)
//	SP_PROD_USER, SP_PROD_PASS                      (username/password)
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore reads from the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// NewEnvStoreFrom reads from a fixed map.
func NewEnvStoreFrom(env map[string]string) *EnvStore {
	return &EnvStore{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
}

// Name implements Store.
func (s *EnvStore) Name() string { return "env" }

// Lookup implements Store.
func (s *EnvStore) Lookup(_ context.Context, id string) (*Entry, error) {
	prefix := envPrefix(id)
	get := func(suffix string) string {
		v, _ := s.lookup(prefix + "_" + suffix)
		return v
	}

	if clientID := get("CLIENT_ID"); clientID != "" {
		return &Entry{
			Kind:             KindServicePrincipal,
			SubscriptionID:   get("SUBSCRIPTION_ID"),
			ClientID:         clientID,
			ClientSecret:     get("CLIENT_SECRET"),
			TenantID:         get("TENANT_ID"),
			CloudEnvironment: get("CLOUD_ENVIRONMENT"),
		}, nil
	}

	user, userOK := s.lookup(prefix + "_USER")
	pass, passOK := s.lookup(prefix + "_PASS")
	if userOK || passOK {
		return &Entry{Kind: KindUsernamePassword, Username: user, Password: pass}, nil
	}

	return nil, &StoreError{Store: s.Name(), ID: id, Err: ErrCredentialNotFound}
}
