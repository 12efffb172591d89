package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/edgefreight/src/credentials"
)

type fakeCloud struct {
	servers map[string]string // resourceGroup/name -> login server
	keyErr  error
	lookups int
}

func (f *fakeCloud) LoginServer(_ context.Context, _ credentials.ServicePrincipal, rg, name string) (string, error) {
	f.lookups++
	s, ok := f.servers[rg+"/"+name]
	if !ok {
		return "", ErrRegistryNotFound
	}
	return s, nil
}

func (f *fakeCloud) AdminCredentials(_ context.Context, _ credentials.ServicePrincipal, _, name string) (string, string, error) {
	if f.keyErr != nil {
		return "", "", f.keyErr
	}
	return name, "primary-key", nil
}

func testResolver() *credentials.Resolver {
	return credentials.NewResolver(credentials.NewMemoryStore(map[string]credentials.Entry{
		"sp": {
			Kind:           credentials.KindServicePrincipal,
			SubscriptionID: "sub", ClientID: "cid", ClientSecret: "sec", TenantID: "ten",
		},
		"harbor-login": {Username: "robot", Password: "robot-pw"},
	}))
}

func TestFetchCloud(t *testing.T) {
	cloud := &fakeCloud{servers: map[string]string{"rg1/acr1": "acr1.azurecr.io"}}
	f := NewFetcher(testResolver(), cloud)

	cred, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "sp", ResourceGroup: "rg1", RegistryName: "acr1"})
	require.NoError(t, err)
	assert.Equal(t, "acr1.azurecr.io", cred.LoginServer)
	assert.Equal(t, "acr1", cred.Username)
	assert.Equal(t, "primary-key", cred.Password)
	assert.NotContains(t, fmt.Sprintf("%v %#v", cred, cred), "primary-key")
}

func TestFetchCloudRegistryNotFound(t *testing.T) {
	f := NewFetcher(testResolver(), &fakeCloud{})

	_, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "sp", ResourceGroup: "rg1", RegistryName: "missing1"})
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestFetchCloudKeyRejected(t *testing.T) {
	cloud := &fakeCloud{
		servers: map[string]string{"rg1/acr1": "acr1.azurecr.io"},
		keyErr:  errors.New("AuthorizationFailed"),
	}
	f := NewFetcher(testResolver(), cloud)

	_, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "sp", ResourceGroup: "rg1", RegistryName: "acr1"})
	require.ErrorIs(t, err, ErrCredentialRetrievalFailed)
	assert.Contains(t, err.Error(), "AuthorizationFailed")
}

func TestFetchCloudUnknownIdentity(t *testing.T) {
	cloud := &fakeCloud{servers: map[string]string{"rg1/acr1": "acr1.azurecr.io"}}
	f := NewFetcher(testResolver(), cloud)

	_, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "nope", ResourceGroup: "rg1", RegistryName: "acr1"})
	assert.ErrorIs(t, err, credentials.ErrCredentialNotFound)
	assert.Zero(t, cloud.lookups)
}

func TestFetchCloudValidatesName(t *testing.T) {
	f := NewFetcher(testResolver(), &fakeCloud{})

	_, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "sp", ResourceGroup: "rg1", RegistryName: "a-b"})
	assert.Error(t, err)
}

func TestValidateRegistryName(t *testing.T) {
	for _, name := range []string{"acr1", "a", "Registry2024"} {
		assert.NoError(t, ValidateRegistryName(name), name)
	}
	for _, name := range []string{"", "a-b", "my.registry", strings.Repeat("a", 51)} {
		assert.Error(t, ValidateRegistryName(name), name)
	}
}

func TestFetchCloudShortNameReachesLookup(t *testing.T) {
	f := NewFetcher(testResolver(), &fakeCloud{})

	_, err := f.Fetch(context.Background(), Request{Mode: ModeCloud, CredentialsID: "sp", ResourceGroup: "rg1", RegistryName: "acr"})
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestFetchSelfHosted(t *testing.T) {
	f := NewFetcher(testResolver(), nil)

	cred, err := f.Fetch(context.Background(), Request{
		Mode:                  ModeSelfHosted,
		RegistryURL:           "https://harbor.example.com/",
		RegistryCredentialsID: "harbor-login",
	})
	require.NoError(t, err)
	assert.Equal(t, "harbor.example.com", cred.LoginServer)
	assert.Equal(t, "robot", cred.Username)
	assert.Equal(t, map[string]string{
		"CONTAINER_REGISTRY_USERNAME": "robot",
		"CONTAINER_REGISTRY_PASSWORD": "robot-pw",
	}, cred.Env())
	assert.Equal(t, []string{"robot-pw"}, cred.Secrets())
}

func TestFetchSelfHostedMissingLoginIsNotFatal(t *testing.T) {
	f := NewFetcher(testResolver(), nil)

	cred, err := f.Fetch(context.Background(), Request{
		Mode:                  ModeSelfHosted,
		RegistryURL:           "localhost:5000",
		RegistryCredentialsID: "unknown",
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", cred.LoginServer)
	assert.Empty(t, cred.Username)
	assert.Empty(t, cred.Env())
	assert.Nil(t, cred.Secrets())
}

func TestFetchUnknownMode(t *testing.T) {
	_, err := NewFetcher(testResolver(), nil).Fetch(context.Background(), Request{Mode: "quay"})
	assert.Error(t, err)
}

func TestValidateRegistryURL(t *testing.T) {
	assert.NoError(t, ValidateRegistryURL("registry.example.com:5000/edge"))
	assert.NoError(t, ValidateRegistryURL("https://registry.example.com"))
	assert.Error(t, ValidateRegistryURL(""))
	assert.Error(t, ValidateRegistryURL("ftp://registry.example.com"))
	assert.Error(t, ValidateRegistryURL("has space.io"))
	assert.Error(t, ValidateRegistryURL("https:///path"))
}
