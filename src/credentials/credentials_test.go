package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var prodSP = Entry{
	Kind:           KindServicePrincipal,
	SubscriptionID: "sub-1",
	ClientID:       "client-1",
	ClientSecret:   "s3cr3t",
	TenantID:       "tenant-1",
}

func TestServicePrincipalIsDeterministicAndPure(t *testing.T) {
	store := NewMemoryStore(map[string]Entry{"sp-prod": prodSP})
	r := NewResolver(store)
	ctx := context.Background()

	first, err := r.ServicePrincipal(ctx, "sp-prod")
	require.NoError(t, err)
	second, err := r.ServicePrincipal(ctx, "sp-prod")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, DefaultCloudEnvironment, first.CloudEnvironment)

	// mutating the result must not leak into the store
	first.ClientSecret = "changed"
	again, err := r.ServicePrincipal(ctx, "sp-prod")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", again.ClientSecret)

	stored, err := store.Lookup(ctx, "sp-prod")
	require.NoError(t, err)
	assert.Empty(t, stored.CloudEnvironment, "resolution must not write defaults back")
}

func TestServicePrincipalNotFound(t *testing.T) {
	r := NewResolver(NewMemoryStore(nil))

	_, err := r.ServicePrincipal(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	_, err = r.ServicePrincipal(context.Background(), "")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestServicePrincipalWrongKindOrIncomplete(t *testing.T) {
	r := NewResolver(NewMemoryStore(map[string]Entry{
		"login":   {Kind: KindUsernamePassword, Username: "u", Password: "p"},
		"partial": {Kind: KindServicePrincipal, ClientID: "c"},
	}))

	_, err := r.ServicePrincipal(context.Background(), "login")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = r.ServicePrincipal(context.Background(), "partial")
	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.Contains(t, err.Error(), "client_secret")
}

func TestServicePrincipalStringRedactsSecret(t *testing.T) {
	r := NewResolver(NewMemoryStore(map[string]Entry{"sp": prodSP}))
	sp, err := r.ServicePrincipal(context.Background(), "sp")
	require.NoError(t, err)

	for _, s := range []string{sp.String(), fmt.Sprintf("%v", sp), fmt.Sprintf("%#v", sp)} {
		assert.NotContains(t, s, "s3cr3t")
	}
}

func TestUsernamePasswordMissingIsNotFatal(t *testing.T) {
	r := NewResolver(NewMemoryStore(map[string]Entry{
		"registry": {Username: "ci", Password: "pw"},
	}))
	ctx := context.Background()

	up, found, err := r.UsernamePassword(ctx, "registry")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ci", up.Username)
	assert.NotContains(t, fmt.Sprintf("%v", up), "pw")

	up, found, err = r.UsernamePassword(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, up.Username)

	_, found, err = r.UsernamePassword(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEnvStore(t *testing.T) {
	store := NewEnvStoreFrom(map[string]string{
		"SP_PROD_SUBSCRIPTION_ID":   "sub",
		"SP_PROD_CLIENT_ID":         "cid",
		"SP_PROD_CLIENT_SECRET":     "sec",
		"SP_PROD_TENANT_ID":         "ten",
		"SP_PROD_CLOUD_ENVIRONMENT": "AzureChinaCloud",
		"MY_REGISTRY_USER":          "bob",
		"MY_REGISTRY_PASS":          "hunter2",
	})
	r := NewResolver(store)
	ctx := context.Background()

	sp, err := r.ServicePrincipal(ctx, "sp-prod")
	require.NoError(t, err)
	assert.Equal(t, "cid", sp.ClientID)
	assert.Equal(t, "AzureChinaCloud", sp.CloudEnvironment)

	up, found, err := r.UsernamePassword(ctx, "my.registry")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "bob", up.Username)
	assert.Equal(t, "hunter2", up.Password)

	_, err = store.Lookup(ctx, "nobody")
	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "env", se.Store)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestFileStoreYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "vault.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
credentials:
  sp-prod:
    kind: azure-service-principal
    subscription_id: sub
    client_id: cid
    client_secret: sec
    tenant_id: ten
`), 0o600))

	tomlPath := filepath.Join(dir, "vault.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[credentials.registry]
kind = "username-password"
username = "ci"
password = "pw"
`), 0o600))

	ys, err := NewFileStore(yamlPath)
	require.NoError(t, err)
	sp, err := NewResolver(ys).ServicePrincipal(context.Background(), "sp-prod")
	require.NoError(t, err)
	assert.Equal(t, "sub", sp.SubscriptionID)

	ts, err := NewFileStore(tomlPath)
	require.NoError(t, err)
	up, found, err := NewResolver(ts).UsernamePassword(context.Background(), "registry")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ci", up.Username)
}

func TestFileStoreMalformedDoesNotEchoContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yml")
	require.NoError(t, os.WriteFile(path, []byte("credentials: [client_secret: topsecret"), 0o600))

	_, err := NewFileStore(path)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecret")
}

type fakeSecretsManager struct {
	secrets map[string]string
	err     error
}

func (f *fakeSecretsManager) GetSecretValue(
	_ context.Context,
	in *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.secrets[aws.ToString(in.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestAWSStore(t *testing.T) {
	client := &fakeSecretsManager{secrets: map[string]string{
		"edge/sp-prod": `{"kind":"azure-service-principal","subscription_id":"sub","client_id":"cid","client_secret":"sec","tenant_id":"ten"}`,
		"edge/garbage": `not json`,
	}}
	store := NewAWSStoreWithClient(client, "edge/")
	r := NewResolver(store)
	ctx := context.Background()

	sp, err := r.ServicePrincipal(ctx, "sp-prod")
	require.NoError(t, err)
	assert.Equal(t, "cid", sp.ClientID)

	_, err = r.ServicePrincipal(ctx, "absent")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	_, err = r.ServicePrincipal(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	client.err = errors.New("throttled")
	_, err = r.ServicePrincipal(ctx, "sp-prod")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialNotFound)
}
