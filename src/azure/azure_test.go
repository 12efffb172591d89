package azure

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/process"
	"github.com/sofmeright/edgefreight/src/registry"
)

var testSP = credentials.ServicePrincipal{
	SubscriptionID: "sub-1",
	ClientID:       "client-1",
	ClientSecret:   "s3cr3t",
	TenantID:       "tenant-1",
}

func TestCloudConfiguration(t *testing.T) {
	c, err := CloudConfiguration("")
	require.NoError(t, err)
	assert.Equal(t, cloud.AzurePublic.ActiveDirectoryAuthorityHost, c.ActiveDirectoryAuthorityHost)

	c, err = CloudConfiguration(CloudChina)
	require.NoError(t, err)
	assert.Equal(t, cloud.AzureChina.ActiveDirectoryAuthorityHost, c.ActiveDirectoryAuthorityHost)

	_, err = CloudConfiguration("AzureGermanCloud")
	assert.Error(t, err)
}

func TestHubURL(t *testing.T) {
	assert.Equal(t, "hub1.azure-devices.net", HubURL("hub1", CloudPublic))
	assert.Equal(t, "hub1.azure-devices.net", HubURL("hub1", ""))
	assert.Equal(t, "hub1.azure-devices.cn", HubURL("hub1", CloudChina))
	assert.Empty(t, HubURL("", CloudPublic))
}

type fakeRegistries struct {
	getErr   error
	credsErr error
	server   string
	password []*armcontainerregistry.RegistryPassword
}

func (f *fakeRegistries) Get(_ context.Context, _, _ string, _ *armcontainerregistry.RegistriesClientGetOptions) (armcontainerregistry.RegistriesClientGetResponse, error) {
	var resp armcontainerregistry.RegistriesClientGetResponse
	if f.getErr != nil {
		return resp, f.getErr
	}
	resp.Properties = &armcontainerregistry.RegistryProperties{LoginServer: to.Ptr(f.server)}
	return resp, nil
}

func (f *fakeRegistries) ListCredentials(_ context.Context, _, name string, _ *armcontainerregistry.RegistriesClientListCredentialsOptions) (armcontainerregistry.RegistriesClientListCredentialsResponse, error) {
	var resp armcontainerregistry.RegistriesClientListCredentialsResponse
	if f.credsErr != nil {
		return resp, f.credsErr
	}
	resp.Username = to.Ptr(name)
	resp.Passwords = f.password
	return resp, nil
}

func registriesWith(f *fakeRegistries) *Registries {
	return &Registries{NewClient: func(*Connection) (RegistriesAPI, error) { return f, nil }}
}

func TestRegistriesLoginServer(t *testing.T) {
	r := registriesWith(&fakeRegistries{server: "acr1.azurecr.io"})
	server, err := r.LoginServer(context.Background(), testSP, "rg1", "acr1")
	require.NoError(t, err)
	assert.Equal(t, "acr1.azurecr.io", server)
}

func TestRegistriesNotFound(t *testing.T) {
	r := registriesWith(&fakeRegistries{getErr: &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}})
	_, err := r.LoginServer(context.Background(), testSP, "rg1", "acr1")
	assert.ErrorIs(t, err, registry.ErrRegistryNotFound)

	r = registriesWith(&fakeRegistries{getErr: &azcore.ResponseError{StatusCode: http.StatusForbidden}})
	_, err = r.LoginServer(context.Background(), testSP, "rg1", "acr1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrRegistryNotFound)
}

func TestRegistriesAdminCredentials(t *testing.T) {
	r := registriesWith(&fakeRegistries{password: []*armcontainerregistry.RegistryPassword{
		{Name: to.Ptr(armcontainerregistry.PasswordNamePassword2), Value: to.Ptr("secondary")},
		{Name: to.Ptr(armcontainerregistry.PasswordNamePassword), Value: to.Ptr("primary")},
	}})
	user, pass, err := r.AdminCredentials(context.Background(), testSP, "rg1", "acr1")
	require.NoError(t, err)
	assert.Equal(t, "acr1", user)
	assert.Equal(t, "primary", pass)
}

func TestRegistriesAdminCredentialsRejected(t *testing.T) {
	r := registriesWith(&fakeRegistries{credsErr: &azcore.ResponseError{StatusCode: http.StatusForbidden}})
	_, _, err := r.AdminCredentials(context.Background(), testSP, "rg1", "acr1")
	assert.ErrorIs(t, err, registry.ErrCredentialRetrievalFailed)

	r = registriesWith(&fakeRegistries{})
	_, _, err = r.AdminCredentials(context.Background(), testSP, "rg1", "acr1")
	assert.ErrorIs(t, err, registry.ErrCredentialRetrievalFailed)
}

type scriptedRunner struct {
	calls []process.Command
	fail  map[string]error // keyed by first arg
	lines []string
	onRun func(process.Command)
}

func (s *scriptedRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	s.calls = append(s.calls, cmd)
	if s.onRun != nil {
		s.onRun(cmd)
	}
	if err := s.fail[cmd.Args[0]]; err != nil {
		return &process.Result{ExitCode: 1}, err
	}
	return &process.Result{Lines: s.lines}, nil
}

func TestLoginSequenceAndClose(t *testing.T) {
	r := &scriptedRunner{}
	s, err := Login(context.Background(), r, "", testSP, nil)
	require.NoError(t, err)

	require.Len(t, r.calls, 3)
	assert.Equal(t, []string{"cloud", "set", "--name", CloudPublic}, r.calls[0].Args)
	assert.Equal(t, "login", r.calls[1].Args[0])
	assert.Equal(t, []string{"account", "set", "--subscription", "sub-1"}, r.calls[2].Args)
	for _, c := range r.calls {
		assert.Equal(t, "az", c.Name)
		assert.True(t, c.CaptureCloudErrors)
		assert.Equal(t, s.Dir, c.Env["AZURE_CONFIG_DIR"])
		assert.Contains(t, c.Redact, "s3cr3t")
		assert.NotContains(t, c.Line(), "s3cr3t")
	}

	dir := s.Dir
	_, err = os.Stat(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLoginFailureCleansUp(t *testing.T) {
	r := &scriptedRunner{fail: map[string]error{"login": &process.CloudError{Message: "AADSTS7000215: Invalid client secret"}}}
	_, err := Login(context.Background(), r, "az", testSP, nil)
	require.Error(t, err)

	var ce *process.CloudError
	require.True(t, errors.As(err, &ce))

	dir := r.calls[0].Env["AZURE_CONFIG_DIR"]
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoginKeepsSecretOutOfArgv(t *testing.T) {
	var seen string
	r := &scriptedRunner{onRun: func(cmd process.Command) {
		if cmd.Args[0] != "login" {
			return
		}
		for i, a := range cmd.Args {
			if a == "--password" {
				data, err := os.ReadFile(strings.TrimPrefix(cmd.Args[i+1], "@"))
				require.NoError(t, err)
				seen = string(data)
			}
		}
	}}
	s, err := Login(context.Background(), r, "az", testSP, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "s3cr3t", seen)
	for _, c := range r.calls {
		assert.NotContains(t, c.Args, "s3cr3t")
	}
	secretFile := filepath.Join(s.Dir, secretFileName)
	assert.Contains(t, r.calls[1].Args, "@"+secretFile)
	_, statErr := os.Stat(secretFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExplorerDevices(t *testing.T) {
	r := &scriptedRunner{lines: []string{"device-b", "", "device-a"}}
	e := &Explorer{SP: testSP, Runner: r, AzBinary: "az"}

	devices, err := e.Devices(context.Background(), "hub1")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-a", "device-b"}, devices)

	last := r.calls[len(r.calls)-1]
	assert.Equal(t, []string{"iot", "hub", "device-identity", "list", "--hub-name", "hub1", "--query", "[].deviceId", "--output", "tsv"}, last.Args)
	assert.True(t, last.Quiet)
}
