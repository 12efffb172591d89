package azure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/process"
)

const secretFileName = "sp-secret"

// Session is an Azure CLI login private to one stage. Its token cache
// lives in a temporary AZURE_CONFIG_DIR, so concurrent jobs on the same
// runner never share or clobber a login.
type Session struct {
	AzBinary string
	Dir      string
	Runner   process.Runner
	Logger   log.Logger

	secret string
}

// Login creates a session directory and signs the service principal in.
// The caller must Close the session.
func Login(ctx context.Context, runner process.Runner, azBinary string, sp credentials.ServicePrincipal, logger log.Logger) (*Session, error) {
	if azBinary == "" {
		azBinary = "az"
	}
	if _, err := CloudConfiguration(sp.CloudEnvironment); err != nil {
		return nil, err
	}
	cloudName := sp.CloudEnvironment
	if cloudName == "" {
		cloudName = CloudPublic
	}

	dir, err := os.MkdirTemp("", "edgefreight-az-")
	if err != nil {
		return nil, fmt.Errorf("creating Azure CLI config dir: %w", err)
	}

	s := &Session{
		AzBinary: azBinary,
		Dir:      dir,
		Runner:   runner,
		Logger:   logging.OrNop(logger),
		secret:   sp.ClientSecret,
	}

	// az expands an @path argument to the file's content, so the secret
	// never appears in the process argv.
	secretFile := filepath.Join(dir, secretFileName)
	if err := os.WriteFile(secretFile, []byte(sp.ClientSecret), 0o600); err != nil {
		s.Close()
		return nil, fmt.Errorf("writing service principal secret: %w", err)
	}

	steps := [][]string{
		{"cloud", "set", "--name", cloudName},
		{"login", "--service-principal",
			"--username", sp.ClientID,
			"--password", "@" + secretFile,
			"--tenant", sp.TenantID,
			"--output", "none"},
		{"account", "set", "--subscription", sp.SubscriptionID},
	}
	for i, args := range steps {
		_, err := s.Run(ctx, args...)
		if i == 1 {
			if rmErr := os.Remove(secretFile); rmErr != nil {
				level.Warn(s.Logger).Log("msg", "removing service principal secret file", "err", rmErr)
			}
		}
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("signing in to Azure CLI: %w", err)
		}
	}

	level.Debug(s.Logger).Log("msg", "azure cli session ready", "cloud", cloudName, "client", sp.ClientID)
	return s, nil
}

// Env returns the variables that bind an az invocation to this session.
func (s *Session) Env() map[string]string {
	return map[string]string{
		"AZURE_CONFIG_DIR":             s.Dir,
		"AZURE_CORE_COLLECT_TELEMETRY": "false",
		"AZURE_CORE_NO_COLOR":          "true",
	}
}

// Command builds an az invocation bound to this session. Cloud error
// markers in the output are always classified.
func (s *Session) Command(args ...string) process.Command {
	return process.Command{
		Name:               s.AzBinary,
		Args:               args,
		Env:                s.Env(),
		CaptureCloudErrors: true,
		Redact:             []string{s.secret},
	}
}

// Run executes an az command in this session.
func (s *Session) Run(ctx context.Context, args ...string) (*process.Result, error) {
	return s.Runner.Run(ctx, s.Command(args...))
}

// Close discards the session and its token cache.
func (s *Session) Close() error {
	if s.Dir == "" {
		return nil
	}
	err := os.RemoveAll(s.Dir)
	if err != nil {
		level.Warn(s.Logger).Log("msg", "removing azure cli config dir", "dir", s.Dir, "err", err)
	}
	s.Dir = ""
	return err
}
