package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log/level"

	"github.com/sofmeright/edgefreight/src/azure"
	"github.com/sofmeright/edgefreight/src/build"
	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/deploy"
	"github.com/sofmeright/edgefreight/src/envfile"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/registry"
)

// Build compiles the module images.
func (r *Runner) Build(ctx context.Context, cfg *config.Config) (Outcome, error) {
	return r.run(ctx, StageBuild, func(ctx context.Context, rep *report) error {
		if err := cfg.ValidateBuild(); err != nil {
			return err
		}

		tag, err := containerTag(cfg)
		if err != nil {
			return err
		}
		if err := r.writeDescriptor(cfg, envfile.Descriptor{ContainerTag: tag}); err != nil {
			return err
		}

		rep.add("manifest", cfg.Build.Manifest)
		rep.add("platform", cfg.BuildPlatform())
		rep.add("tag", tag)

		if err := r.preflight(ctx, cfg, rep); err != nil {
			return err
		}

		res, err := r.tool(cfg).Build(ctx, build.Step{
			Manifest: cfg.ResolvePath(cfg.Build.Manifest),
			Platform: cfg.BuildPlatform(),
			Dir:      cfg.WorkspaceDir(),
		})
		if res != nil {
			rep.add("images", strings.Join(res.Images(), ", "))
		}
		return err
	})
}

// Push publishes the built module images to the configured registry.
func (r *Runner) Push(ctx context.Context, cfg *config.Config) (Outcome, error) {
	return r.run(ctx, StagePush, func(ctx context.Context, rep *report) error {
		if err := cfg.ValidatePush(); err != nil {
			return err
		}

		req := registry.Request{
			Mode:                  registry.Mode(cfg.Push.RegistryType),
			CredentialsID:         cfg.Azure.CredentialsID,
			ResourceGroup:         cfg.Azure.ResourceGroup,
			RegistryName:          cfg.Push.ACRName,
			RegistryURL:           cfg.Push.RegistryURL,
			RegistryCredentialsID: cfg.Push.RegistryCredentialsID,
		}
		if req.Mode == registry.ModeCloud {
			sp, err := r.Credentials.ServicePrincipal(ctx, cfg.Azure.CredentialsID)
			if err != nil {
				return err
			}
			rep.subscriptionID = sp.SubscriptionID
		}

		cred, err := registry.NewFetcher(r.Credentials, r.Registries).Fetch(ctx, req)
		if err != nil {
			return err
		}

		tag, err := containerTag(cfg)
		if err != nil {
			return err
		}

		err = r.writeDescriptor(cfg, envfile.Descriptor{
			RegistryServer: cred.LoginServer,
			BypassModules:  cfg.Push.BypassModules,
			ContainerTag:   tag,
		})
		if err != nil {
			return err
		}

		rep.add("registry", cred.LoginServer)
		rep.add("manifest", cfg.Push.Manifest)
		rep.add("platform", cfg.PushPlatform())
		rep.add("bypass", cfg.Push.BypassModules)
		rep.add("tag", tag)

		if err := r.preflight(ctx, cfg, rep); err != nil {
			return err
		}

		res, err := r.tool(cfg).Push(ctx, build.Step{
			Manifest: cfg.ResolvePath(cfg.Push.Manifest),
			Platform: cfg.PushPlatform(),
			Dir:      cfg.WorkspaceDir(),
			Env:      cred.Env(),
			Redact:   cred.Secrets(),
		})
		if res != nil {
			rep.add("images", strings.Join(res.Images(), ", "))
		}
		return err
	})
}

// Deploy replaces the deployment on the hub with the resolved manifest.
func (r *Runner) Deploy(ctx context.Context, cfg *config.Config) (Outcome, error) {
	return r.run(ctx, StageDeploy, func(ctx context.Context, rep *report) error {
		d := cfg.Deploy
		if d.HubName != "" {
			rep.hubURL = azure.HubURL(d.HubName, "")
		}

		if err := cfg.ValidateDeploy(); err != nil {
			return err
		}
		priority, err := config.ValidatePriority(d.Priority)
		if err != nil {
			return err
		}
		target, err := deploy.NewTarget(d.Type, d.DeviceID, d.TargetCondition)
		if err != nil {
			return err
		}

		sp, err := r.Credentials.ServicePrincipal(ctx, cfg.Azure.CredentialsID)
		if err != nil {
			return err
		}
		rep.subscriptionID = sp.SubscriptionID
		rep.hubURL = azure.HubURL(d.HubName, sp.CloudEnvironment)

		err = r.writeDescriptor(cfg, envfile.Descriptor{
			HubName:  d.HubName,
			DeviceID: target.DeviceID(),
		})
		if err != nil {
			return err
		}

		contentPath := cfg.ResolvePath(d.Content)
		desc, err := deploy.LoadDescriptor(contentPath)
		if err != nil {
			return err
		}
		for _, w := range desc.Warnings {
			rep.warn("%s: %s", d.Content, w)
		}
		findings, err := desc.ScanSecrets()
		if err != nil {
			level.Warn(logging.OrNop(r.Logger)).Log("msg", "secret scan unavailable", "err", err)
		}
		for _, w := range findings {
			rep.warn("%s: %s", d.Content, w)
		}

		rep.add("hub", rep.hubURL)
		rep.add("deployment", d.DeploymentID)
		rep.add("target", target.Condition())
		rep.add("priority", fmt.Sprint(priority))
		rep.add("modules", strings.Join(desc.Modules(), ", "))

		open := r.OpenHub
		if open == nil {
			open = r.openCLIHub
		}
		hub, closeHub, err := open(ctx, cfg, sp)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeHub(); cerr != nil {
				level.Warn(logging.OrNop(r.Logger)).Log("msg", "closing hub session", "err", cerr)
			}
		}()

		previous, err := deploy.NewSubmitter(hub, r.Logger).Submit(ctx, deploy.Submission{
			HubName:      d.HubName,
			DeploymentID: d.DeploymentID,
			ContentPath:  contentPath,
			Target:       target,
			Priority:     priority,
		})
		if err != nil {
			return err
		}
		rep.add("previous", previous.String())
		return nil
	})
}

// openCLIHub signs in to an isolated Azure CLI session for the stage.
func (r *Runner) openCLIHub(ctx context.Context, cfg *config.Config, sp credentials.ServicePrincipal) (deploy.Hub, func() error, error) {
	session, err := azure.Login(ctx, r.Exec, cfg.Tool.AzBinary, sp, r.Logger)
	if err != nil {
		return nil, nil, err
	}
	return deploy.NewCLIHub(session), session.Close, nil
}
