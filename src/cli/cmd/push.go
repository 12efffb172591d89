package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/pipeline"
)

var (
	pushFlags config.PushConfig
	pushTag   string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push IoT Edge module images to a registry",
	Long: `Push the built module images to an Azure Container Registry (acr) or a
self-hosted registry (common).

Registry credentials are resolved from the credential store and handed to
iotedgedev through its environment only; the .env descriptor carries the
registry server and the modules to bypass.`,
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.StringVar(&pushFlags.RegistryType, "registry-type", "", "registry type: acr or common (default: acr)")
	f.StringVar(&pushFlags.ACRName, "acr-name", "", "Azure Container Registry name (acr)")
	f.StringVar(&pushFlags.RegistryURL, "registry-url", "", "registry endpoint (common)")
	f.StringVar(&pushFlags.RegistryCredentialsID, "registry-credentials-id", "", "registry login reference in the credential store (common)")
	f.StringVar(&pushFlags.BypassModules, "bypass-modules", "", "comma-separated modules to skip")
	f.StringVar(&pushFlags.Manifest, "manifest", "", "deployment template (default: deployment.template.json)")
	f.StringVar(&pushFlags.Platform, "platform", "", "target platform, e.g. amd64, arm32v7")
	f.StringVar(&pushTag, "tag", "", "container tag template, e.g. {sha:8}")

	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	var err error
	cfg.Push, err = config.Overlay(cfg.Push, pushFlags)
	if err != nil {
		return err
	}
	if pushTag != "" {
		cfg.Tool.ContainerTag = pushTag
	}
	return runStage(cmd, (*pipeline.Runner).Push)
}
