package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/pipeline"
)

var (
	buildFlags config.BuildConfig
	buildTag   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build IoT Edge module images",
	Long: `Build the module images named in a deployment template with iotedgedev.

Writes the .env descriptor with the container tag, checks the iotedgedev
version and runs "iotedgedev build" for the target platform.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildFlags.Manifest, "manifest", "", "deployment template (default: deployment.template.json)")
	buildCmd.Flags().StringVar(&buildFlags.Platform, "platform", "", "target platform, e.g. amd64, arm32v7")
	buildCmd.Flags().StringVar(&buildTag, "tag", "", "container tag template, e.g. {sha:8}")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	var err error
	cfg.Build, err = config.Overlay(cfg.Build, buildFlags)
	if err != nil {
		return err
	}
	if buildTag != "" {
		cfg.Tool.ContainerTag = buildTag
	}
	return runStage(cmd, (*pipeline.Runner).Build)
}
