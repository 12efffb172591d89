package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/pipeline"
)

var deployFlags config.DeployConfig

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a manifest to IoT Edge devices",
	Long: `Create an IoT Hub deployment from a resolved deployment manifest.

An existing deployment with the same id is deleted first, so running the
same deploy twice leaves one deployment. Targets a single device
(--type single --device-id) or every device matching a twin query
(--type multiple --target-condition).`,
	RunE: runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.StringVar(&deployFlags.Content, "content", "", "resolved deployment manifest (default: config/deployment.amd64.json)")
	f.StringVar(&deployFlags.HubName, "hub-name", "", "IoT Hub name")
	f.StringVar(&deployFlags.Type, "type", "", "deployment type: single or multiple (default: single)")
	f.StringVar(&deployFlags.DeviceID, "device-id", "", "target device (single)")
	f.StringVar(&deployFlags.TargetCondition, "target-condition", "", "twin query condition (multiple)")
	f.StringVar(&deployFlags.DeploymentID, "deployment-id", "", "deployment id")
	f.StringVar(&deployFlags.Priority, "priority", "", "deployment priority (default: 10)")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	var err error
	cfg.Deploy, err = config.Overlay(cfg.Deploy, deployFlags)
	if err != nil {
		return err
	}
	return runStage(cmd, (*pipeline.Runner).Deploy)
}
