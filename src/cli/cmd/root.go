package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config

	// shared stage flags, overlaid on the file config
	azureFlags    config.AzureConfig
	workspaceFlag string
)

var rootCmd = &cobra.Command{
	Use:   "edgefreight",
	Short: "IoT Edge delivery pipeline",
	Long:  "edgefreight builds, pushes and deploys IoT Edge modules from CI.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cfg.Azure, err = config.Overlay(cfg.Azure, azureFlags)
		if err != nil {
			return err
		}
		if workspaceFlag != "" {
			cfg.Workspace = workspaceFlag
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .edgefreight.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "job workspace root (default: .)")
	rootCmd.PersistentFlags().StringVar(&azureFlags.CredentialsID, "credentials-id", "", "Azure service principal reference in the credential store")
	rootCmd.PersistentFlags().StringVar(&azureFlags.ResourceGroup, "resource-group", "", "Azure resource group")
}

// Execute runs the root command. An interrupt cancels the running stage
// and its child process.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
