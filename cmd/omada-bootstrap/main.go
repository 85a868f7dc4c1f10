// omada-bootstrap provisions a host with the Omada SDN controller and its
// runtime dependencies. It must be run as root on a supported Ubuntu LTS
// release and takes no arguments; flags only tune logging and debugging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omada-community/omada-bootstrap/internal/config"
	"github.com/omada-community/omada-bootstrap/internal/provision"
	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
)

var (
	cfgFile       string
	logLevel      string
	keepArtifacts bool
)

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "omada-bootstrap",
		Short: "install the Omada controller and its dependencies",
		Long: `omada-bootstrap prepares an Ubuntu host for the Omada SDN controller:
it verifies the host environment, registers the MongoDB package repository,
downloads the vendor archive and installs the controller together with the
database engine, a headless Java runtime and jsvc.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
		RunE: executeInstall,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Shorthand for --log-level debug")
	rootCmd.Flags().StringVar(&cfgFile, "config", "",
		"Optional YAML file overriding the built-in defaults")
	rootCmd.Flags().BoolVar(&keepArtifacts, "keep-artifacts", false,
		"Keep the downloaded archive and extraction directory (debugging)")

	rootCmd.AddCommand(createVersionCommand())
	return rootCmd
}

// resolveRequestedLogLevel prefers an explicit --log-level over the
// --verbose shorthand.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			return "debug"
		}
	}
	return ""
}

func setupLogging(cmd *cobra.Command) error {
	requested := resolveRequestedLogLevel(cmd)
	level, ok := logger.ParseLevel(requested)
	if !ok {
		return fmt.Errorf("invalid log level %q", requested)
	}
	logger.Init(logger.New(level))
	return nil
}

func executeInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	return provision.Run(cfg, provision.Options{KeepArtifacts: keepArtifacts})
}

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
