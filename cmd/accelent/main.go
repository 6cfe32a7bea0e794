// Command accelent serves the pipeline canvas and offers a few offline
// helpers around it.
package main

import (
	"fmt"
	"os"

	"github.com/frenb/accelent/infrastructure/config"
	"github.com/spf13/cobra"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:          "accelent",
		Short:        "Pipeline canvas server",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, classifyCmd)
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.LoadConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
