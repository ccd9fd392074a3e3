package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/config"
)

var initConfigPath string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a generated API key",
	Long: `Create a Munin configuration file with a freshly generated API key.

Example:
  munin init --config ./munin.yaml --data-dir ./data`,
	Run: func(cmd *cobra.Command, args []string) {
		path := initConfigPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(path) {
			cmd.Printf("Config already exists at %s\n", path)
			return
		}

		dataDir, _ := cmd.Flags().GetString("data-dir")
		cfg, err := config.BootstrapConfig(path, dataDir)
		if err != nil {
			cmd.Printf("Error bootstrapping config: %v\n", err)
			return
		}

		cmd.Printf("Wrote %s\n", path)
		cmd.Printf("API key: %s\n", cfg.APIKey)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initConfigPath, "config", "c", "", "Path for the new config file")
}
