package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/api"
	"github.com/ssargent/munin/pkg/config"
	"github.com/ssargent/munin/pkg/security"
	"github.com/ssargent/munin/pkg/store"
)

var serveConfigPath string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the Munin REST API server.

Configuration is read from the config file (see 'munin init'); the
--data-dir, --port and --api-key flags override it. With a tls section in
the config the server terminates TLS itself.

Examples:
  munin serve --api-key=mysecretkey --port=9300
  munin serve --config=/etc/munin/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		if serveConfigPath != "" {
			loaded, err := config.LoadConfig(serveConfigPath)
			if err != nil {
				cmd.Printf("Error loading config: %v\n", err)
				return
			}
			cfg = loaded
		}

		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.APIKey, _ = cmd.Flags().GetString("api-key")
		}

		if cfg.APIKey == "" || cfg.APIKey == "auto" {
			cmd.Println("Error: an api key is required (set --api-key or run 'munin init' first)")
			return
		}

		serverConfig := api.ServerConfig{
			Bind:   cfg.Bind,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
		}

		if cfg.TLS.Enabled() {
			factory, err := security.NewFactory(cfg.TLS)
			if err != nil {
				cmd.Printf("Error in tls configuration: %v\n", err)
				return
			}
			tlsConfig, err := factory.ServerConfig()
			if err != nil {
				cmd.Printf("Error in tls configuration: %v\n", err)
				return
			}
			serverConfig.TLSConfig = tlsConfig
		}

		// Corruption events observed by the store feed the metrics, so the
		// sink has to be in place before recovery scans the log.
		metrics := api.NewMetrics()
		blobStore, err := store.NewBlobStore(store.BlobStoreConfig{
			DataDir:       cfg.DataDir,
			FsyncInterval: cfg.FsyncInterval,
		})
		if err != nil {
			cmd.Printf("Error creating store: %v\n", err)
			return
		}
		blobStore.SetCorruptionLog(metrics)
		recovery, err := blobStore.Open()
		if err != nil {
			cmd.Printf("Error opening store: %v\n", err)
			return
		}
		defer blobStore.Close()
		if recovery.MessagesSkipped > 0 || recovery.BytesTruncated > 0 {
			fmt.Printf("Recovered from corruption: %d messages skipped, %d bytes truncated\n",
				recovery.MessagesSkipped, recovery.BytesTruncated)
		}

		fmt.Printf("Serving on %s:%d (data dir %s)\n", cfg.Bind, cfg.Port, cfg.DataDir)
		if err := api.StartServer(blobStore, serverConfig, metrics); err != nil {
			cmd.Printf("Error starting server: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 9300, "Port to listen on")
	serveCmd.Flags().String("api-key", "", "API key for authentication")
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to the config file")
}
