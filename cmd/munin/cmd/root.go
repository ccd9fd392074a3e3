package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "munin",
	Short: "Munin - content-addressed blob store",
	Long: `Munin is a content-addressed blob store built on an append-only
message log with per-record checksums and tombstone deletes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global data directory flag
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the store")
}

// openStore opens the blob store under the configured data directory,
// reporting any crash recovery it performed.
func openStore(cmd *cobra.Command) (*store.BlobStore, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return openStoreAt(dataDir, 0)
}

func openStoreAt(dataDir string, fsyncInterval time.Duration) (*store.BlobStore, error) {
	blobStore, err := store.NewBlobStore(store.BlobStoreConfig{
		DataDir:       dataDir,
		FsyncInterval: fsyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	recovery, err := blobStore.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if recovery.MessagesSkipped > 0 || recovery.BytesTruncated > 0 {
		fmt.Printf("Recovered from corruption: %d messages skipped, %d bytes truncated\n",
			recovery.MessagesSkipped, recovery.BytesTruncated)
	}
	return blobStore, nil
}
