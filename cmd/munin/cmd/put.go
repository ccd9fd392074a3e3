package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/format"
)

var (
	putServiceID   string
	putOwnerID     string
	putContentType string
	putTTL         int64
	putPrivate     bool
	putMetadata    string
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a file as a blob",
	Long: `Store a file as a blob and print its generated ID.

Example:
  munin put photo.jpg --service-id media --content-type image/jpeg`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Error reading file: %v\n", err)
			return
		}

		blobStore, err := openStore(cmd)
		if err != nil {
			fmt.Printf("Error opening store: %v\n", err)
			return
		}
		defer blobStore.Close()

		props := format.NewBlobProperties(int64(len(content)),
			putServiceID, putOwnerID, putContentType, putTTL, putPrivate)

		id, err := blobStore.Put(props, []byte(putMetadata), int64(len(content)), bytes.NewReader(content))
		if err != nil {
			fmt.Printf("Error storing blob: %v\n", err)
			return
		}

		fmt.Printf("%s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVar(&putServiceID, "service-id", "", "Service that owns the blob")
	putCmd.Flags().StringVar(&putOwnerID, "owner-id", "", "Owner of the blob")
	putCmd.Flags().StringVar(&putContentType, "content-type", "application/octet-stream", "Content type of the blob")
	putCmd.Flags().Int64Var(&putTTL, "ttl", format.InfiniteTTL, "TTL in seconds (-1 for no expiry)")
	putCmd.Flags().BoolVar(&putPrivate, "private", false, "Mark the blob private")
	putCmd.Flags().StringVar(&putMetadata, "metadata", "", "Opaque user metadata stored with the blob")
}
