package cmd

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/format"
)

// statCmd represents the stat command
var statCmd = &cobra.Command{
	Use:   "stat <id>",
	Short: "Print a blob's properties and user metadata",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			fmt.Printf("Invalid blob id %q: %v\n", args[0], err)
			return
		}

		blobStore, err := openStore(cmd)
		if err != nil {
			fmt.Printf("Error opening store: %v\n", err)
			return
		}
		defer blobStore.Close()

		props, userMetadata, err := blobStore.GetProperties(id)
		if err != nil {
			fmt.Printf("Error reading blob: %v\n", err)
			return
		}

		fmt.Printf("id:            %s\n", id)
		fmt.Printf("size:          %d\n", props.BlobSize)
		fmt.Printf("service-id:    %s\n", props.ServiceID)
		fmt.Printf("owner-id:      %s\n", props.OwnerID)
		fmt.Printf("content-type:  %s\n", props.ContentType)
		if props.TTLSeconds == format.InfiniteTTL {
			fmt.Printf("ttl:           infinite\n")
		} else {
			fmt.Printf("ttl:           %ds\n", props.TTLSeconds)
		}
		fmt.Printf("private:       %t\n", props.Private)
		fmt.Printf("created:       %s\n", time.UnixMilli(props.CreationTimeMs).UTC().Format(time.RFC3339))
		if len(userMetadata) > 0 {
			fmt.Printf("user-metadata: %s\n", userMetadata)
		}
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}
