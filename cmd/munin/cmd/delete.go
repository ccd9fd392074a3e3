package cmd

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a blob",
	Long: `Append a delete tombstone for a blob. The blob's content stays in
the log but is no longer reachable.

Example:
  munin delete 2ZfXqQx1JY0pGk5yAqTBLWmDvza`,
	Args: cobra.ExactArgs(1),
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

		if err := blobStore.Delete(id); err != nil {
			fmt.Printf("Error deleting blob: %v\n", err)
			return
		}

		fmt.Printf("Deleted %s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
