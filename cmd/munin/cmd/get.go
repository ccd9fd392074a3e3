package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

var getOutput string

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a blob's content",
	Long: `Fetch a blob's content by ID, writing it to stdout or to a file.

Example:
  munin get 2ZfXqQx1JY0pGk5yAqTBLWmDvza --output photo.jpg`,
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

		msg, err := blobStore.Get(id)
		if err != nil {
			fmt.Printf("Error fetching blob: %v\n", err)
			return
		}
		defer msg.Close()

		out := os.Stdout
		if getOutput != "" {
			out, err = os.Create(getOutput)
			if err != nil {
				fmt.Printf("Error creating output file: %v\n", err)
				return
			}
			defer out.Close()
		}

		if _, err := io.Copy(out, msg.Message.Blob.Content()); err != nil {
			fmt.Printf("Error reading blob content: %v\n", err)
			return
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "Write content to this file instead of stdout")
}
