package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/munin/pkg/store"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the message log and print every entry",
	Long: `Walk the message log sequentially, printing one line per message.
Corrupt regions with an intact header are skipped by total_size and counted;
a torn tail stops the scan.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		logPath := filepath.Join(dataDir, "active.log")

		reader, err := store.NewLogReader(logPath, 0)
		if err != nil {
			fmt.Printf("Error opening log: %v\n", err)
			return
		}
		defer reader.Close()

		var messages, skipped int64
		for {
			entry, err := reader.ReadNext()
			if err == io.EOF {
				break
			}

			var corrupt *store.CorruptEntryError
			if errors.As(err, &corrupt) {
				fmt.Printf("%-12d CORRUPT   %v\n", corrupt.Offset, corrupt.Err)
				skipped++
				continue
			}

			var torn *store.TornTailError
			if errors.As(err, &torn) {
				fmt.Printf("%-12d TORN      log unreadable from here: %v\n", torn.Offset, torn.Err)
				break
			}
			if err != nil {
				fmt.Printf("Error scanning log: %v\n", err)
				return
			}

			messages++
			if entry.IsDelete {
				fmt.Printf("%-12d DELETE    %s\n", entry.Offset, entry.ID)
			} else {
				fmt.Printf("%-12d PUT       %s size=%d content-type=%s\n",
					entry.Offset, entry.ID, entry.Properties.BlobSize, entry.Properties.ContentType)
			}
		}

		fmt.Printf("\n%d messages, %d corrupt regions skipped\n", messages, skipped)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
