package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/internal/transfer"
)

var pullCmd = &cobra.Command{
	Use:   "pull <remote-path> <local-dest-dir>",
	Short: "Download a remote file, or an entire remote subtree, into a local directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "overwrite an existing local file")
	pullCmd.Flags().BoolVar(&skipFlag, "skip-existing", false, "skip (rather than fail) a pull whose local file already exists")
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	remotePath, localDestDir := args[0], args[1]

	sess, err := dial()
	if err != nil {
		return err
	}
	defer sess.Close()

	results, err := transfer.RunDownload(sess, remotePath, localDestDir, transfer.DownloadOptions{
		Overwrite:    overwriteFlag,
		SkipExisting: skipFlag,
	})
	for _, res := range results {
		switch {
		case res.Skipped:
			fmt.Printf("skip  %s (already exists)\n", res.Path)
		case res.Err != nil:
			fmt.Printf("fail  %s: %v\n", res.Path, res.Err)
		default:
			fmt.Printf("pull  %s\n", res.Path)
		}
	}
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}
