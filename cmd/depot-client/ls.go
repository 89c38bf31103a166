package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/internal/transfer"
	"github.com/vercingetorx/depot/internal/wire"
)

var lsCmd = &cobra.Command{
	Use:   "ls <remote-path>",
	Short: "List a file's metadata, or a directory's immediate children, on the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	remotePath := args[0]

	sess, err := dial()
	if err != nil {
		return err
	}
	defer sess.Close()

	entries, err := transfer.RunListing(sess, remotePath)
	if err != nil {
		return fmt.Errorf("ls: %w", err)
	}
	for _, e := range entries {
		kind := "file"
		if e.Kind == wire.EntryDir {
			kind = "dir"
		}
		fmt.Printf("%-5s %10d  %s\n", kind, e.Size, e.Path)
	}
	return nil
}
