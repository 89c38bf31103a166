package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vercingetorx/depot/internal/record"
	"github.com/vercingetorx/depot/internal/transfer"
	"github.com/vercingetorx/depot/internal/wire"
)

var pushCmd = &cobra.Command{
	Use:   "push <local-path> [remote-path]",
	Short: "Upload a local file, or every regular file under a local directory, to the server",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPush,
}

func init() {
	pushCmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "no effect on uploads: the server's overwrite_existing setting decides whether an existing remote file is replaced")
	pushCmd.Flags().BoolVar(&skipFlag, "skip-existing", false, "skip (rather than fail) a push whose remote file already exists")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	localPath := args[0]
	remoteBase := filepath.ToSlash(filepath.Base(localPath))
	if len(args) == 2 {
		remoteBase = args[1]
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	sess, err := dial()
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := transfer.UploadOptions{Overwrite: overwriteFlag, SkipExisting: skipFlag}

	if !info.IsDir() {
		return pushOne(sess, localPath, remoteBase, info, opts)
	}

	return filepath.Walk(localPath, func(p string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		remotePath := remoteBase + "/" + filepath.ToSlash(rel)
		return pushOne(sess, p, remotePath, fi, opts)
	})
}

func pushOne(sess *record.Session, localPath, remotePath string, info os.FileInfo, opts transfer.UploadOptions) error {
	// The client drives the upload stream, so it owns the rekey proposal at
	// this file boundary; the ack rides in transparently on the Receive
	// inside SendFile that waits for UploadOk/UploadFail.
	if sess.DueForRekey() {
		if err := sess.ProposeRekey(); err != nil {
			return fmt.Errorf("push %s: %w", remotePath, err)
		}
	}

	item := wire.Item{
		Path:  remotePath,
		Size:  info.Size(),
		Mtime: info.ModTime().Unix(),
		Perms: transfer.EncodePerms(info.Mode()),
	}
	res := transfer.SendFile(sess, localPath, item, opts)
	if res.Skipped {
		fmt.Printf("skip  %s (already exists)\n", remotePath)
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("push %s: %w", remotePath, res.Err)
	}
	fmt.Printf("push  %s (%d bytes)\n", remotePath, info.Size())
	return nil
}
