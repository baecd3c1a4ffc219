package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rcmhax/gelee/pkg/cache"
)

var downloadCmd = &cobra.Command{
	Use:   "download [url] [filename]",
	Short: "Download a payload into the payloads directory",
	Long:  "Downloads a payload over HTTP into the payloads directory under the user's download directory. The filename defaults to the last element of the URL.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) > 1 {
			filename = args[1]
		}
		p, err := cache.Download(args[0], filename)
		if err != nil {
			return err
		}
		slog.Info("Wrote file", "url", args[0], "path", p)

		have, err := cache.Payloads()
		if err != nil {
			return err
		}
		slog.Debug("Payloads directory", "dir", cache.PayloadsDir(), "files", have)
		fmt.Println(p)
		return nil
	},
}
