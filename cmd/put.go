// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/upload"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Upload a single file",
	Long: `Upload one file through a presigned descriptor. The descriptor is
minted by the configured init endpoint, or signed locally when presign flags
are set.`,
	Args: cobra.ExactArgs(1),
	Run:  runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)

	f := putCmd.Flags()
	registerClientFlags(f)
	f.Bool("quiet", false, "Suppress the progress indicator")
}

func runPut(cmd *cobra.Command, args []string) {
	cfg := loadClientConfig(cmd)
	fl := NewFlagLoader(cmd)

	startDebugServer(fl.String("debug_addr"))

	u, err := buildUploader(cmd, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build uploader")
	}

	file, err := fileRef(args[0])
	if err != nil {
		logger.Fatal().Err(err).Str("path", args[0]).Msg("cannot read input file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := upload.UploadOptions{}
	if !fl.Bool("quiet") {
		opts.OnProgress = renderProgress(file.Name)
	}

	start := time.Now()
	res, err := u.Upload(ctx, file, opts)
	if err != nil {
		logger.Error().Err(err).Str("file", file.Name).Msg("upload failed")
		os.Exit(1)
	}

	fmt.Printf("uploaded %s as %s in %s\n", file.Name, res.Key, formatElapsed(time.Since(start)))
	if res.ETag != "" {
		fmt.Printf("  etag: %s\n", res.ETag)
	}
	if res.Location != "" {
		fmt.Printf("  location: %s\n", res.Location)
	}
}
