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

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/upload"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Upload several files concurrently",
	Long: `Upload a set of files with a bounded number of transfers in flight.
Files are admitted in argument order; one file's failure never aborts the
rest.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	registerClientFlags(f)
	f.Int("concurrency", upload.DefaultConcurrency, "Maximum transfers in flight")
	f.Bool("quiet", false, "Suppress the progress indicator")
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := loadClientConfig(cmd)
	fl := NewFlagLoader(cmd)

	startDebugServer(fl.String("debug_addr"))

	u, err := buildUploader(cmd, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build uploader")
	}

	files := make([]*descriptor.FileRef, 0, len(args))
	var total int64
	for _, path := range args {
		f, err := fileRef(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("cannot read input file")
		}
		files = append(files, f)
		total += f.Size
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := upload.BatchOptions{Concurrency: fl.Int("concurrency")}
	if !fl.Bool("quiet") {
		opts.OnOverallProgress = renderProgress(fmt.Sprintf("%d files", len(files)))
	}

	logger.Info().
		Int("files", len(files)).
		Str("total", humanize.Bytes(uint64(total))).
		Int("concurrency", opts.Concurrency).
		Msg("starting batch upload")

	start := time.Now()
	results := u.UploadMany(ctx, files, opts)

	var failed int
	for i, r := range results {
		if r.Err != nil {
			failed++
			logger.Error().Err(r.Err).Str("file", files[i].Name).Msg("upload failed")
			continue
		}
		fmt.Printf("uploaded %s as %s\n", files[i].Name, r.Result.Key)
	}

	fmt.Printf("%d/%d files uploaded in %s\n", len(files)-failed, len(files), formatElapsed(time.Since(start)))
	if failed > 0 {
		os.Exit(1)
	}
}
