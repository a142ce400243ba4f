// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sundryfs/uplift/pkg/debug"
	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/presign"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/upload"
	"github.com/sundryfs/uplift/pkg/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// registerClientFlags adds the flags shared by the upload commands.
func registerClientFlags(f *pflag.FlagSet) {
	f.String("init_url", "", "Backend endpoint that mints upload descriptors")
	f.String("auth_header", "", "Authorization header value sent to the init endpoint")
	f.String("transport", string(upload.TransportStreaming), "Transfer implementation: streaming or plain")
	f.Int("retries", upload.DefaultRetries, "Retry budget per file (attempts = retries+1)")
	f.String("backoff", string(upload.BackoffExponential), "Backoff strategy: linear or exponential")
	f.Duration("min_delay", upload.DefaultMinDelay, "Base delay between attempts")
	f.Duration("max_delay", upload.DefaultMaxDelay, "Delay ceiling between attempts")
	f.Bool("reinit", true, "Mint a fresh descriptor after credential expiry")
	f.Duration("progress_interval", progress.DefaultInterval, "Minimum spacing between progress updates")
	f.String("debug_addr", "", "Address for the metrics/pprof listener (disabled when empty)")

	// Local signing instead of an init endpoint
	f.String("presign_endpoint", "", "S3-compatible endpoint for local presigning")
	f.String("presign_region", "", "Region for local presigning")
	f.String("presign_bucket", "", "Bucket for local presigning (enables presign mode)")
	f.String("presign_prefix", "", "Key prefix for locally presigned uploads")
	f.String("presign_access_key", "", "Access key for local presigning")
	f.String("presign_secret_key", "", "Secret key for local presigning")
	f.Bool("presign_path_style", false, "Use path-style addressing for local presigning")
	f.Duration("presign_expiry", presign.DefaultExpiry, "Lifetime of locally minted URLs")

	viper.BindPFlags(f)
}

// loadClientConfig merges the config file, environment, and CLI flags into a
// runnable upload configuration.
func loadClientConfig(cmd *cobra.Command) upload.Config {
	utils.LoadConfiguration("uplift", false)

	cfg := upload.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	fl := NewFlagLoader(cmd)
	if v := fl.String("init_url"); v != "" {
		cfg.Init.URL = v
	}
	if v := fl.String("auth_header"); v != "" {
		if cfg.Init.Headers == nil {
			cfg.Init.Headers = make(map[string]string)
		}
		cfg.Init.Headers["Authorization"] = v
	}
	cfg.Transport = upload.TransportKind(fl.String("transport"))
	cfg.Retry.Retries = fl.Int("retries")
	cfg.Retry.Backoff = upload.Backoff(fl.String("backoff"))
	cfg.Retry.MinDelay = fl.Duration("min_delay")
	cfg.Retry.MaxDelay = fl.Duration("max_delay")
	cfg.Retry.ReinitOnAuthError = fl.Bool("reinit")
	cfg.ProgressInterval = fl.Duration("progress_interval")

	return cfg
}

// buildUploader wires the configured initializer and transport into an
// orchestrator.
func buildUploader(cmd *cobra.Command, cfg upload.Config) (*upload.Uploader, error) {
	fl := NewFlagLoader(cmd)

	var minter upload.Initializer
	if bucket := fl.String("presign_bucket"); bucket != "" {
		signer, err := presign.NewSigner(cmd.Context(), presign.Config{
			Endpoint:        fl.String("presign_endpoint"),
			Region:          fl.String("presign_region"),
			Bucket:          bucket,
			Prefix:          fl.String("presign_prefix"),
			AccessKeyID:     fl.String("presign_access_key"),
			SecretAccessKey: fl.String("presign_secret_key"),
			PathStyle:       fl.Bool("presign_path_style"),
			Expiry:          fl.Duration("presign_expiry"),
		})
		if err != nil {
			return nil, err
		}
		minter = signer
	} else {
		client, err := upload.NewInitClient(cfg.Init)
		if err != nil {
			return nil, err
		}
		minter = client
	}

	tr, err := cfg.NewTransport(nil)
	if err != nil {
		return nil, err
	}

	return upload.NewUploader(upload.UploaderConfig{
		Initializer:      minter,
		Transport:        tr,
		Policy:           cfg.Retry,
		ProgressInterval: cfg.ProgressInterval,
	})
}

// startDebugServer serves metrics and pprof when debug_addr is set.
func startDebugServer(addr string) {
	if addr == "" {
		return
	}
	debug.SetReady()
	go func() {
		logger.Info().Str("addr", addr).Msg("debug server listening")
		if err := http.ListenAndServe(addr, debug.GetMux()); err != nil {
			logger.Error().Err(err).Msg("debug server stopped")
		}
	}()
}

// fileRef builds an upload source from a path. The file opens lazily so
// retries re-read from the start.
func fileRef(path string) (*descriptor.FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &descriptor.FileRef{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// renderProgress writes a single-line progress indicator to stderr.
func renderProgress(label string) progress.Func {
	return func(p progress.Progress) {
		fmt.Fprintf(os.Stderr, "\r%s  %s / %s  %3d%%",
			label,
			humanize.Bytes(uint64(p.BytesSent)),
			humanize.Bytes(uint64(p.TotalBytes)),
			p.Percent)
		if p.Percent >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// formatElapsed reports a duration with sub-second noise trimmed.
func formatElapsed(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
