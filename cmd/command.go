// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/sundryfs/uplift/pkg/utils"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uplift",
	Short: "Uplift - presigned upload client",
	Long: `Uplift uploads files to object stores through presigned URLs or POST
policies. Descriptors are minted by a backend init endpoint or signed locally,
transfers retry with backoff, and expired credentials are re-minted in flight.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
