package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newspaper",
		Short: "News publishing backend with subscriber notifications",
		Long: `newspaper serves the publishing API, sends per-post notifications to
category subscribers and a weekly digest of recent posts.

Configuration is read from environment variables (DB_PATH, SMTP_HOST,
JWT_SECRET, DIGEST_SCHEDULE and others).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newDigestCmd(),
		newNotifyCmd(),
		newMigrateCmd(),
		newUserCmd(),
		newTokenCmd(),
	)

	return rootCmd
}
