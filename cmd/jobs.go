package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"newspaper/internal/api"

	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the weekly digest once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.notifier.SendWeeklyDigest(ctx); err != nil {
					return fmt.Errorf("send weekly digest: %w", err)
				}

				return nil
			})
		},
	}
}

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify <post-id>",
		Short: "Notify subscribers of a post synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.notifier.NotifySubscribers(ctx, postID); err != nil {
					return fmt.Errorf("notify subscribers (post = %d): %w", postID, err)
				}

				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Migrations run when the database is opened.
			return withApp(cmd.Context(), func(context.Context, *app) error { return nil })
		},
	}
}

func newUserCmd() *cobra.Command {
	var author bool

	cmd := &cobra.Command{
		Use:   "user <username> <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				userID, err := a.db.CreateUser(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}

				if author {
					if err = a.db.SetUserAuthor(ctx, userID); err != nil {
						return fmt.Errorf("set author: %w", err)
					}
				}

				a.log.InfoContext(ctx, "User is created",
					"userID", userID,
					"isAuthor", author)

				fmt.Fprintln(cmd.OutOrStdout(), userID)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&author, "author", false, "grant author rights")

	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if _, err := a.db.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("get user: %w", err)
				}

				token, err := api.GenerateToken(a.cfg.JWTSecret, userID, ttl)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), token)

				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}

	return id, nil
}
