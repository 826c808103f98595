// Package dedup implements commands that inspect and reset the identity
// indexes used to skip already published articles.
package dedup

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cmdcommon "github.com/ounols/jekyll-news/cmd/common"
)

// Command returns the dedup command and its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Inspect or reset the published-article index",
	}

	cmd.AddCommand(
		subcommand("status", "Count the published article ids", cobra.NoArgs,
			func(ctx context.Context, app *cmdcommon.App, w io.Writer, _ []string) error {
				Status(app, w)
				return nil
			}),
		subcommand("lookup <article-id>", "Show where an article id was published", cobra.ExactArgs(1),
			func(ctx context.Context, app *cmdcommon.App, w io.Writer, args []string) error {
				Lookup(ctx, app, w, args[0])
				return nil
			}),
		subcommand("clear <article-id>", "Forget one article id in Redis", cobra.ExactArgs(1),
			func(ctx context.Context, app *cmdcommon.App, w io.Writer, args []string) error {
				return Clear(ctx, app, w, args[0])
			}),
		subcommand("flush", "Forget every article id in Redis", cobra.NoArgs,
			func(ctx context.Context, app *cmdcommon.App, w io.Writer, _ []string) error {
				return Flush(ctx, app, w)
			}),
	)
	return cmd
}

type runFunc func(ctx context.Context, app *cmdcommon.App, w io.Writer, args []string) error

func subcommand(use, short string, args cobra.PositionalArgs, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			app, err := cmdcommon.NewCommandApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return run(cmd.Context(), app, cmd.OutOrStdout(), argv)
		},
	}
}

// Status prints how many posts carry an article id.
func Status(app *cmdcommon.App, w io.Writer) {
	fmt.Fprintf(w, "posts dir: %s\n", app.Config.Publisher.OutputDir)
	fmt.Fprintf(w, "marked:    %d\n", app.Published.Len())
	if app.Tracker == nil {
		fmt.Fprintln(w, "redis:     off")
		return
	}
	fmt.Fprintf(w, "redis:     %s\n", app.Config.Redis.Address)
}

// Lookup reports whether id is known to the file index and to Redis.
func Lookup(ctx context.Context, app *cmdcommon.App, w io.Writer, id string) {
	if file, ok := app.Published.File(id); ok {
		fmt.Fprintf(w, "file:  %s\n", file)
	} else {
		fmt.Fprintln(w, "file:  -")
	}
	if app.Tracker != nil {
		fmt.Fprintf(w, "redis: %t\n", app.Tracker.Has(ctx, id))
	}
}

// Clear removes id from Redis. The post file, if any, still blocks a republish.
func Clear(ctx context.Context, app *cmdcommon.App, w io.Writer, id string) error {
	if app.Tracker == nil {
		return cmdcommon.ErrRedisUnavailable
	}
	if err := app.Tracker.Clear(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "cleared %s\n", id)
	return nil
}

// Flush removes every tracked id from Redis.
func Flush(ctx context.Context, app *cmdcommon.App, w io.Writer) error {
	if app.Tracker == nil {
		return cmdcommon.ErrRedisUnavailable
	}
	n, err := app.Tracker.FlushAll(ctx)
	if err != nil {
		return fmt.Errorf("flush redis index: %w", err)
	}
	fmt.Fprintf(w, "deleted %d keys\n", n)
	return nil
}
