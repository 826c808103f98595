// Package crawl implements the crawl command: one sequential pipeline run
// over the selected sources.
package crawl

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/ounols/jekyll-news/cmd/common"
	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/pipeline"
)

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	var (
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch, translate and publish the latest articles",
		Long: `Lists the newest articles of each selected source and takes every one
through extraction, validation, ticker linking, translation and publishing.
Articles already published are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cmdcommon.NewCommandApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			srcs, err := app.Sources(app.SourceIDs(source))
			if err != nil {
				return fmt.Errorf("build sources: %w", err)
			}
			if limit <= 0 {
				limit = app.Config.Pipeline.Limit
			}

			runner := pipeline.NewRunner(app.Processor(),
				pipeline.WithRecorder(app.Metrics),
				pipeline.WithRunnerLogger(app.Logger),
			)
			summary, runErr := runner.Run(cmd.Context(), srcs, limit)
			cmdcommon.RenderSummary(cmd.OutOrStdout(), summary)

			if err := app.Metrics.WriteTextfile(app.Config.Metrics.Textfile); err != nil {
				app.Logger.Warn("Failed to export metrics", logger.Error(err))
			}
			if runErr != nil {
				return fmt.Errorf("run interrupted: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", cmdcommon.SourceAll, "source id to crawl, or all")
	cmd.Flags().IntVar(&limit, "limit", 0, "articles per source (0 uses pipeline.limit)")

	return cmd
}
