// Package extract implements a diagnostic command that runs one source's
// extraction cascade on a single URL.
package extract

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	cmdcommon "github.com/ounols/jekyll-news/cmd/common"
	"github.com/ounols/jekyll-news/internal/domain"
)

// Command returns the extract command.
func Command() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract the body of one article without publishing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cmdcommon.NewCommandApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			srcs, err := app.Sources([]string{source})
			if err != nil {
				return fmt.Errorf("build source: %w", err)
			}

			article := domain.Article{Source: source, Title: args[0], URL: args[0]}
			res, err := srcs[0].Extract(cmd.Context(), article)
			if err != nil {
				if errors.Is(err, domain.ErrValidationRejected) {
					return fmt.Errorf("every candidate body looked like a legal notice: %w", err)
				}
				return fmt.Errorf("extract %s: %w", args[0], err)
			}

			verdict := app.Validator.Check(res.Body)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strategy: %s\n", res.Strategy)
			fmt.Fprintf(out, "title:    %s\n", res.Title)
			fmt.Fprintf(out, "length:   %d\n", utf8.RuneCountInString(res.Body))
			fmt.Fprintf(out, "valid:    %t %s\n\n", verdict.Valid, verdict.Reason)
			fmt.Fprintln(out, res.Body)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "investing", "source id whose extraction cascade is used")
	return cmd
}
