// Package tickers implements a command that finds and resolves the stock
// tickers of a text without translating or publishing it.
package tickers

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/ounols/jekyll-news/cmd/common"
	"github.com/ounols/jekyll-news/internal/ticker"
)

// Command returns the tickers command.
func Command() *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "tickers <file|->",
		Short: "List the tickers found in a text and their instruments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			app, err := cmdcommon.NewCommandApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			found := ticker.Limit(ticker.Find(text), app.Config.Catalog.MaxTickers)
			resolved := app.Linker.Resolve(cmd.Context(), found, nil)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Ticker", "Kind", "Instrument", "Name"})
			for _, tk := range found {
				rec, ok := resolved[tk.Key()]
				if !ok {
					t.AppendRow(table.Row{tk.Key(), tk.Kind.String(), "-", ""})
					continue
				}
				t.AppendRow(table.Row{tk.Key(), tk.Kind.String(), rec.InstrumentID, rec.Name})
			}
			t.Render()

			if render {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), ticker.Render(text, resolved))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "also print the text with ticker badges")
	return cmd
}

func readInput(stdin io.Reader, arg string) (string, error) {
	var (
		data []byte
		err  error
	)
	if arg == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
