package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pricetracker/internal/db"
	"pricetracker/internal/repository"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <url>",
	Short: "Show recorded prices for a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HistoryDBURL == "" {
			return errors.New("HISTORY_DATABASE_URL is not set")
		}
		conn, err := db.New(cmd.Context(), cfg.HistoryDBURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		repo := &repository.HistoryRepository{DB: conn}
		list, err := repo.List(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no history for", args[0])
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHECKED AT\tPRICE\tCHANGED\tRUN")
		for _, o := range list {
			changed := "no"
			if o.Changed {
				changed = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.CheckedAt.Local().Format("2006-01-02 15:04:05"), o.Price, changed, o.RunID)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of observations to show")
}
