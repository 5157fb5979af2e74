package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricetracker/internal/config"
	"pricetracker/internal/observability"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricetracker",
	Short: "Check product prices and record significant changes",
	Long: `pricetracker loads a list of product pages, extracts the current price of each,
and writes the list back with updated prices, timestamps and status tags.
Large moves are appended to an alert log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		applyFlags(cmd, cfg)
		observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
		return cfg.Validate()
	},
}

var (
	inputFlag    string
	outputFlag   string
	windowFlag   int
	attemptsFlag int
	logLevelFlag string
	prettyFlag   bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&inputFlag, "input", "i", "", "record store to read (csv path, sqlite://file, postgres://...)")
	pf.StringVarP(&outputFlag, "output", "o", "", "record store to write (defaults to input)")
	pf.IntVarP(&windowFlag, "window", "w", 0, "number of products checked concurrently")
	pf.IntVar(&attemptsFlag, "attempts", 0, "maximum attempts per product")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&prettyFlag, "pretty", false, "human readable console logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// applyFlags lets explicit flags win over the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		if !f.Changed("output") && c.Output == c.Input {
			c.Output = inputFlag
		}
		c.Input = inputFlag
	}
	if f.Changed("output") {
		c.Output = outputFlag
	}
	if f.Changed("window") {
		c.Thresholds.WindowSize = windowFlag
	}
	if f.Changed("attempts") {
		c.Thresholds.MaxAttempts = attemptsFlag
	}
	if f.Changed("log-level") {
		c.LogLevel = logLevelFlag
	}
	if f.Changed("pretty") {
		c.LogPretty = prettyFlag
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
