package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/did"
	"github.com/yourorg/rucio-tools/internal/ledger"
)

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit int
		dflag string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads recorded in the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dir := cfg.LedgerDir
			if dir == "" {
				dir = ledger.DefaultDir()
			}
			l, err := ledger.Open(dir)
			if err != nil {
				return err
			}
			defer l.Close()

			var traces []ledger.Trace
			if dflag != "" {
				d, err := did.Parse(dflag)
				if err != nil {
					return err
				}
				t, err := l.Latest(d.Scope, d.Name)
				if errors.Is(err, ledger.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "no uploads recorded for %s\n", d)
					return nil
				}
				if err != nil {
					return err
				}
				traces = []ledger.Trace{t}
			} else if traces, err = l.List(limit); err != nil {
				return err
			}
			return printTraces(cmd.OutOrStdout(), traces)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of traces to show (0 for all)")
	cmd.Flags().StringVar(&dflag, "did", "", "Show the latest trace of scope:name")
	return cmd
}

func printTraces(w io.Writer, traces []ledger.Trace) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATE\tDID\tRSE\tBYTES\tADLER32\tERROR")
	for _, t := range traces {
		fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s\t%d\t%s\t%s\n",
			t.Time.Local().Format("2006-01-02 15:04:05"), t.State, t.Scope, t.Name, t.RSE, t.Bytes, t.Adler32, t.Error)
	}
	return tw.Flush()
}
