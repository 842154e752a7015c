// Command validate-rootfile checks ROOT (and HDF5) files for corruption and
// exits non-zero when any of them is invalid.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/formats/hdf5io"
	"github.com/yourorg/rucio-tools/internal/formats/rootio"
	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/metrics"
	"github.com/yourorg/rucio-tools/internal/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := 0
	cmd := newRootCmd(&code)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	stop()
	os.Exit(code)
}

func newRootCmd(exitCode *int) *cobra.Command {
	var (
		verbose bool
		quiet   bool
		jobs    int
	)
	cmd := &cobra.Command{
		Use:           "validate-rootfile FILE...",
		Short:         "Validate ROOT files for corruption",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// library messages stay quiet unless asked for
			level := "error"
			if verbose {
				level = "debug"
			}
			log := logging.New(level, "console")
			defer log.Sync()

			metrics.Init()
			checker := validate.NewChecker(log, rootio.New(log), hdf5io.New(log))
			results, err := checker.ValidateAll(cmd.Context(), args, jobs)
			if err != nil {
				return err
			}
			*exitCode = validate.Report(cmd.OutOrStdout(), results, quiet)

			if url := metrics.PushURLFromEnv(); url != "" {
				if err := metrics.Push(cmd.Context(), url, "validate-rootfile"); err != nil {
					log.Warn("metrics push failed", zap.Error(err))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only report invalid files")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", config.GetEnvInt("RUCIO_TOOLS_JOBS", runtime.NumCPU()), "Files to check in parallel")
	return cmd
}
