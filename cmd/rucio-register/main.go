// Command rucio-register uploads local files to a storage element and
// registers them in the Rucio catalogue, attaching each file to the dataset
// named by the parent directory of its DID name.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/ledger"
	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/metrics"
	"github.com/yourorg/rucio-tools/internal/register"
	"github.com/yourorg/rucio-tools/internal/rucio"
	"github.com/yourorg/rucio-tools/internal/types"
	"github.com/yourorg/rucio-tools/internal/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(expandMultiValue(os.Args[1:], multiValueFlags...))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type options struct {
	files       []string
	dids        []string
	scope       string
	rse         string
	configPath  string
	logLevel    string
	summaryFile string
	dryRun      bool
	noLedger    bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "rucio-register -f FILE... -d DID... -s SCOPE -r RSE",
		Short: "Registers files to RUCIO",
		Long: `Uploads each file to the RSE and registers it under scope:did.
Files and DID names are paired by position. Every file is attached to the
dataset named by the directory part of its DID name.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("log-level") {
				o.logLevel = ""
			}
			return run(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&o.files, "file", "f", nil, "Enter the local file path (one or more)")
	f.StringArrayVarP(&o.dids, "did", "d", nil, "Enter the data identifier for rucio catalogue (one or more)")
	f.StringVarP(&o.scope, "scope", "s", "", "Enter the scope")
	f.StringVarP(&o.rse, "rse", "r", "", "Enter the rucio storage element")
	f.BoolVar(&o.dryRun, "dry-run", false, "Validate inputs and print destinations without uploading")
	f.StringVar(&o.summaryFile, "summary-file", "", "Write a JSON summary of every file to this path")
	f.BoolVar(&o.noLedger, "no-ledger", config.GetEnvBool("RUCIO_TOOLS_NO_LEDGER", false), "Do not record traces in the local ledger")
	for _, name := range []string{"file", "did", "scope", "rse"} {
		_ = cmd.MarkFlagRequired(name)
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (default $RUCIO_TOOLS_CONFIG or ~/.config/rucio-tools/config.yaml)")
	pf.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newHistoryCmd(&o))
	return cmd
}

func run(ctx context.Context, o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	log := logging.New(level, "console")
	defer log.Sync()

	items, err := register.BuildUploadItems(register.Request{
		FilePaths: o.files,
		DIDNames:  o.dids,
		Scope:     o.scope,
		RSE:       o.rse,
	})
	if err != nil {
		return err
	}

	metrics.Init()
	uopts := upload.Options{RSEs: cfg.RSEs, DryRun: o.dryRun, Logger: log}
	if !o.noLedger && !o.dryRun {
		dir := cfg.LedgerDir
		if dir == "" {
			dir = ledger.DefaultDir()
		}
		l, err := ledger.Open(dir)
		if err != nil {
			log.Warn("ledger unavailable, continuing without it", zap.String("dir", dir), zap.Error(err))
		} else {
			defer l.Close()
			uopts.Journal = l
		}
	}

	var cat upload.Catalogue
	if !o.dryRun {
		rc, err := rucio.New(cfg.Rucio, rucio.WithLogger(log))
		if err != nil {
			return err
		}
		cat = rc
	}

	sum, upErr := upload.New(cat, uopts).Upload(ctx, items)
	if o.summaryFile != "" && len(sum.Files) > 0 {
		if err := sum.WriteJSON(o.summaryFile); err != nil {
			log.Error("write summary", zap.String("path", o.summaryFile), zap.Error(err))
		}
	}
	if cfg.PushgatewayURL != "" && !o.dryRun {
		if err := metrics.Push(ctx, cfg.PushgatewayURL, "rucio-register"); err != nil {
			log.Warn("metrics push failed", zap.Error(err))
		}
	}
	log.Info("upload finished",
		zap.Int("done", sum.Count(types.StateDone)),
		zap.Int("skipped", sum.Count(types.StateSkipped)),
		zap.Int("failed", sum.Count(types.StateFailed)),
		zap.Bool("dry_run", o.dryRun))
	return upErr
}
