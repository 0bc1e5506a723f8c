// Command bulkload drives one bulk-ingest run end to end: boundary scan,
// indexing, merge & load, symbol reconciliation, and attach (spec.md §4.4),
// following the teacher's cmd/import.go shape of a single Cobra subcommand
// wrapping one collaborator.
package main

import (
	"fmt"
	"os"

	"github.com/featurebasedb/bulkload/ingestcore/config"
	"github.com/featurebasedb/bulkload/ingestcore/coordinator"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulkload",
		Short: "Parallel bulk ingest of a delimited-text source file into a partitioned table.",
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var configFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load one source file into a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Bind(cmd.Flags(), configFile)
			if err != nil {
				return err
			}

			var log logger.Logger
			if verbose {
				log = logger.NewVerboseLogger(os.Stderr)
			} else {
				log = logger.NewStandardLogger(os.Stderr)
			}

			facade := fswrap.OSFacade{}
			tw := newManifestTableWriter(cfg.DBRoot)
			c := coordinator.New(cfg, facade, log, tw)

			report, err := c.Run()
			if err != nil {
				return err
			}

			log.Infof("loaded table %s: %d rows written, %d rows skipped, %d partitions, %d index errors",
				cfg.TableName, report.RowsWritten, report.RowsSkipped, len(report.PartitionNames), report.IndexErrors)
			if report.Attach != nil && len(report.Attach.Failed) > 0 {
				log.Warnf("%d partitions failed to attach; see AttachReport for detail", len(report.Attach.Failed))
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&configFile, "config", "", "optional TOML configuration file")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	return cmd
}
