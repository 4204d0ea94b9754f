package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phishguard/phishguard/pkg/report"
	"github.com/phishguard/phishguard/pkg/storage"
)

var reportFlags struct {
	outDir string
}

var reportCmd = &cobra.Command{
	Use:   "report <detection-id>",
	Short: "Render the forensic report for a stored detection",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFlags.outDir, "out", "o", "", "Also save the report into this directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dc, err := store.Load(ctx, args[0])
	if err != nil {
		if err == storage.ErrNotFound {
			return fmt.Errorf("no detection matches %q", args[0])
		}
		return err
	}

	idx := newHistoryIndex(cfg)
	backfillIndex(ctx, idx, store)

	r, err := report.NewGenerator(store, idx).Generate(ctx, dc)
	if err != nil {
		return err
	}
	report.Render(os.Stdout, r, dc)

	if reportFlags.outDir != "" {
		path, err := report.SaveToFile(r, dc, reportFlags.outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "report saved to %s\n", path)
	}
	return nil
}
