package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/report"
)

var detectFlags struct {
	sender     string
	message    string
	withReport bool
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Analyze a reported SMS message",
	Long: `Run the full detection pipeline over one SMS message.

Usage:
  phishguard detect -s "+6591234567" -m "Your package is held, pay at http://bit.ly/x"
  phishguard detect -s DBS-Alert -m "..." --report`,
	RunE: runDetect,
}

func init() {
	f := detectCmd.Flags()
	f.StringVarP(&detectFlags.sender, "sender", "s", "", "Sender phone number or alphanumeric ID")
	f.StringVarP(&detectFlags.message, "message", "m", "", "Message text to analyze")
	f.BoolVar(&detectFlags.withReport, "report", false, "Print the full forensic report after detection")
	_ = detectCmd.MarkFlagRequired("sender")
	_ = detectCmd.MarkFlagRequired("message")
}

func runDetect(cmd *cobra.Command, _ []string) error {
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

	pipeline := buildPipeline(cfg)
	step := 0
	pipeline.OnStage = func(res detection.StageResult) {
		step++
		if res.Skipped {
			fmt.Printf("  [%d] %-8s skipped (%s)\n", step, res.Stage, res.SkipReason)
			return
		}
		fmt.Printf("  [%d] %-8s %s (confidence %.2f, +%d points)\n",
			step, res.Stage, res.Verdict, res.Confidence, res.RiskPoints)
	}

	fmt.Printf("Analyzing message from %s...\n", detectFlags.sender)
	dc, err := pipeline.Run(ctx, detectFlags.sender, detectFlags.message)
	if err != nil {
		return err
	}

	printVerdict(dc)

	if err := store.Save(ctx, dc); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist detection: %v\n", err)
	} else {
		fmt.Printf("Saved as %s\n", dc.DetectionID)
	}

	if detectFlags.withReport {
		idx := newHistoryIndex(cfg)
		backfillIndex(ctx, idx, store)
		r, err := report.NewGenerator(store, idx).Generate(ctx, dc)
		if err != nil {
			return err
		}
		fmt.Println()
		report.Render(os.Stdout, r, dc)
	}
	return nil
}

func printVerdict(dc *detection.Context) {
	fmt.Println()
	fmt.Printf("Verdict:    %s\n", strings.ToUpper(string(dc.FinalVerdict)))
	fmt.Printf("Confidence: %.1f%%\n", dc.FinalConfidence*100)
	fmt.Printf("Risk score: %d (normalized %d/100)\n", dc.FinalRiskScore, dc.NormalizedScore)
	if dc.EarlyExitReason != "" {
		fmt.Printf("Early exit: %s\n", dc.EarlyExitReason)
	}
	if len(dc.RedFlags) > 0 {
		fmt.Printf("Red flags:  %d\n", len(dc.RedFlags))
		for _, f := range dc.RedFlags {
			fmt.Printf("  - [%s] %s (+%d)\n", f.Stage, f.Description, f.Weight)
		}
	}
	if len(dc.GreenFlags) > 0 {
		fmt.Printf("Green flags: %d\n", len(dc.GreenFlags))
		for _, f := range dc.GreenFlags {
			fmt.Printf("  - [%s] %s\n", f.Stage, f.Description)
		}
	}
}
