package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse stored detections",
}

var historyListFlags struct {
	limit  int
	sender string
	url    string
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored detections, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <detection-id>",
	Short: "Print one stored detection as JSON (partial IDs accepted)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored detection history",
	RunE:  runHistoryStats,
}

var historyCleanupFlags struct {
	retentionDays int
}

var historyCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete detections older than the retention period",
	RunE:  runHistoryCleanup,
}

func init() {
	f := historyListCmd.Flags()
	f.IntVarP(&historyListFlags.limit, "limit", "n", 20, "Maximum detections to list (0 = all)")
	f.StringVar(&historyListFlags.sender, "sender", "", "Only detections from this sender")
	f.StringVar(&historyListFlags.url, "url", "", "Only detections containing this URL")

	historyCleanupCmd.Flags().IntVar(&historyCleanupFlags.retentionDays, "older-than", 90, "Delete detections older than this many days")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyCleanupCmd)
}

func withStore(cmd *cobra.Command, fn func(store storage.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(store storage.Store) error {
		ctx := cmd.Context()

		var (
			all []*detection.Context
			err error
		)
		switch {
		case historyListFlags.sender != "":
			all, err = store.SearchBySender(ctx, historyListFlags.sender)
		case historyListFlags.url != "":
			all, err = store.SearchByURL(ctx, historyListFlags.url)
		default:
			all, err = store.LoadAll(ctx, historyListFlags.limit)
		}
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("no detections found")
			return nil
		}
		if historyListFlags.limit > 0 && len(all) > historyListFlags.limit {
			all = all[:historyListFlags.limit]
		}

		for _, dc := range all {
			fmt.Printf("%s  %s  %-10s  %3d pts  %s\n",
				dc.DetectionID[:8],
				dc.CreatedAt.Format("2006-01-02 15:04"),
				dc.FinalVerdict,
				dc.FinalRiskScore,
				truncate(dc.MessageText, 60))
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store storage.Store) error {
		dc, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dc)
	})
}

func runHistoryStats(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(store storage.Store) error {
		stats, err := store.Statistics(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Total detections: %d\n", stats.TotalDetections)
		fmt.Printf("Phishing:         %d\n", stats.PhishingCount)
		fmt.Printf("Suspicious:       %d\n", stats.SuspiciousCount)
		fmt.Printf("Safe:             %d\n", stats.SafeCount)
		fmt.Printf("Uncertain:        %d\n", stats.UncertainCount)
		fmt.Printf("Phishing rate:    %.1f%%\n", stats.PhishingRate*100)
		if stats.OldestDetection != nil {
			fmt.Printf("Oldest:           %s\n", stats.OldestDetection.Format(time.RFC3339))
		}
		if stats.NewestDetection != nil {
			fmt.Printf("Newest:           %s\n", stats.NewestDetection.Format(time.RFC3339))
		}
		return nil
	})
}

func runHistoryCleanup(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(store storage.Store) error {
		retention := time.Duration(historyCleanupFlags.retentionDays) * 24 * time.Hour
		removed, err := store.Cleanup(cmd.Context(), retention)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d detections older than %d days\n", removed, historyCleanupFlags.retentionDays)
		return nil
	})
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
