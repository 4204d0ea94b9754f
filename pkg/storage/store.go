// Package storage persists completed detection contexts. The default backend
// writes one JSON file per detection; a Postgres backend is available for
// deployments that need shared history.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/phishguard/phishguard/pkg/detection"
)

// ErrNotFound is returned when no detection matches the given ID.
var ErrNotFound = errors.New("storage: detection not found")

// Stats summarizes the stored detection history.
type Stats struct {
	TotalDetections int        `json:"total_detections"`
	PhishingCount   int        `json:"phishing_count"`
	SuspiciousCount int        `json:"suspicious_count"`
	SafeCount       int        `json:"safe_count"`
	UncertainCount  int        `json:"uncertain_count"`
	PhishingRate    float64    `json:"phishing_rate"`
	OldestDetection *time.Time `json:"oldest_detection,omitempty"`
	NewestDetection *time.Time `json:"newest_detection,omitempty"`
}

// Store is the persistence contract for detection contexts.
type Store interface {
	// Save persists a frozen detection context.
	Save(ctx context.Context, dc *detection.Context) error

	// Load returns the detection matching the full or partial ID.
	Load(ctx context.Context, detectionID string) (*detection.Context, error)

	// LoadAll returns detections newest first, up to limit (0 = all).
	LoadAll(ctx context.Context, limit int) ([]*detection.Context, error)

	// SearchBySender returns all detections from the given sender.
	SearchBySender(ctx context.Context, sender string) ([]*detection.Context, error)

	// SearchByURL returns all detections whose extracted or expanded URLs
	// include the given URL.
	SearchByURL(ctx context.Context, url string) ([]*detection.Context, error)

	// Statistics summarizes the stored history.
	Statistics(ctx context.Context) (*Stats, error)

	// Cleanup deletes detections older than the retention period and
	// returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Close releases backend resources.
	Close() error
}

// buildStats tallies verdicts over a detection list (newest first).
func buildStats(all []*detection.Context) *Stats {
	s := &Stats{TotalDetections: len(all)}
	if len(all) == 0 {
		return s
	}
	for _, dc := range all {
		switch dc.FinalVerdict {
		case detection.VerdictPhishing:
			s.PhishingCount++
		case detection.VerdictSuspicious:
			s.SuspiciousCount++
		case detection.VerdictSafe:
			s.SafeCount++
		default:
			s.UncertainCount++
		}
	}
	s.PhishingRate = float64(s.PhishingCount) / float64(len(all))
	oldest := all[len(all)-1].CreatedAt
	newest := all[0].CreatedAt
	s.OldestDetection = &oldest
	s.NewestDetection = &newest
	return s
}

func matchesSender(dc *detection.Context, sender string) bool {
	return dc.Sender == sender
}

func matchesURL(dc *detection.Context, url string) bool {
	for _, u := range dc.ExtractedURLs {
		if u == url {
			return true
		}
	}
	for _, u := range dc.ExpandedURLs {
		if u == url {
			return true
		}
	}
	return false
}
