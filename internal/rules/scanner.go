package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// Scanner runs a set of detectors over one scan snapshot.
type Scanner struct {
	detectors  []Detector
	maxWorkers int
}

// NewScanner creates a scanner over the given detectors. With none
// given it runs the full catalogue.
func NewScanner(maxWorkers int, detectors ...Detector) *Scanner {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if len(detectors) == 0 {
		detectors = Catalogue()
	}
	return &Scanner{detectors: detectors, maxWorkers: maxWorkers}
}

// Detectors returns the scanner's detector set in evaluation order.
func (s *Scanner) Detectors() []Detector {
	return s.detectors
}

// Scan evaluates every detector against the snapshot and returns the
// merged alert list. Detectors run in parallel but the merge follows
// detector order, so the output sequence is reproducible. A panicking
// detector loses only its own alerts; the rest of the scan proceeds.
func (s *Scanner) Scan(ctx context.Context, log *timeline.Log) []domain.Alert {
	results := make([][]domain.Alert, len(s.detectors))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, s.maxWorkers)

	for i, det := range s.detectors {
		wg.Add(1)
		go func(idx int, d Detector) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = s.runDetector(ctx, d, log)
		}(i, det)
	}

	wg.Wait()

	var alerts []domain.Alert
	for _, r := range results {
		alerts = append(alerts, r...)
	}
	return alerts
}

// runDetector evaluates one detector, converting a panic into an empty
// result so a faulty rule cannot take down the scan.
func (s *Scanner) runDetector(ctx context.Context, d Detector, log *timeline.Log) (alerts []domain.Alert) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "detector panicked, dropping its alerts",
				"rule", d.Name(),
				"error", fmt.Sprint(r),
			)
			alerts = nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil
	}
	return d.Detect(log)
}
