// Package scan orchestrates a fraud detection run: load the history,
// resolve names, evaluate the catalogue and the tenant's screens, then
// persist and publish every alert.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/resolver"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// Service runs scans for tenants.
type Service struct {
	repo       domain.Repository
	bus        domain.EventBus
	names      *resolver.Resolver
	screens    *rules.ScreenEngine
	maxWorkers int
}

// New creates a scan service. The screen engine may be nil when custom
// screening is not configured.
func New(repo domain.Repository, bus domain.EventBus, names *resolver.Resolver, screens *rules.ScreenEngine, maxWorkers int) *Service {
	return &Service{
		repo:       repo,
		bus:        bus,
		names:      names,
		screens:    screens,
		maxWorkers: maxWorkers,
	}
}

// Result is the outcome of one scan: the snapshot the detectors saw and
// the alerts they produced, rendered for display.
type Result struct {
	Transactions []domain.Transaction `json:"transactions"`
	Alerts       []domain.AlertView   `json:"alerts"`
	Skipped      int                  `json:"skipped,omitempty"`
}

// startedEvent is the payload published on scan start.
type startedEvent struct {
	TenantID  string    `json:"tenantId"`
	Since     time.Time `json:"since,omitzero"`
	StartedAt time.Time `json:"startedAt"`
}

// finishedEvent is the payload published on scan completion.
type finishedEvent struct {
	TenantID     string `json:"tenantId"`
	Transactions int    `json:"transactions"`
	Alerts       int    `json:"alerts"`
	Skipped      int    `json:"skipped"`
	DurationMs   int64  `json:"durationMs"`
}

// Run executes one full scan over the tenant's history from since
// onward (zero means everything). Alert persistence and publication
// failures are logged and skipped; the scan itself only fails when the
// history cannot be loaded.
func (s *Service) Run(ctx context.Context, tenantID string, since time.Time) (*Result, error) {
	start := time.Now()

	s.publish(ctx, tenantID, domain.TopicScanStarted, startedEvent{
		TenantID:  tenantID,
		Since:     since,
		StartedAt: start.UTC(),
	})

	raw, err := s.repo.ListTransactions(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	log := timeline.NewLog(raw)
	log.ApplyNames(s.names.Names(ctx, tenantID, log.Customers()))

	detectors := rules.Catalogue()
	if s.screens != nil {
		detectors = append(detectors, s.screens.Detectors()...)
	}
	scanner := rules.NewScanner(s.maxWorkers, detectors...)

	alerts := scanner.Scan(ctx, log)

	views := make([]domain.AlertView, 0, len(alerts))
	for i := range alerts {
		alert := &alerts[i]
		alert.ID = uuid.New().String()
		alert.TenantID = tenantID
		alert.CreatedAt = time.Now().UTC()

		if err := s.repo.SaveAlert(ctx, tenantID, alert); err != nil {
			slog.ErrorContext(ctx, "failed to save alert",
				"rule", alert.Rule,
				"transaction_id", alert.TransactionID,
				"error", err,
			)
		}

		if payload, err := json.Marshal(alert); err == nil {
			if err := s.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				slog.WarnContext(ctx, "failed to publish alert",
					"rule", alert.Rule,
					"error", err,
				)
			}
		}

		views = append(views, alert.View())
	}

	s.publish(ctx, tenantID, domain.TopicScanFinished, finishedEvent{
		TenantID:     tenantID,
		Transactions: log.Len(),
		Alerts:       len(views),
		Skipped:      log.Skipped,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	slog.InfoContext(ctx, "scan complete",
		"tenant_id", tenantID,
		"transactions", log.Len(),
		"alerts", len(views),
		"skipped", log.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Transactions: log.Transactions(),
		Alerts:       views,
		Skipped:      log.Skipped,
	}, nil
}

// ReloadScreens re-reads the tenant's screening rules from storage into
// the screen engine.
func (s *Service) ReloadScreens(ctx context.Context, tenantID string) (int, error) {
	if s.screens == nil {
		return 0, nil
	}

	cfgs, err := s.repo.ListScreenConfigs(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to load screen configs: %w", err)
	}

	if err := s.screens.Reload(cfgs); err != nil {
		return 0, err
	}
	return s.screens.Count(), nil
}

func (s *Service) publish(ctx context.Context, tenantID, topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			"topic", topic,
			"error", err,
		)
	}
}
