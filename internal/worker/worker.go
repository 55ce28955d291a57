// Package worker provides async case handling driven by the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// CaseOpener listens for alerts and opens investigation cases for the
// high-severity rules. It is the async half of the case workflow;
// manual case creation goes through the API.
type CaseOpener struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds case opener configuration.
type Config struct {
	// TenantIDs is the list of tenants to watch.
	TenantIDs []string
}

// NewCaseOpener creates a case opener.
func NewCaseOpener(bus domain.EventBus, repo domain.Repository) *CaseOpener {
	ctx, cancel := context.WithCancel(context.Background())
	return &CaseOpener{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the alert topic for the given tenants.
func (w *CaseOpener) Start(cfg Config) error {
	for _, tenantID := range cfg.TenantIDs {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAlert, w.handleAlert)
		if err != nil {
			slog.Error("failed to subscribe for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)

		slog.Info("case opener watching tenant",
			"tenant_id", tenantID,
			"topic", domain.TopicAlert,
		)
	}

	return nil
}

// handleAlert opens a case for high-severity alerts.
func (w *CaseOpener) handleAlert(ctx context.Context, msg *domain.Message) error {
	var alert domain.Alert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		slog.Error("failed to parse alert message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if !HighSeverity(alert.Rule) {
		return nil
	}

	c := &domain.Case{
		ID:              uuid.New().String(),
		TenantID:        msg.TenantID,
		TransactionID:   alert.TransactionID,
		CustomerID:      alert.CustomerID,
		FullName:        alert.FullName,
		Rule:            alert.Rule,
		Details:         alert.Details,
		TransactionDate: alert.TransactionDate,
		CreatedAt:       time.Now().UTC(),
	}

	if err := w.repo.SaveCase(ctx, msg.TenantID, c); err != nil {
		slog.Error("failed to open case",
			"rule", alert.Rule,
			"transaction_id", alert.TransactionID,
			"error", err,
		)
		return err
	}

	payload, _ := json.Marshal(c)
	if err := w.bus.Publish(ctx, msg.TenantID, domain.TopicCaseCreated, payload); err != nil {
		slog.Error("failed to publish case created",
			"case_id", c.ID,
			"error", err,
		)
	}

	slog.Info("case opened from alert",
		"case_id", c.ID,
		"rule", alert.Rule,
		"customer_id", alert.CustomerID,
	)

	return nil
}

// HighSeverity reports whether a rule name marks its alerts as high
// risk. Matching is by substring on the rule name.
func HighSeverity(rule string) bool {
	return strings.Contains(strings.ToLower(rule), "high")
}

// Stop gracefully stops the case opener.
func (w *CaseOpener) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("case opener stopped")
	return nil
}
