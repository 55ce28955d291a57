package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

func newHarness(t *testing.T) (domain.Repository, *bus.ChannelBus, *CaseOpener) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	b := bus.NewChannelBus(64)
	t.Cleanup(func() { b.Close() })

	opener := NewCaseOpener(b, repo)
	if err := opener.Start(Config{TenantIDs: []string{"tenant-1"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { opener.Stop() })

	return repo, b, opener
}

func publishAlert(t *testing.T, b *bus.ChannelBus, tenantID string, alert domain.Alert) {
	t.Helper()
	payload, err := json.Marshal(alert)
	if err != nil {
		t.Fatalf("marshal alert: %v", err)
	}
	if err := b.Publish(context.Background(), tenantID, domain.TopicAlert, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func waitForCases(t *testing.T, repo domain.Repository, tenantID string, n int) []domain.Case {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cases, err := repo.ListCases(context.Background(), tenantID)
		if err != nil {
			t.Fatalf("ListCases: %v", err)
		}
		if len(cases) >= n {
			return cases
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d cases", n)
	return nil
}

func TestHighSeverity(t *testing.T) {
	cases := []struct {
		rule string
		want bool
	}{
		{rules.RuleNightHighValue, true},
		{rules.RuleHighRiskMCC, true},
		{rules.RuleStructuring, false},
		{rules.RuleVelocityGeo, false},
		{"Custom HIGH exposure screen", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := HighSeverity(tc.rule); got != tc.want {
			t.Errorf("HighSeverity(%q) = %v, expected %v", tc.rule, got, tc.want)
		}
	}
}

func TestOpensCaseForHighSeverityAlert(t *testing.T) {
	repo, b, _ := newHarness(t)
	ctx := context.Background()

	txDate := time.Date(2026, 5, 1, 2, 15, 0, 0, time.UTC)
	alert := domain.Alert{
		ID:              "al-1",
		TenantID:        "tenant-1",
		TransactionID:   "t1",
		CustomerID:      "CUST-1",
		FullName:        "Grace Wanjiru",
		Rule:            rules.RuleNightHighValue,
		Details:         "Txn at 02:15 for KSh 60,000.00",
		TransactionDate: txDate,
	}

	// Expect the downstream event as well
	created := make(chan *domain.Message, 1)
	b.Subscribe(ctx, "tenant-1", domain.TopicCaseCreated, func(ctx context.Context, msg *domain.Message) error {
		created <- msg
		return nil
	})

	publishAlert(t, b, "tenant-1", alert)
	cases := waitForCases(t, repo, "tenant-1", 1)

	c := cases[0]
	if c.Rule != rules.RuleNightHighValue || c.CustomerID != "CUST-1" || c.TransactionID != "t1" {
		t.Errorf("case fields differ from the alert: %+v", c)
	}
	if c.Details != alert.Details || c.FullName != "Grace Wanjiru" {
		t.Errorf("case fields differ from the alert: %+v", c)
	}
	if !c.TransactionDate.Equal(txDate) {
		t.Errorf("transaction date changed: %v", c.TransactionDate)
	}
	if c.ID == "" || c.ID == alert.ID {
		t.Errorf("expected a fresh case ID, got %q", c.ID)
	}

	select {
	case msg := <-created:
		var published domain.Case
		if err := json.Unmarshal(msg.Payload, &published); err != nil {
			t.Fatalf("unmarshal case event: %v", err)
		}
		if published.ID != c.ID {
			t.Errorf("published case %s differs from saved %s", published.ID, c.ID)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for the case created event")
	}
}

func TestIgnoresLowSeverityAlert(t *testing.T) {
	repo, b, _ := newHarness(t)

	publishAlert(t, b, "tenant-1", domain.Alert{
		ID:            "al-1",
		TransactionID: "t1",
		CustomerID:    "CUST-1",
		Rule:          rules.RuleStructuring,
		Details:       "4 transfers to P1 totaling KSh 360,000.00",
	})

	time.Sleep(100 * time.Millisecond)
	cases, err := repo.ListCases(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(cases) != 0 {
		t.Errorf("expected no case for a low severity alert, got %d", len(cases))
	}
}

func TestIgnoresUnwatchedTenant(t *testing.T) {
	repo, b, _ := newHarness(t)

	publishAlert(t, b, "tenant-2", domain.Alert{
		ID:            "al-1",
		TransactionID: "t1",
		CustomerID:    "CUST-1",
		Rule:          rules.RuleNightHighValue,
	})

	time.Sleep(100 * time.Millisecond)
	for _, tenant := range []string{"tenant-1", "tenant-2"} {
		cases, err := repo.ListCases(context.Background(), tenant)
		if err != nil {
			t.Fatalf("ListCases: %v", err)
		}
		if len(cases) != 0 {
			t.Errorf("expected no cases for %s, got %d", tenant, len(cases))
		}
	}
}

func TestStopUnsubscribes(t *testing.T) {
	repo, b, opener := newHarness(t)

	if err := opener.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	publishAlert(t, b, "tenant-1", domain.Alert{
		ID:            "al-1",
		TransactionID: "t1",
		CustomerID:    "CUST-1",
		Rule:          rules.RuleNightHighValue,
	})

	time.Sleep(100 * time.Millisecond)
	cases, err := repo.ListCases(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(cases) != 0 {
		t.Errorf("expected no cases after stop, got %d", len(cases))
	}
}
