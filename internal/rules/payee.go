package rules

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// NewPayeeLarge flags a first-ever transfer to a counterparty of one
// million or more. First-ever is judged across the whole snapshot in
// global time order, and a relation is marked seen whether or not it
// trips the amount threshold.
type NewPayeeLarge struct{}

func (r *NewPayeeLarge) Name() string { return RuleNewPayeeLarge }

func (r *NewPayeeLarge) Description() string {
	return "First-ever transfer to a payee of 1M or more"
}

func (r *NewPayeeLarge) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	seen := timeline.NewFirstSeen()
	for _, tx := range log.ByTime() {
		first := seen.Observe(tx.CustomerID, tx.PayeeID)
		if tx.PayeeID == "" || !first || tx.Amount < 1_000_000 {
			continue
		}
		alerts = append(alerts, candidate(tx, RuleNewPayeeLarge,
			fmt.Sprintf("First-time transfer to %s of KSh %s", tx.PayeeID, ksh(tx.Amount))))
	}
	return alerts
}

// NewPayeeBurst flags fan-out to fresh counterparties: three or more
// first-time payees within 24 hours whose first transfers sum to 200k
// or more. The alert lands on the anchor, the first transfer opening
// the window, and each customer alerts at most once.
type NewPayeeBurst struct{}

func (r *NewPayeeBurst) Name() string { return RuleNewPayeeBurst }

func (r *NewPayeeBurst) Description() string {
	return "Three or more first-time payees within 24 hours totaling 200k or more"
}

func (r *NewPayeeBurst) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		seen := timeline.NewFirstSeen()
		var firsts []domain.Transaction
		for _, tx := range log.Customer(cust) {
			if tx.PayeeID == "" {
				continue
			}
			if seen.Observe(cust, tx.PayeeID) {
				firsts = append(firsts, tx)
			}
		}
		for _, anchor := range firsts {
			count := 0
			sum := 0.0
			for _, tx := range firsts {
				dt := tx.TransactionDate.Sub(anchor.TransactionDate)
				if dt < 0 || dt > 24*time.Hour {
					continue
				}
				count++
				sum += tx.Amount
			}
			if count < 3 || sum < 200_000 {
				continue
			}
			alerts = append(alerts, candidate(anchor, RuleNewPayeeBurst,
				fmt.Sprintf("%d new payees in 24h totaling KSh %s", count, ksh(sum))))
			break
		}
	}
	return alerts
}
