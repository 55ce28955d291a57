// Package rules implements the fixed fraud detection catalogue.
//
// Each detector is a pure function over the shared scan snapshot: it
// reads the timeline, never mutates it, and returns its alert
// candidates in discovery order. The catalogue order is fixed and the
// emitted alert sequence always follows it.
package rules

import (
	"github.com/dustin/go-humanize"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// Detector is one rule of the catalogue.
type Detector interface {
	// Name is the rule name persisted on every alert it produces.
	Name() string

	// Description is a one-line operator-facing summary.
	Description() string

	// Detect scans the snapshot and returns alert candidates in
	// discovery order. It must not mutate the log.
	Detect(log *timeline.Log) []domain.Alert
}

// Rule names, persisted verbatim on alerts. The summary endpoint counts
// "high" risk by substring match on these, so renames are breaking.
const (
	RuleVelocityGeo     = "Velocity + Geo"
	RuleStructuring     = "Structuring"
	RuleNightHighValue  = "Night-time high-value"
	RuleNewPayeeLarge   = "New payee large transfer"
	RuleHighRiskMCC     = "High-risk MCC"
	RuleCrossChannelGeo = "POS→CNP 30m >100km"
	RuleSparseHistory   = "<3 txns in 90d + ≥500k"
	RuleNewPayeeBurst   = "≥3 new payees 24h ≥200k"
	RuleCashInOut       = "IN ≥200k + OUT ≥80% in 2h"
	RuleRoundAmountPOS  = "4+ POS same amt in 60min"
)

// Catalogue returns the ten detectors in their fixed evaluation order.
func Catalogue() []Detector {
	return []Detector{
		&VelocityGeo{},
		&Structuring{},
		&NightHighValue{},
		&NewPayeeLarge{},
		&HighRiskMCC{},
		&CrossChannelGeo{},
		&SparseHistory{},
		&NewPayeeBurst{},
		&CashInOut{},
		&RoundAmountPOS{},
	}
}

// ksh renders an amount as "1,234.56" with fixed two decimals for
// alert details.
func ksh(amount float64) string {
	return humanize.FormatFloat("#,###.##", amount)
}

// kshWhole renders a whole amount as "1,234".
func kshWhole(amount float64) string {
	return humanize.FormatFloat("#,###.", amount)
}

// candidate builds an alert for the triggering transaction; identifiers
// and the persistence timestamp are filled in by the emitter.
func candidate(tx domain.Transaction, rule, details string) domain.Alert {
	return domain.Alert{
		TransactionID:   tx.TransactionID,
		CustomerID:      tx.CustomerID,
		FullName:        tx.FullName,
		Rule:            rule,
		Details:         details,
		TransactionDate: tx.TransactionDate,
	}
}
