package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// NightHighValue flags transactions of 50k or more timestamped between
// midnight and 04:00 exclusive. Every qualifying transaction alerts.
type NightHighValue struct{}

func (r *NightHighValue) Name() string { return RuleNightHighValue }

func (r *NightHighValue) Description() string {
	return "Transaction of 50k or more between 00:00 and 04:00"
}

func (r *NightHighValue) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, tx := range log.Transactions() {
		hour := tx.TransactionDate.Hour()
		if hour >= 4 || tx.Amount < 50_000 {
			continue
		}
		alerts = append(alerts, candidate(tx, RuleNightHighValue,
			fmt.Sprintf("Txn at %s for KSh %s",
				tx.TransactionDate.Format("15:04"), ksh(tx.Amount))))
	}
	return alerts
}

// HighRiskMCC flags sustained gambling activity: five or more POS
// transactions with MCC 7995 inside 24 hours. The alert lands on the
// fifth transaction of the first qualifying window and each customer
// alerts at most once.
type HighRiskMCC struct{}

func (r *HighRiskMCC) Name() string { return RuleHighRiskMCC }

func (r *HighRiskMCC) Description() string {
	return "Five or more gambling POS transactions within 24 hours"
}

func (r *HighRiskMCC) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		var gambling []domain.Transaction
		for _, tx := range log.Customer(cust) {
			if tx.Type == domain.TypePOS && tx.MCC == domain.MCCGambling {
				gambling = append(gambling, tx)
			}
		}
		for i := 0; i+4 < len(gambling); i++ {
			fifth := gambling[i+4]
			if fifth.TransactionDate.Sub(gambling[i].TransactionDate) > 24*time.Hour {
				continue
			}
			alerts = append(alerts, candidate(fifth, RuleHighRiskMCC,
				"≥5 gambling txns in 24 hrs"))
			break
		}
	}
	return alerts
}

// SparseHistory flags large transactions from thin files: fewer than
// three transactions in the preceding 90 days and an amount of 500k or
// more. Every qualifying transaction alerts.
type SparseHistory struct{}

func (r *SparseHistory) Name() string { return RuleSparseHistory }

func (r *SparseHistory) Description() string {
	return "Transaction of 500k or more with fewer than 3 transactions in the prior 90 days"
}

func (r *SparseHistory) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		txns := log.Customer(cust)
		for i, tx := range txns {
			if tx.Amount < 500_000 {
				continue
			}
			prior := timeline.CountPrior(txns, i, 90*24*time.Hour)
			if prior >= 3 {
				continue
			}
			alerts = append(alerts, candidate(tx, RuleSparseHistory,
				fmt.Sprintf("%d txns in 90d, then KSh %s", prior, ksh(tx.Amount))))
		}
	}
	return alerts
}

// RoundAmountPOS flags scripted card activity: four consecutive POS
// transactions of the same round amount, each at least 50k and a
// multiple of 1000, inside 60 minutes. The alert lands on the fourth
// transaction of the first qualifying run and each customer alerts at
// most once.
type RoundAmountPOS struct{}

func (r *RoundAmountPOS) Name() string { return RuleRoundAmountPOS }

func (r *RoundAmountPOS) Description() string {
	return "Four consecutive POS transactions of the same round amount within 60 minutes"
}

func (r *RoundAmountPOS) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		var pos []domain.Transaction
		for _, tx := range log.Customer(cust) {
			if tx.Type == domain.TypePOS && tx.Amount >= 50_000 && math.Mod(tx.Amount, 1000) == 0 {
				pos = append(pos, tx)
			}
		}
		for i := 0; i+3 < len(pos); i++ {
			run := pos[i : i+4]
			if run[3].TransactionDate.Sub(run[0].TransactionDate) > time.Hour {
				continue
			}
			same := true
			for _, tx := range run[1:] {
				if tx.Amount != run[0].Amount {
					same = false
					break
				}
			}
			if !same {
				continue
			}
			alerts = append(alerts, candidate(run[3], RuleRoundAmountPOS,
				fmt.Sprintf("4 POS of KSh %s in 60min", kshWhole(run[0].Amount))))
			break
		}
	}
	return alerts
}
