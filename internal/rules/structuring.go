package rules

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// Structuring flags amounts split under the reporting threshold: three
// or more Mobile-Money transfers to the same counterparty within a two
// hour window, each strictly below 100k, summing to at least 300k. The
// alert lands on the last transfer of the group. Windows are anchored
// at every transfer, so overlapping windows can flag the same group
// more than once.
type Structuring struct{}

func (r *Structuring) Name() string { return RuleStructuring }

func (r *Structuring) Description() string {
	return "Three or more sub-100k transfers to one payee within 2 hours totaling 300k or more"
}

func (r *Structuring) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		transfers := timeline.FilterType(log.Customer(cust), domain.TypeMobileMoney)
		for i := range transfers {
			window := timeline.WindowFrom(transfers, i, 2*time.Hour)
			order, groups := timeline.GroupByPayee(window)
			for _, payee := range order {
				group := groups[payee]
				if len(group) < 3 {
					continue
				}
				sum := 0.0
				under := true
				for _, tx := range group {
					if tx.Amount >= 100_000 {
						under = false
						break
					}
					sum += tx.Amount
				}
				if !under || sum < 300_000 {
					continue
				}
				last := group[len(group)-1]
				alerts = append(alerts, candidate(last, RuleStructuring,
					fmt.Sprintf("%d transfers to %s totaling KSh %s", len(group), payee, ksh(sum))))
			}
		}
	}
	return alerts
}

// CashInOut flags rapid layering of cash: a deposit of 200k or more
// followed within two hours by Mobile or Online outflows totaling at
// least 80% of the deposit. The alert lands on the deposit. Outflows at
// the exact deposit instant count.
type CashInOut struct{}

func (r *CashInOut) Name() string { return RuleCashInOut }

func (r *CashInOut) Description() string {
	return "Deposit of 200k or more followed by outflows of 80% or more within 2 hours"
}

func (r *CashInOut) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		txns := log.Customer(cust)
		for _, dep := range txns {
			if dep.Type != domain.TypeDeposit || dep.Amount < 200_000 {
				continue
			}
			total := 0.0
			for _, tx := range txns {
				if tx.Type != domain.TypeMobile && tx.Type != domain.TypeOnline {
					continue
				}
				dt := tx.TransactionDate.Sub(dep.TransactionDate)
				if dt < 0 || dt > 2*time.Hour {
					continue
				}
				total += tx.Amount
			}
			if total < 0.8*dep.Amount {
				continue
			}
			alerts = append(alerts, candidate(dep, RuleCashInOut,
				fmt.Sprintf("Deposited KSh %s, withdrew %s in 2h", ksh(dep.Amount), ksh(total))))
		}
	}
	return alerts
}
