package rules

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/geo"
	"github.com/opensource-finance/harrier/internal/timeline"
)

const impossibleTravelKm = 100

// VelocityGeo flags ATM withdrawal pairs that are close in time but far
// apart on the ground: two ATM transactions within 60 minutes more than
// 100 km apart. Every qualifying pair alerts on its later transaction.
type VelocityGeo struct{}

func (r *VelocityGeo) Name() string { return RuleVelocityGeo }

func (r *VelocityGeo) Description() string {
	return "Two ATM withdrawals within 60 minutes more than 100 km apart"
}

func (r *VelocityGeo) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		atm := timeline.FilterType(log.Customer(cust), domain.TypeATM)
		for _, p := range timeline.PairsWithin(atm, 60*time.Minute) {
			dist := geo.Distance(
				p.Earlier.Latitude, p.Earlier.Longitude,
				p.Later.Latitude, p.Later.Longitude,
			)
			if dist <= impossibleTravelKm {
				continue
			}
			mins := p.Later.TransactionDate.Sub(p.Earlier.TransactionDate).Minutes()
			alerts = append(alerts, candidate(p.Later, RuleVelocityGeo,
				fmt.Sprintf("Two ATM txns within %.1f mins, %.1f km apart", mins, dist)))
		}
	}
	return alerts
}

// CrossChannelGeo flags a card-present transaction followed quickly by
// a card-not-present one from far away: POS or ATM, then CNP or Online
// within 30 minutes, more than 100 km apart. The gap must be strictly
// positive; simultaneous transactions do not pair.
type CrossChannelGeo struct{}

func (r *CrossChannelGeo) Name() string { return RuleCrossChannelGeo }

func (r *CrossChannelGeo) Description() string {
	return "Card-present then card-not-present within 30 minutes more than 100 km apart"
}

func (r *CrossChannelGeo) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, cust := range log.Customers() {
		for _, p := range timeline.PairsWithin(log.Customer(cust), 30*time.Minute) {
			if !cardPresent(p.Earlier.Type) || !cardAbsent(p.Later.Type) {
				continue
			}
			dt := p.Later.TransactionDate.Sub(p.Earlier.TransactionDate)
			if dt <= 0 {
				continue
			}
			dist := geo.Distance(
				p.Earlier.Latitude, p.Earlier.Longitude,
				p.Later.Latitude, p.Later.Longitude,
			)
			if dist <= impossibleTravelKm {
				continue
			}
			alerts = append(alerts, candidate(p.Later, RuleCrossChannelGeo,
				fmt.Sprintf("%s→%s in %.1fmin, %.1fkm apart",
					p.Earlier.Type, p.Later.Type, dt.Minutes(), dist)))
		}
	}
	return alerts
}

func cardPresent(txType string) bool {
	return txType == domain.TypePOS || txType == domain.TypeATM
}

func cardAbsent(txType string) bool {
	return txType == domain.TypeCNP || txType == domain.TypeOnline
}
