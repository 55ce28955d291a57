package rules

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

var (
	nairobiLat, nairobiLon = -1.2921, 36.8219
	mombasaLat, mombasaLon = -4.0435, 39.6682
)

func mk(id, cust string, at time.Time, typ string, amount float64) domain.Transaction {
	return domain.Transaction{
		TransactionID:   id,
		CustomerID:      cust,
		FullName:        "Test Customer",
		Type:            typ,
		Amount:          amount,
		TransactionDate: at,
	}
}

func at(tx domain.Transaction, lat, lon float64) domain.Transaction {
	tx.Latitude, tx.Longitude = &lat, &lon
	return tx
}

func toPayee(tx domain.Transaction, payee string) domain.Transaction {
	tx.PayeeID = payee
	return tx
}

func withMCC(tx domain.Transaction, mcc int) domain.Transaction {
	tx.MCC = mcc
	return tx
}

func detect(t *testing.T, d Detector, txns ...domain.Transaction) []domain.Alert {
	t.Helper()
	return d.Detect(timeline.NewLog(txns))
}

func TestVelocityGeo(t *testing.T) {
	far := func(id string, offset time.Duration) domain.Transaction {
		return at(mk(id, "A", base.Add(offset), domain.TypeATM, 20000), mombasaLat, mombasaLon)
	}
	near := at(mk("a1", "A", base, domain.TypeATM, 20000), nairobiLat, nairobiLon)

	t.Run("FarPairWithinHour", func(t *testing.T) {
		alerts := detect(t, &VelocityGeo{}, near, far("a2", 30*time.Minute))
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "a2" {
			t.Errorf("expected alert on the later transaction, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Rule != RuleVelocityGeo {
			t.Errorf("unexpected rule name %q", alerts[0].Rule)
		}
		if !strings.HasPrefix(alerts[0].Details, "Two ATM txns within 30.0 mins") {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("ExactlySixtyMinutes", func(t *testing.T) {
		if got := detect(t, &VelocityGeo{}, near, far("a2", 60*time.Minute)); len(got) != 1 {
			t.Errorf("expected the 60 minute boundary to trigger, got %d alerts", len(got))
		}
	})

	t.Run("SeventyMinutesApart", func(t *testing.T) {
		if got := detect(t, &VelocityGeo{}, near, far("a2", 70*time.Minute)); len(got) != 0 {
			t.Errorf("expected no alert beyond the window, got %d", len(got))
		}
	})

	t.Run("CloseTogether", func(t *testing.T) {
		other := at(mk("a2", "A", base.Add(30*time.Minute), domain.TypeATM, 20000), nairobiLat, nairobiLon)
		if got := detect(t, &VelocityGeo{}, near, other); len(got) != 0 {
			t.Errorf("expected no alert within 100 km, got %d", len(got))
		}
	})

	t.Run("MissingCoordinates", func(t *testing.T) {
		blind := mk("a2", "A", base.Add(30*time.Minute), domain.TypeATM, 20000)
		if got := detect(t, &VelocityGeo{}, near, blind); len(got) != 0 {
			t.Errorf("expected missing coordinates to never trigger, got %d", len(got))
		}
	})

	t.Run("DifferentCustomers", func(t *testing.T) {
		other := at(mk("b1", "B", base.Add(30*time.Minute), domain.TypeATM, 20000), mombasaLat, mombasaLon)
		if got := detect(t, &VelocityGeo{}, near, other); len(got) != 0 {
			t.Errorf("expected no cross-customer pairing, got %d", len(got))
		}
	})

	t.Run("EveryQualifyingPairAlerts", func(t *testing.T) {
		alerts := detect(t, &VelocityGeo{}, near, far("a2", 20*time.Minute), far("a3", 40*time.Minute))
		// (a1,a2), (a1,a3): a2->a3 is close together in Mombasa
		if len(alerts) != 2 {
			t.Errorf("expected 2 alerts, got %d", len(alerts))
		}
	})
}

func TestStructuring(t *testing.T) {
	transfer := func(id string, offset time.Duration, amount float64, payee string) domain.Transaction {
		return toPayee(mk(id, "A", base.Add(offset), domain.TypeMobileMoney, amount), payee)
	}

	t.Run("FourTransfersUnderThreshold", func(t *testing.T) {
		alerts := detect(t, &Structuring{},
			transfer("t1", 0, 90000, "P1"),
			transfer("t2", 20*time.Minute, 90000, "P1"),
			transfer("t3", 40*time.Minute, 90000, "P1"),
			transfer("t4", 60*time.Minute, 90000, "P1"),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "t4" {
			t.Errorf("expected alert on the last transfer, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Details != "4 transfers to P1 totaling KSh 360,000.00" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("ExactlyHundredThousandEach", func(t *testing.T) {
		alerts := detect(t, &Structuring{},
			transfer("t1", 0, 100000, "P1"),
			transfer("t2", 20*time.Minute, 100000, "P1"),
			transfer("t3", 40*time.Minute, 100000, "P1"),
			transfer("t4", 60*time.Minute, 100000, "P1"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert when transfers are not strictly under 100k, got %d", len(alerts))
		}
	})

	t.Run("SumBelowThreshold", func(t *testing.T) {
		alerts := detect(t, &Structuring{},
			transfer("t1", 0, 90000, "P1"),
			transfer("t2", 20*time.Minute, 90000, "P1"),
			transfer("t3", 40*time.Minute, 90000, "P1"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert for 270k total, got %d", len(alerts))
		}
	})

	t.Run("MixedPayees", func(t *testing.T) {
		alerts := detect(t, &Structuring{},
			transfer("t1", 0, 90000, "P1"),
			transfer("t2", 10*time.Minute, 90000, "P2"),
			transfer("t3", 20*time.Minute, 90000, "P1"),
			transfer("t4", 30*time.Minute, 90000, "P2"),
			transfer("t5", 40*time.Minute, 90000, "P1"),
			transfer("t6", 50*time.Minute, 90000, "P1"),
		)
		// Only the P1 group reaches 4 transfers and 300k
		for _, a := range alerts {
			if !strings.Contains(a.Details, "to P1 ") {
				t.Errorf("expected only P1 group to alert, got %q", a.Details)
			}
		}
		if len(alerts) == 0 {
			t.Error("expected the P1 group to alert")
		}
	})

	t.Run("OutsideTwoHours", func(t *testing.T) {
		alerts := detect(t, &Structuring{},
			transfer("t1", 0, 90000, "P1"),
			transfer("t2", 3*time.Hour, 90000, "P1"),
			transfer("t3", 6*time.Hour, 90000, "P1"),
			transfer("t4", 9*time.Hour, 90000, "P1"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert when transfers spread out, got %d", len(alerts))
		}
	})
}

func TestNightHighValue(t *testing.T) {
	midnight := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		at     time.Time
		amount float64
		want   int
	}{
		{"QuarterPastTwo", midnight.Add(2*time.Hour + 15*time.Minute), 60000, 1},
		{"ExactMidnight", midnight, 50000, 1},
		{"ThreeFiftyNine", midnight.Add(3*time.Hour + 59*time.Minute), 1000000, 1},
		{"FourSharp", midnight.Add(4 * time.Hour), 1000000, 0},
		{"Daytime", midnight.Add(14 * time.Hour), 1000000, 0},
		{"BelowAmount", midnight.Add(2 * time.Hour), 49999, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alerts := detect(t, &NightHighValue{}, mk("t1", "A", tc.at, domain.TypeOnline, tc.amount))
			if len(alerts) != tc.want {
				t.Errorf("expected %d alerts, got %d", tc.want, len(alerts))
			}
		})
	}

	t.Run("Details", func(t *testing.T) {
		alerts := detect(t, &NightHighValue{},
			mk("t1", "A", midnight.Add(2*time.Hour+15*time.Minute), domain.TypeOnline, 60000))
		if alerts[0].Details != "Txn at 02:15 for KSh 60,000.00" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})
}

func TestNewPayeeLarge(t *testing.T) {
	t.Run("FirstTransferOverMillion", func(t *testing.T) {
		alerts := detect(t, &NewPayeeLarge{},
			toPayee(mk("t1", "A", base, domain.TypeOnline, 2000000), "P1"))
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].Details != "First-time transfer to P1 of KSh 2,000,000.00" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("SmallFirstTransferMarksSeen", func(t *testing.T) {
		alerts := detect(t, &NewPayeeLarge{},
			toPayee(mk("t1", "A", base, domain.TypeOnline, 500), "P1"),
			toPayee(mk("t2", "A", base.Add(time.Hour), domain.TypeOnline, 5000000), "P1"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected repeat payee to never alert, got %d", len(alerts))
		}
	})

	t.Run("EmptyPayee", func(t *testing.T) {
		alerts := detect(t, &NewPayeeLarge{}, mk("t1", "A", base, domain.TypeOnline, 5000000))
		if len(alerts) != 0 {
			t.Errorf("expected no alert without a payee, got %d", len(alerts))
		}
	})

	t.Run("ScopedPerCustomer", func(t *testing.T) {
		alerts := detect(t, &NewPayeeLarge{},
			toPayee(mk("t1", "A", base, domain.TypeOnline, 1000000), "P1"),
			toPayee(mk("t2", "B", base.Add(time.Hour), domain.TypeOnline, 1000000), "P1"),
		)
		if len(alerts) != 2 {
			t.Errorf("expected each customer's first to alert, got %d", len(alerts))
		}
	})

	t.Run("GlobalTimeOrder", func(t *testing.T) {
		// Customer Z's transaction is loaded first but happens second:
		// the earlier one is the first occurrence
		alerts := detect(t, &NewPayeeLarge{},
			toPayee(mk("late", "Z", base.Add(time.Hour), domain.TypeOnline, 1000000), "P1"),
			toPayee(mk("early", "Z", base, domain.TypeOnline, 400), "P1"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected the earlier small transfer to mark the relation, got %d alerts", len(alerts))
		}
	})
}

func TestHighRiskMCC(t *testing.T) {
	bet := func(id string, offset time.Duration) domain.Transaction {
		return withMCC(mk(id, "A", base.Add(offset), domain.TypePOS, 3000), domain.MCCGambling)
	}

	t.Run("FiveInDay", func(t *testing.T) {
		alerts := detect(t, &HighRiskMCC{},
			bet("g1", 0), bet("g2", time.Hour), bet("g3", 2*time.Hour),
			bet("g4", 3*time.Hour), bet("g5", 4*time.Hour),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "g5" {
			t.Errorf("expected alert on the fifth transaction, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Details != "≥5 gambling txns in 24 hrs" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("StopsAfterFirstWindow", func(t *testing.T) {
		alerts := detect(t, &HighRiskMCC{},
			bet("g1", 0), bet("g2", time.Hour), bet("g3", 2*time.Hour),
			bet("g4", 3*time.Hour), bet("g5", 4*time.Hour), bet("g6", 5*time.Hour),
		)
		if len(alerts) != 1 {
			t.Errorf("expected a single alert per customer, got %d", len(alerts))
		}
	})

	t.Run("LaterWindowQualifies", func(t *testing.T) {
		// The first five span more than 24h; dropping the head brings the
		// window inside it
		alerts := detect(t, &HighRiskMCC{},
			bet("g1", 0), bet("g2", 30*time.Hour), bet("g3", 31*time.Hour),
			bet("g4", 32*time.Hour), bet("g5", 33*time.Hour), bet("g6", 34*time.Hour),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "g6" {
			t.Errorf("expected alert on g6, got %s", alerts[0].TransactionID)
		}
	})

	t.Run("WrongMCC", func(t *testing.T) {
		grocery := func(id string, offset time.Duration) domain.Transaction {
			return withMCC(mk(id, "A", base.Add(offset), domain.TypePOS, 3000), 5411)
		}
		alerts := detect(t, &HighRiskMCC{},
			grocery("g1", 0), grocery("g2", time.Hour), grocery("g3", 2*time.Hour),
			grocery("g4", 3*time.Hour), grocery("g5", 4*time.Hour),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert for ordinary MCC, got %d", len(alerts))
		}
	})
}

func TestCrossChannelGeo(t *testing.T) {
	pos := at(mk("t1", "A", base, domain.TypePOS, 5000), nairobiLat, nairobiLon)

	t.Run("POSThenOnlineFarAway", func(t *testing.T) {
		online := at(mk("t2", "A", base.Add(20*time.Minute), domain.TypeOnline, 8000), mombasaLat, mombasaLon)
		alerts := detect(t, &CrossChannelGeo{}, pos, online)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "t2" {
			t.Errorf("expected alert on the later transaction, got %s", alerts[0].TransactionID)
		}
		if !strings.HasPrefix(alerts[0].Details, "POS→Online in 20.0min") {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("SimultaneousDoesNotPair", func(t *testing.T) {
		online := at(mk("t2", "A", base, domain.TypeOnline, 8000), mombasaLat, mombasaLon)
		if got := detect(t, &CrossChannelGeo{}, pos, online); len(got) != 0 {
			t.Errorf("expected a strictly positive gap requirement, got %d alerts", len(got))
		}
	})

	t.Run("WrongDirection", func(t *testing.T) {
		online := at(mk("t0", "A", base.Add(-20*time.Minute), domain.TypeOnline, 8000), mombasaLat, mombasaLon)
		if got := detect(t, &CrossChannelGeo{}, pos, online); len(got) != 0 {
			t.Errorf("expected card-present first, got %d alerts", len(got))
		}
	})

	t.Run("ATMThenCNP", func(t *testing.T) {
		atm := at(mk("t1", "A", base, domain.TypeATM, 5000), nairobiLat, nairobiLon)
		cnp := at(mk("t2", "A", base.Add(25*time.Minute), domain.TypeCNP, 8000), mombasaLat, mombasaLon)
		if got := detect(t, &CrossChannelGeo{}, atm, cnp); len(got) != 1 {
			t.Errorf("expected ATM to CNP to trigger, got %d", len(got))
		}
	})

	t.Run("BeyondThirtyMinutes", func(t *testing.T) {
		online := at(mk("t2", "A", base.Add(31*time.Minute), domain.TypeOnline, 8000), mombasaLat, mombasaLon)
		if got := detect(t, &CrossChannelGeo{}, pos, online); len(got) != 0 {
			t.Errorf("expected no alert beyond the window, got %d", len(got))
		}
	})
}

func TestSparseHistory(t *testing.T) {
	day := 24 * time.Hour

	t.Run("NoHistory", func(t *testing.T) {
		alerts := detect(t, &SparseHistory{}, mk("t1", "A", base, domain.TypeOnline, 600000))
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].Details != "0 txns in 90d, then KSh 600,000.00" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("TwoPriors", func(t *testing.T) {
		alerts := detect(t, &SparseHistory{},
			mk("t1", "A", base.Add(-30*day), domain.TypePOS, 1000),
			mk("t2", "A", base.Add(-10*day), domain.TypePOS, 1000),
			mk("t3", "A", base, domain.TypeOnline, 600000),
		)
		// t1 and t2 each also have a sparse history but are under 500k
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "t3" {
			t.Errorf("expected alert on the large transaction, got %s", alerts[0].TransactionID)
		}
	})

	t.Run("ThreePriors", func(t *testing.T) {
		alerts := detect(t, &SparseHistory{},
			mk("t1", "A", base.Add(-30*day), domain.TypePOS, 1000),
			mk("t2", "A", base.Add(-20*day), domain.TypePOS, 1000),
			mk("t3", "A", base.Add(-10*day), domain.TypePOS, 1000),
			mk("t4", "A", base, domain.TypeOnline, 600000),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert with 3 recent transactions, got %d", len(alerts))
		}
	})

	t.Run("StalePriorsDoNotCount", func(t *testing.T) {
		alerts := detect(t, &SparseHistory{},
			mk("t1", "A", base.Add(-200*day), domain.TypePOS, 1000),
			mk("t2", "A", base.Add(-150*day), domain.TypePOS, 1000),
			mk("t3", "A", base.Add(-100*day), domain.TypePOS, 1000),
			mk("t4", "A", base, domain.TypeOnline, 500000),
		)
		if len(alerts) != 1 {
			t.Errorf("expected stale history to alert, got %d", len(alerts))
		}
	})

	t.Run("BelowAmount", func(t *testing.T) {
		alerts := detect(t, &SparseHistory{}, mk("t1", "A", base, domain.TypeOnline, 499999))
		if len(alerts) != 0 {
			t.Errorf("expected no alert under 500k, got %d", len(alerts))
		}
	})
}

func TestNewPayeeBurst(t *testing.T) {
	first := func(id string, offset time.Duration, amount float64, payee string) domain.Transaction {
		return toPayee(mk(id, "A", base.Add(offset), domain.TypeMobileMoney, amount), payee)
	}

	t.Run("ThreeNewPayeesInDay", func(t *testing.T) {
		alerts := detect(t, &NewPayeeBurst{},
			first("t1", 0, 80000, "P1"),
			first("t2", 2*time.Hour, 80000, "P2"),
			first("t3", 4*time.Hour, 80000, "P3"),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "t1" {
			t.Errorf("expected alert on the window anchor, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Details != "3 new payees in 24h totaling KSh 240,000.00" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("RepeatPayeeNotCounted", func(t *testing.T) {
		alerts := detect(t, &NewPayeeBurst{},
			first("t1", 0, 80000, "P1"),
			first("t2", 2*time.Hour, 80000, "P1"),
			first("t3", 4*time.Hour, 80000, "P2"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected repeat payee not to count, got %d", len(alerts))
		}
	})

	t.Run("SumBelowThreshold", func(t *testing.T) {
		alerts := detect(t, &NewPayeeBurst{},
			first("t1", 0, 50000, "P1"),
			first("t2", 2*time.Hour, 50000, "P2"),
			first("t3", 4*time.Hour, 50000, "P3"),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert for 150k total, got %d", len(alerts))
		}
	})

	t.Run("OnePerCustomer", func(t *testing.T) {
		alerts := detect(t, &NewPayeeBurst{},
			first("t1", 0, 80000, "P1"),
			first("t2", 2*time.Hour, 80000, "P2"),
			first("t3", 4*time.Hour, 80000, "P3"),
			first("t4", 6*time.Hour, 80000, "P4"),
			first("t5", 8*time.Hour, 80000, "P5"),
		)
		if len(alerts) != 1 {
			t.Errorf("expected a single alert per customer, got %d", len(alerts))
		}
	})
}

func TestCashInOut(t *testing.T) {
	deposit := mk("dep", "A", base, domain.TypeDeposit, 200000)

	t.Run("EightyPercentOut", func(t *testing.T) {
		alerts := detect(t, &CashInOut{},
			deposit,
			mk("o1", "A", base.Add(30*time.Minute), domain.TypeMobile, 100000),
			mk("o2", "A", base.Add(time.Hour), domain.TypeOnline, 60000),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "dep" {
			t.Errorf("expected alert on the deposit, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Details != "Deposited KSh 200,000.00, withdrew 160,000.00 in 2h" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("JustUnderEightyPercent", func(t *testing.T) {
		alerts := detect(t, &CashInOut{},
			deposit,
			mk("o1", "A", base.Add(30*time.Minute), domain.TypeMobile, 159999),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert under 80%%, got %d", len(alerts))
		}
	})

	t.Run("ExactlyTwoHoursOut", func(t *testing.T) {
		alerts := detect(t, &CashInOut{},
			deposit,
			mk("o1", "A", base.Add(2*time.Hour), domain.TypeMobile, 160000),
		)
		if len(alerts) != 1 {
			t.Errorf("expected the 2 hour boundary to count, got %d", len(alerts))
		}
	})

	t.Run("SmallDeposit", func(t *testing.T) {
		alerts := detect(t, &CashInOut{},
			mk("dep", "A", base, domain.TypeDeposit, 199999),
			mk("o1", "A", base.Add(30*time.Minute), domain.TypeMobile, 199999),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert for small deposits, got %d", len(alerts))
		}
	})

	t.Run("MobileMoneyNotAnOutflow", func(t *testing.T) {
		alerts := detect(t, &CashInOut{},
			deposit,
			mk("o1", "A", base.Add(30*time.Minute), domain.TypeMobileMoney, 200000),
		)
		if len(alerts) != 0 {
			t.Errorf("expected only Mobile and Online outflows to count, got %d", len(alerts))
		}
	})
}

func TestRoundAmountPOS(t *testing.T) {
	pos := func(id string, offset time.Duration, amount float64) domain.Transaction {
		return mk(id, "A", base.Add(offset), domain.TypePOS, amount)
	}

	t.Run("FourIdenticalRoundAmounts", func(t *testing.T) {
		alerts := detect(t, &RoundAmountPOS{},
			pos("t1", 0, 50000),
			pos("t2", 15*time.Minute, 50000),
			pos("t3", 30*time.Minute, 50000),
			pos("t4", 45*time.Minute, 50000),
		)
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].TransactionID != "t4" {
			t.Errorf("expected alert on the fourth transaction, got %s", alerts[0].TransactionID)
		}
		if alerts[0].Details != "4 POS of KSh 50,000 in 60min" {
			t.Errorf("unexpected details %q", alerts[0].Details)
		}
	})

	t.Run("NotMultipleOfThousand", func(t *testing.T) {
		alerts := detect(t, &RoundAmountPOS{},
			pos("t1", 0, 50500),
			pos("t2", 15*time.Minute, 50500),
			pos("t3", 30*time.Minute, 50500),
			pos("t4", 45*time.Minute, 50500),
		)
		if len(alerts) != 0 {
			t.Errorf("expected only round thousands to qualify, got %d", len(alerts))
		}
	})

	t.Run("DifferentAmounts", func(t *testing.T) {
		alerts := detect(t, &RoundAmountPOS{},
			pos("t1", 0, 50000),
			pos("t2", 15*time.Minute, 51000),
			pos("t3", 30*time.Minute, 50000),
			pos("t4", 45*time.Minute, 50000),
		)
		if len(alerts) != 0 {
			t.Errorf("expected identical amounts to be required, got %d", len(alerts))
		}
	})

	t.Run("BeyondSixtyMinutes", func(t *testing.T) {
		alerts := detect(t, &RoundAmountPOS{},
			pos("t1", 0, 50000),
			pos("t2", 30*time.Minute, 50000),
			pos("t3", 60*time.Minute, 50000),
			pos("t4", 90*time.Minute, 50000),
		)
		if len(alerts) != 0 {
			t.Errorf("expected no alert beyond the hour, got %d", len(alerts))
		}
	})

	t.Run("OnePerCustomer", func(t *testing.T) {
		alerts := detect(t, &RoundAmountPOS{},
			pos("t1", 0, 50000),
			pos("t2", 10*time.Minute, 50000),
			pos("t3", 20*time.Minute, 50000),
			pos("t4", 30*time.Minute, 50000),
			pos("t5", 40*time.Minute, 50000),
		)
		if len(alerts) != 1 {
			t.Errorf("expected a single alert per customer, got %d", len(alerts))
		}
	})
}

func TestCatalogue(t *testing.T) {
	catalogue := Catalogue()
	if len(catalogue) != 10 {
		t.Fatalf("expected 10 detectors, got %d", len(catalogue))
	}

	want := []string{
		RuleVelocityGeo, RuleStructuring, RuleNightHighValue, RuleNewPayeeLarge,
		RuleHighRiskMCC, RuleCrossChannelGeo, RuleSparseHistory, RuleNewPayeeBurst,
		RuleCashInOut, RuleRoundAmountPOS,
	}
	for i, d := range catalogue {
		if d.Name() != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], d.Name())
		}
		if d.Description() == "" {
			t.Errorf("detector %q has no description", d.Name())
		}
	}
}

func TestScanner(t *testing.T) {
	night := mk("n1", "A", time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC), domain.TypeOnline, 60000)
	sparse := mk("s1", "B", base, domain.TypeOnline, 700000)

	t.Run("MergesInCatalogueOrder", func(t *testing.T) {
		scanner := NewScanner(4)
		log := timeline.NewLog([]domain.Transaction{sparse, night})

		alerts := scanner.Scan(context.Background(), log)

		// Night-time (rule 3) precedes sparse history (rule 7); the night
		// transaction also has a sparse history but is under 500k
		if len(alerts) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(alerts))
		}
		if alerts[0].Rule != RuleNightHighValue || alerts[1].Rule != RuleSparseHistory {
			t.Errorf("expected catalogue order, got %q then %q", alerts[0].Rule, alerts[1].Rule)
		}
	})

	t.Run("DeterministicAcrossRuns", func(t *testing.T) {
		scanner := NewScanner(4)
		log := timeline.NewLog([]domain.Transaction{sparse, night})

		first := scanner.Scan(context.Background(), log)
		for i := 0; i < 10; i++ {
			again := scanner.Scan(context.Background(), log)
			if len(again) != len(first) {
				t.Fatalf("run %d: expected %d alerts, got %d", i, len(first), len(again))
			}
			for j := range first {
				if again[j].TransactionID != first[j].TransactionID || again[j].Rule != first[j].Rule {
					t.Fatalf("run %d: alert %d differs", i, j)
				}
			}
		}
	})

	t.Run("PanickingDetectorIsIsolated", func(t *testing.T) {
		scanner := NewScanner(4, &panicDetector{}, &NightHighValue{})
		log := timeline.NewLog([]domain.Transaction{night})

		alerts := scanner.Scan(context.Background(), log)
		if len(alerts) != 1 {
			t.Fatalf("expected the healthy detector's alert, got %d", len(alerts))
		}
		if alerts[0].Rule != RuleNightHighValue {
			t.Errorf("unexpected rule %q", alerts[0].Rule)
		}
	})
}

// TestPermutationInvariance feeds the same history in shuffled load
// orders and expects identical alert sequences: the snapshot sort fixes
// the order before any detector runs.
func TestPermutationInvariance(t *testing.T) {
	day := 24 * time.Hour
	history := []domain.Transaction{
		at(mk("a1", "A", base, domain.TypeATM, 20000), nairobiLat, nairobiLon),
		at(mk("a2", "A", base.Add(30*time.Minute), domain.TypeATM, 25000), mombasaLat, mombasaLon),
		toPayee(mk("b1", "B", base.Add(time.Hour), domain.TypeOnline, 1500000), "P9"),
		mk("c1", "C", base.Add(2*time.Hour), domain.TypeOnline, 800000),
		mk("c2", "C", base.Add(-100*day), domain.TypePOS, 1000),
		mk("d1", "D", time.Date(2026, 5, 1, 1, 30, 0, 0, time.UTC), domain.TypeOnline, 90000),
	}

	scanner := NewScanner(4)
	reference := scanner.Scan(context.Background(), timeline.NewLog(history))
	if len(reference) == 0 {
		t.Fatal("expected the reference history to produce alerts")
	}

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		shuffled := make([]domain.Transaction, len(history))
		copy(shuffled, history)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		alerts := scanner.Scan(context.Background(), timeline.NewLog(shuffled))
		if len(alerts) != len(reference) {
			t.Fatalf("run %d: expected %d alerts, got %d", run, len(reference), len(alerts))
		}
		for i := range reference {
			if alerts[i].TransactionID != reference[i].TransactionID ||
				alerts[i].Rule != reference[i].Rule ||
				alerts[i].Details != reference[i].Details {
				t.Fatalf("run %d: alert %d differs from reference", run, i)
			}
		}
	}
}

type panicDetector struct{}

func (d *panicDetector) Name() string        { return "Panics" }
func (d *panicDetector) Description() string { return "always panics" }

func (d *panicDetector) Detect(log *timeline.Log) []domain.Alert {
	panic("boom")
}
