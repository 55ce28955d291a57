// Package timeline builds the immutable scan snapshot and provides the
// windowing primitives shared by the rule catalogue.
package timeline

import (
	"log/slog"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Log is the working representation of one scan: every valid
// transaction, sorted by customer then time, with equal timestamps
// tie-broken by load order. Detectors treat it as read-only; all of
// them observe the same snapshot.
type Log struct {
	transactions []domain.Transaction
	customers    []string
	byCustomer   map[string][]domain.Transaction

	// Skipped counts malformed records excluded at load.
	Skipped int
}

// NewLog normalizes raw records into a scan snapshot. Malformed records
// are excluded and logged; the scan continues without them.
func NewLog(raw []domain.Transaction) *Log {
	log := &Log{
		transactions: make([]domain.Transaction, 0, len(raw)),
		byCustomer:   make(map[string][]domain.Transaction),
	}

	for _, tx := range raw {
		if !tx.Valid() {
			log.Skipped++
			slog.Warn("excluding malformed transaction",
				"transaction_id", tx.TransactionID,
				"customer_id", tx.CustomerID,
			)
			continue
		}
		log.transactions = append(log.transactions, tx)
	}

	// Stable sort keeps load order for equal (customer, timestamp)
	// pairs, which is what makes alert ordering reproducible.
	sort.SliceStable(log.transactions, func(i, j int) bool {
		a, b := &log.transactions[i], &log.transactions[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		return a.TransactionDate.Before(b.TransactionDate)
	})

	// Per-customer timelines are sub-slices of the sorted snapshot.
	start := 0
	for i := 1; i <= len(log.transactions); i++ {
		if i == len(log.transactions) || log.transactions[i].CustomerID != log.transactions[start].CustomerID {
			cust := log.transactions[start].CustomerID
			log.customers = append(log.customers, cust)
			log.byCustomer[cust] = log.transactions[start:i:i]
			start = i
		}
	}

	return log
}

// Transactions returns the full snapshot sorted by customer then time.
func (l *Log) Transactions() []domain.Transaction {
	return l.transactions
}

// Len returns the number of transactions in the snapshot.
func (l *Log) Len() int {
	return len(l.transactions)
}

// Customers returns customer IDs in ascending order.
func (l *Log) Customers() []string {
	return l.customers
}

// Customer returns one customer's timeline, sorted ascending by time.
func (l *Log) Customer(customerID string) []domain.Transaction {
	return l.byCustomer[customerID]
}

// ApplyNames stamps resolved display names onto the snapshot. Called
// once after load, before any detector runs.
func (l *Log) ApplyNames(names map[string]string) {
	for i := range l.transactions {
		if name, ok := names[l.transactions[i].CustomerID]; ok {
			l.transactions[i].FullName = name
		} else {
			l.transactions[i].FullName = domain.UnknownCustomer
		}
	}
}

// ByTime returns the whole snapshot re-sorted by time alone, with equal
// timestamps tie-broken by TransactionID. Used by detectors whose
// "first ever" semantics span customers.
func (l *Log) ByTime() []domain.Transaction {
	out := make([]domain.Transaction, len(l.transactions))
	copy(out, l.transactions)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out
}

// FilterType returns the subsequence of txns whose type is one of the
// given codes, preserving order.
func FilterType(txns []domain.Transaction, types ...string) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txns {
		for _, t := range types {
			if tx.Type == t {
				out = append(out, tx)
				break
			}
		}
	}
	return out
}

// Pair couples an earlier transaction with a later one inside a window.
type Pair struct {
	Earlier domain.Transaction
	Later   domain.Transaction
}

// PairsWithin enumerates every ordered (earlier, later) pair of a
// time-sorted sequence whose gap is at most window. All qualifying
// pairs are emitted, not just adjacent ones, ordered by the earlier
// element's index.
func PairsWithin(txns []domain.Transaction, window time.Duration) []Pair {
	var pairs []Pair
	for i := range txns {
		for j := i + 1; j < len(txns); j++ {
			if txns[j].TransactionDate.Sub(txns[i].TransactionDate) > window {
				break
			}
			pairs = append(pairs, Pair{Earlier: txns[i], Later: txns[j]})
		}
	}
	return pairs
}

// WindowFrom returns the anchor element and every subsequent element of
// a time-sorted sequence within window of the anchor.
func WindowFrom(txns []domain.Transaction, anchor int, window time.Duration) []domain.Transaction {
	end := anchor + 1
	for end < len(txns) && txns[end].TransactionDate.Sub(txns[anchor].TransactionDate) <= window {
		end++
	}
	return txns[anchor:end]
}

// GroupByPayee groups a window by counterparty, skipping transactions
// without one. Keys come back in first-seen order so that group
// iteration is deterministic.
func GroupByPayee(txns []domain.Transaction) ([]string, map[string][]domain.Transaction) {
	var order []string
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txns {
		if tx.PayeeID == "" {
			continue
		}
		if _, ok := groups[tx.PayeeID]; !ok {
			order = append(order, tx.PayeeID)
		}
		groups[tx.PayeeID] = append(groups[tx.PayeeID], tx)
	}
	return order, groups
}

// FirstSeen tracks first occurrences of a (customer, payee) relation.
// It is scoped to one scan and must be fed strictly in time order.
type FirstSeen struct {
	seen map[string]struct{}
}

// NewFirstSeen creates an empty relation tracker.
func NewFirstSeen() *FirstSeen {
	return &FirstSeen{seen: make(map[string]struct{})}
}

// Observe records the relation and reports whether this was its first
// occurrence in the scan.
func (f *FirstSeen) Observe(customerID, payeeID string) bool {
	key := customerID + "\x00" + payeeID
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// CountPrior counts elements of a time-sorted sequence that fall in
// [t−lookback, t), where t is the anchor element's timestamp. The lower
// bound is inclusive, the anchor's own instant exclusive.
func CountPrior(txns []domain.Transaction, anchor int, lookback time.Duration) int {
	t := txns[anchor].TransactionDate
	floor := t.Add(-lookback)
	count := 0
	for j := 0; j < anchor; j++ {
		ts := txns[j].TransactionDate
		if ts.Before(t) && !ts.Before(floor) {
			count++
		}
	}
	return count
}
