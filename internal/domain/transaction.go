package domain

import (
	"time"
)

// Transaction type codes as stored in the transactions table.
const (
	TypeATM         = "ATM"
	TypePOS         = "POS"
	TypeOnline      = "Online"
	TypeCNP         = "CNP"
	TypeMobile      = "Mobile"
	TypeMobileMoney = "Mobile-Money"
	TypeDeposit     = "Deposit"
)

// MCCGambling is the merchant category code for betting and casino POS activity.
const MCCGambling = 7995

// Transaction is one row of the customer transaction history. It is
// immutable once loaded into a scan snapshot; FullName is the only field
// populated after load, resolved once per customer.
type Transaction struct {
	// Core identifiers
	TransactionID string `json:"transactionId"`
	CustomerID    string `json:"customerId"`
	TenantID      string `json:"tenantId"`

	// Resolved customer display name ("Unknown" when the lookup misses)
	FullName string `json:"fullName,omitempty"`

	// Transaction type (e.g. "ATM", "POS", "Mobile-Money")
	Type string `json:"type"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`

	// Temporal, second precision
	TransactionDate time.Time `json:"transactionDate"`

	// Geographic signal. Latitude and Longitude are only meaningful
	// together; either absent means no signal.
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Counterparty and merchant category, both optional
	PayeeID string `json:"payeeId,omitempty"`
	MCC     int    `json:"mcc,omitempty"`
}

// HasCoordinates reports whether the transaction carries a usable
// geographic signal.
func (t *Transaction) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// Valid reports whether the record carries the fields every detector
// depends on. Invalid records are excluded from the scan snapshot.
func (t *Transaction) Valid() bool {
	return t.TransactionID != "" &&
		t.CustomerID != "" &&
		!t.TransactionDate.IsZero() &&
		t.Amount >= 0
}
