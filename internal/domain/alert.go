package domain

import (
	"time"
)

// UnknownCustomer is the sentinel display name for customers that fail
// to resolve. A lookup miss is never fatal to a scan.
const UnknownCustomer = "Unknown"

// DisplayTimeFormat is how timestamps are rendered at the API boundary.
const DisplayTimeFormat = "2006-01-02 15:04:05"

// Alert is a detector finding as it is persisted: the triggering
// transaction, the customer, the rule that fired and a human-readable
// explanation. TransactionDate keeps its native timestamp type here;
// only the rendered AlertView carries a formatted string.
type Alert struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	TransactionID   string    `json:"transactionId"`
	CustomerID      string    `json:"customerId"`
	FullName        string    `json:"fullName"`
	Rule            string    `json:"rule"`
	Details         string    `json:"details"`
	TransactionDate time.Time `json:"transactionDate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AlertView is the display-facing copy of an Alert, produced after the
// alert has been persisted. Keeping it a separate type avoids mutating
// a saved record on render.
type AlertView struct {
	ID              string `json:"id"`
	TransactionID   string `json:"transactionId"`
	CustomerID      string `json:"customerId"`
	FullName        string `json:"fullName"`
	Rule            string `json:"rule"`
	Details         string `json:"details"`
	TransactionDate string `json:"transactionDate"`
}

// View renders the display copy of an alert.
func (a *Alert) View() AlertView {
	return AlertView{
		ID:              a.ID,
		TransactionID:   a.TransactionID,
		CustomerID:      a.CustomerID,
		FullName:        a.FullName,
		Rule:            a.Rule,
		Details:         a.Details,
		TransactionDate: a.TransactionDate.Format(DisplayTimeFormat),
	}
}

// Case is an investigation record opened from an alert (or manually).
type Case struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	TransactionID   string    `json:"transactionId,omitempty"`
	CustomerID      string    `json:"customerId"`
	FullName        string    `json:"fullName,omitempty"`
	Rule            string    `json:"rule"`
	Details         string    `json:"details"`
	TransactionDate time.Time `json:"transactionDate,omitzero"`
	FileName        string    `json:"fileName,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ScreenConfig is a tenant-defined screening expression evaluated per
// transaction after the fixed catalogue. The expression is CEL and must
// return a bool.
type ScreenConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression over amount, hour, tx_type, payee_id, mcc, customer_id
	Expression string `json:"expression"`

	// Detail template; the triggering amount is appended
	Reason string `json:"reason"`

	Enabled bool `json:"enabled"`
}
