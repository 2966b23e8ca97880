package models

import "time"

// Transaction is the local record of one Billplz bill, from creation
// until a webhook settles it.
type Transaction struct {
	ID                   string            `json:"id"`
	Tenant               string            `json:"tenant"`
	Status               StatusType        `json:"status"`
	Amount               int64             `json:"amount"` // minor currency units
	Description          string            `json:"description"`
	Email                string            `json:"email"`
	Name                 string            `json:"name"`
	RedirectURL          string            `json:"redirect_url,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	ExternalBillID       string            `json:"external_bill_id,omitempty"`
	PaymentURL           string            `json:"payment_url,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	WebhookReceivedCount int32             `json:"webhook_received_count"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type StatusType string

const (
	StatusPending StatusType = "pending"
	StatusPaid    StatusType = "paid"
	StatusFailed  StatusType = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s StatusType) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

func (s StatusType) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusFailed
}
