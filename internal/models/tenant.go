package models

import "time"

// Tenant is a downstream service that creates bills under its own
// Billplz credentials and webhook signing secret.
type Tenant struct {
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	BillplzAPIKey string    `json:"-"`
	CollectionID  string    `json:"-"`
	WebhookSecret string    `json:"-"`
	APIKeyHash    string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
