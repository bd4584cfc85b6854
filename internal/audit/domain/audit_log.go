package domain

import "time"

// AuditLog is one recorded authentication event. It never carries passwords, hashes or tokens.
type AuditLog struct {
	ID        string
	Event     string
	AccountID string // empty when the account is unknown
	Phone     string
	Reason    string
	IP        string
	CreatedAt time.Time
}
