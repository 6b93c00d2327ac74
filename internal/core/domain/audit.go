package domain

import "time"

// AuditRecord is one append-only audit row. Exactly one record is written per
// request attempt, on every exit path. ID makes redelivered records idempotent
// at the store; the transport may deliver at least once.
type AuditRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Query         string    `json:"query"`
	Response      string    `json:"response,omitempty"`
	Error         string    `json:"error,omitempty"`
	Context       string    `json:"context,omitempty"`
	HumanResponse string    `json:"human_response"`
}
