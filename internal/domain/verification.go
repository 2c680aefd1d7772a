package domain

import "time"

// VerificationRecord is one audited remote address verification.
type VerificationRecord struct {
	ID         string
	SessionID  string
	Country    string
	PostalCode string
	City       string
	Status     VerificationStatus
	AVC        string
	MatchScore int
	TraceID    string
	CreatedAt  time.Time
}
