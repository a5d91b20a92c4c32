package domain

import "time"

// AuditEvent records one successful mutation.
type AuditEvent struct {
	Collection string
	DocumentID string
	Action     string
	Actor      string
	Trusted    bool
	Affected   int64
	At         time.Time
}
