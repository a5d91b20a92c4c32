package domain

import "time"

// APIKey is a credential for the HTTP surface. Only the SHA-256 of the
// token is stored. Admin keys may also manage stored schemas; no key makes
// its mutations trusted.
type APIKey struct {
	TokenHash string
	TenantID  string
	Name      string
	Active    bool
	Admin     bool
	CreatedAt time.Time
}
