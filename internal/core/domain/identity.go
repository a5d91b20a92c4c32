package domain

import "context"

// Identity describes who a mutation runs on behalf of and whether it comes
// from trusted code.
type Identity struct {
	UserID  string
	Trusted bool
}

type identityCtxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// TrustedContext marks ctx as originating from trusted server code.
func TrustedContext(ctx context.Context, userID string) context.Context {
	return WithIdentity(ctx, Identity{UserID: userID, Trusted: true})
}

// IdentityFrom returns the identity carried by ctx. A context without one is
// treated as an anonymous untrusted caller.
func IdentityFrom(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(identityCtxKey{}).(Identity)
	return id
}
