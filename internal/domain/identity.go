package domain

import "context"

// IdentityResolver turns an authenticated caller credential into a
// canonical member identity. Signature verification happens upstream; the
// ledger only ever sees resolved identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}
