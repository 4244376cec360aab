// Package gate implements the access/authority checks that front every
// mutating ledger operation. Each operation declares the capability it
// requires; the gate verifies the resolved caller identity holds that
// capability for the specific group before any side effect runs.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// Capability tags the role an operation requires.
type Capability string

const (
	// CapAuthority restricts the operation to the group's creator.
	CapAuthority Capability = "authority"
	// CapMember allows any identity present in the cycle order. The
	// authority does not implicitly hold member capability.
	CapMember Capability = "member"
)

// Require verifies that caller holds cap for the given group. It returns
// domain.ErrUnauthorized on any mismatch and must be the first check of
// every mutating operation.
func Require(g *domain.ThriftGroup, caller string, cap Capability) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller identity", domain.ErrUnauthorized)
	}
	switch cap {
	case CapAuthority:
		if caller != g.Authority {
			return fmt.Errorf("%w: caller is not the group authority", domain.ErrUnauthorized)
		}
	case CapMember:
		if !g.IsMember(caller) {
			return fmt.Errorf("%w: caller is not a group member", domain.ErrNotAMember)
		}
	default:
		return fmt.Errorf("%w: unknown capability %q", domain.ErrUnauthorized, cap)
	}
	return nil
}

// IsAuthority reports whether caller is the group authority. Used where an
// operation is legal for both roles but behaves differently for the
// authority (force-advance).
func IsAuthority(g *domain.ThriftGroup, caller string) bool {
	return caller != "" && caller == g.Authority
}

// AddressResolver resolves caller credentials that are EVM-style hex
// addresses. Signature verification happens in the wallet layer upstream;
// here we only validate shape and normalize to the checksummed form so
// identity comparisons are canonical.
type AddressResolver struct{}

// Resolve validates raw as a hex address and returns its EIP-55
// checksummed form.
func (AddressResolver) Resolve(_ context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("%w: %q is not a valid address", domain.ErrUnauthorized, raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

// Normalize maps every address in order to its checksummed form, failing
// on the first invalid entry. Used at group creation so the stored cycle
// order is canonical.
func (r AddressResolver) Normalize(ctx context.Context, order []string) ([]string, error) {
	out := make([]string, len(order))
	for i, m := range order {
		resolved, err := r.Resolve(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("%w: cycle order entry %d invalid", domain.ErrInvalidConfig, i)
		}
		out[i] = resolved
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.IdentityResolver = AddressResolver{}
