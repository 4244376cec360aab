// Package cycle holds the pure state-machine rules for thrift group
// progression: Forming -> Active -> (Collecting -> Disbursing)* -> Closed,
// with the Settling exception path on early termination. The functions
// here validate transitions against an in-memory group snapshot; they
// never touch storage or custody.
package cycle

import (
	"fmt"
	"time"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// MaxMembers bounds the rotation length, matching the custody program's
// account sizing.
const MaxMembers = 32

// ValidateConfig checks the group creation surface. Every violation is
// reported as a wrapped domain.ErrInvalidConfig.
func ValidateConfig(model domain.ModelType, insuranceBps int, cycleOrder []string, contributionAmount int64) error {
	if model != domain.ModelFixedRotation {
		return fmt.Errorf("%w: model %q is not supported", domain.ErrInvalidConfig, model)
	}
	if insuranceBps < 0 || insuranceBps > domain.MaxInsuranceBps {
		return fmt.Errorf("%w: insurance_bps must be in [0,%d], got %d", domain.ErrInvalidConfig, domain.MaxInsuranceBps, insuranceBps)
	}
	if len(cycleOrder) < 2 {
		return fmt.Errorf("%w: cycle order needs at least 2 members, got %d", domain.ErrInvalidConfig, len(cycleOrder))
	}
	if len(cycleOrder) > MaxMembers {
		return fmt.Errorf("%w: cycle order exceeds %d members", domain.ErrInvalidConfig, MaxMembers)
	}
	seen := make(map[string]bool, len(cycleOrder))
	for _, m := range cycleOrder {
		if m == "" {
			return fmt.Errorf("%w: empty member identity", domain.ErrInvalidConfig)
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate member %s", domain.ErrInvalidConfig, m)
		}
		seen[m] = true
	}
	if contributionAmount <= 0 {
		return fmt.Errorf("%w: contribution amount must be positive, got %d", domain.ErrInvalidConfig, contributionAmount)
	}
	return nil
}

// CanContribute reports whether member may pay amount into the current
// cycle. hasOpenDebt is the member's outstanding-debt flag; it only blocks
// contribution under the exclude policy.
func CanContribute(g *domain.ThriftGroup, member string, amount int64, hasOpenDebt bool) error {
	if g.Status != domain.GroupStatusActive {
		return domain.ErrGroupClosed
	}
	if !g.IsMember(member) {
		return domain.ErrNotAMember
	}
	if g.Paid[member] {
		return domain.ErrDuplicateContribution
	}
	if amount != g.ContributionAmount {
		return fmt.Errorf("%w: want %d, got %d", domain.ErrAmountMismatch, g.ContributionAmount, amount)
	}
	if hasOpenDebt && g.DebtPolicy == domain.DebtPolicyExclude {
		return fmt.Errorf("%w: outstanding debt blocks contribution", domain.ErrUnauthorized)
	}
	return nil
}

// CanAdvance validates a disbursement attempt. Non-authority callers may
// only advance a fully collected cycle. The authority may force-advance
// once the collection window has elapsed, or earlier if every outstanding
// member has been flagged as defaulted.
func CanAdvance(g *domain.ThriftGroup, isAuthority bool, now time.Time) error {
	if g.Status != domain.GroupStatusActive {
		return domain.ErrGroupClosed
	}
	if g.AllPaid() {
		return nil
	}
	if !isAuthority {
		return domain.ErrCycleIncomplete
	}
	if g.GraceElapsed(now) {
		return nil
	}
	for _, m := range g.Outstanding() {
		if !g.Defaulted[m] {
			return fmt.Errorf("%w: %s has neither paid nor been flagged", domain.ErrCycleIncomplete, m)
		}
	}
	return nil
}

// CanMarkDefault validates flagging member as a defaulter for the current
// cycle. Flagging never blocks advancement; it enables it.
func CanMarkDefault(g *domain.ThriftGroup, member string) error {
	if g.Status != domain.GroupStatusActive {
		return domain.ErrGroupClosed
	}
	if !g.IsMember(member) {
		return domain.ErrNotAMember
	}
	if g.Paid[member] {
		return fmt.Errorf("%w: member %s already paid this cycle", domain.ErrInvalidConfig, member)
	}
	if g.Defaulted[member] {
		return fmt.Errorf("%w: member %s already flagged", domain.ErrInvalidConfig, member)
	}
	return nil
}

// Next returns the cycle index after a disbursement and whether the group
// closes. The rotation is complete when every member has received exactly
// one payout, i.e. when the index would wrap past the last member.
func Next(g *domain.ThriftGroup) (nextIndex int, closed bool) {
	next := g.CurrentCycleIndex + 1
	if next >= len(g.CycleOrder) {
		return 0, true
	}
	return next, false
}
