package domain

import "time"

// GroupStatus represents the lifecycle state of a thrift group.
type GroupStatus string

const (
	GroupStatusForming  GroupStatus = "forming"
	GroupStatusActive   GroupStatus = "active"
	GroupStatusSettling GroupStatus = "settling"
	GroupStatusClosed   GroupStatus = "closed"
)

// ModelType selects the payout semantics of a group. Only the fixed
// rotation model is implemented; the auction tag is reserved and rejected
// at group creation.
type ModelType string

const (
	ModelFixedRotation ModelType = "fixed_rotation"
	ModelAuction       ModelType = "auction"
)

// DebtPolicy controls what happens to a member with an uncovered default
// shortfall in later cycles.
type DebtPolicy string

const (
	// DebtPolicyCarryForward keeps the member in the rotation; the
	// outstanding debt is deducted from their eventual payout.
	DebtPolicyCarryForward DebtPolicy = "carry_forward"
	// DebtPolicyExclude blocks the member from contributing in later
	// cycles until the debt is cleared.
	DebtPolicyExclude DebtPolicy = "exclude"
)

// MaxInsuranceBps is the upper bound for the insurance skim (100%).
const MaxInsuranceBps = 10_000

// ThriftGroup is the authoritative record for one rotating savings group.
// InsurancePool and the vault handles are the logical balances the ledger
// expects the custody accounts to hold; actual fund movement is owned by
// the custody service.
type ThriftGroup struct {
	ID                 string        `json:"id"`
	Authority          string        `json:"authority"`
	ModelType          ModelType     `json:"model_type"`
	InsuranceBps       int           `json:"insurance_bps"`
	CycleOrder         []string      `json:"cycle_order"` // payout order; also the member list
	ContributionAmount int64         `json:"contribution_amount"` // per cycle, smallest currency unit
	CurrentCycleIndex  int           `json:"current_cycle_index"`
	InsurancePool      int64         `json:"insurance_pool"`
	GroupVault         string        `json:"group_vault"`
	InsuranceVault     string        `json:"insurance_vault"`
	Status             GroupStatus   `json:"status"`
	DebtPolicy         DebtPolicy    `json:"debt_policy"`
	GraceWindow        time.Duration `json:"grace_window_ns"`

	// Cycle-scoped state, reset on advancement. Paid and Defaulted are
	// derived from the contributions and defaults tables when loading.
	Paid      map[string]bool `json:"paid"`
	Defaulted map[string]bool `json:"defaulted"`

	CycleStartedAt time.Time `json:"cycle_started_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsMember reports whether identity appears in the cycle order.
func (g *ThriftGroup) IsMember(identity string) bool {
	for _, m := range g.CycleOrder {
		if m == identity {
			return true
		}
	}
	return false
}

// CurrentRecipient returns the member whose turn it is to receive this
// cycle's payout.
func (g *ThriftGroup) CurrentRecipient() string {
	if len(g.CycleOrder) == 0 {
		return ""
	}
	return g.CycleOrder[g.CurrentCycleIndex%len(g.CycleOrder)]
}

// Outstanding returns the members that have not contributed this cycle,
// in cycle order.
func (g *ThriftGroup) Outstanding() []string {
	var out []string
	for _, m := range g.CycleOrder {
		if !g.Paid[m] {
			out = append(out, m)
		}
	}
	return out
}

// AllPaid reports whether every member has contributed this cycle.
func (g *ThriftGroup) AllPaid() bool {
	return len(g.Outstanding()) == 0
}

// GraceElapsed reports whether the collection window for the current cycle
// has expired at the given instant. A zero grace window never elapses; the
// authority then advances only once outstanding members are flagged.
func (g *ThriftGroup) GraceElapsed(now time.Time) bool {
	if g.GraceWindow <= 0 {
		return false
	}
	return now.After(g.CycleStartedAt.Add(g.GraceWindow))
}

// MemberTotals carries the per-member running figures surfaced in group
// snapshots.
type MemberTotals struct {
	Member            string `json:"member"`
	TotalContributed  int64  `json:"total_contributed"`
	HasReceivedPayout bool   `json:"has_received_payout"`
	DebtOutstanding   int64  `json:"debt_outstanding"`
}

// GroupSnapshot is the read-only view returned by GetGroupState.
type GroupSnapshot struct {
	Group         ThriftGroup    `json:"group"`
	Outstanding   []string       `json:"outstanding"`
	Members       []MemberTotals `json:"members"`
	Contributions []Contribution `json:"contributions"` // current cycle
	Debts         []MemberDebt   `json:"debts"`
}
