package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Status GroupStatus
}

// GroupStore persists thrift group records. Get returns the group with its
// cycle-scoped Paid and Defaulted sets populated for the current cycle.
type GroupStore interface {
	Create(ctx context.Context, g ThriftGroup) error
	Get(ctx context.Context, id string) (ThriftGroup, error)
	// Activate records the provisioned vault handles and moves the group
	// from forming to active.
	Activate(ctx context.Context, id, groupVault, insuranceVault string) error
	// Delete removes a group that never finished provisioning. It is the
	// rollback half of the all-or-nothing create.
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status GroupStatus) error
	List(ctx context.Context, opts ListOpts) ([]ThriftGroup, error)
}

// DebtRepayment routes a withheld slice of a payout to the member who was
// shorted when the debt was recorded.
type DebtRepayment struct {
	DebtID   string `json:"debt_id"`
	Creditor string `json:"creditor"`
	Amount   int64  `json:"amount"`
}

// Advancement carries the full outcome of one cycle disbursement so the
// store can commit it as a single transaction.
type Advancement struct {
	GroupID   string       `json:"group_id"`
	Cycle     int          `json:"cycle"`
	Recipient string       `json:"recipient"`
	Disbursed int64        `json:"disbursed"` // paid to the recipient from the group vault, after withholding
	Coverage  int64        `json:"coverage"`  // default coverage, paid from the insurance pool
	Withheld  int64        `json:"withheld"`  // recipient debt settled out of the payout
	NewDebts  []MemberDebt `json:"new_debts,omitempty"`
	// Repayments are the withheld slices routed to shorted members under
	// the carry-forward policy.
	Repayments []DebtRepayment `json:"repayments,omitempty"`
	NextIndex  int             `json:"next_index"`
	Closed     bool            `json:"closed"`
}

// LedgerStore persists the per-cycle contribution ledger, default flags,
// and debts. Every Apply* method commits atomically: either the whole
// mutation lands or none of it does.
type LedgerStore interface {
	// ApplyContribution inserts the contribution row and accrues its skim
	// to the group's insurance pool. A second contribution by the same
	// member in the same cycle returns ErrDuplicateContribution.
	ApplyContribution(ctx context.Context, c Contribution) error
	// ApplyAdvance commits a disbursement: advances the cycle index,
	// deducts insurance coverage from the pool, records uncovered
	// shortfalls as debts, pays the recipient's own debts down from the
	// withheld slice of the payout, and closes the group on a full
	// rotation.
	ApplyAdvance(ctx context.Context, adv Advancement) error
	MarkDefault(ctx context.Context, groupID string, cycle int, member string) error
	// ApplyClaim pays down a debt from the insurance pool.
	ApplyClaim(ctx context.Context, debtID string, paid int64) error
	// ApplyTermination zeroes the insurance pool and closes the group
	// after an early-termination refund settlement.
	ApplyTermination(ctx context.Context, groupID string) error

	ListContributions(ctx context.Context, groupID string, cycle int) ([]Contribution, error)
	CollectedNet(ctx context.Context, groupID string, cycle int) (int64, error)
	ListDebts(ctx context.Context, groupID string) ([]MemberDebt, error)
	// OldestOpenDebt returns the member's oldest debt with a positive
	// outstanding balance, or ErrNoDebtRecorded.
	OldestOpenDebt(ctx context.Context, groupID, member string) (MemberDebt, error)
	MemberTotals(ctx context.Context, groupID string) ([]MemberTotals, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	GroupID   string         `json:"group_id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of ledger operations.
type AuditStore interface {
	Log(ctx context.Context, groupID, event string, detail map[string]any) error
	List(ctx context.Context, groupID string, opts ListOpts) ([]AuditEntry, error)
}

// GroupCache caches group snapshots for read paths.
type GroupCache interface {
	Get(ctx context.Context, id string) (GroupSnapshot, error)
	Set(ctx context.Context, snap GroupSnapshot) error
	Invalidate(ctx context.Context, id string) error
}

// LockManager provides per-group mutual exclusion across processes. The
// returned unlock function is safe to call multiple times.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// EventBus publishes committed ledger events and lets consumers (the
// WebSocket hub, notifiers) subscribe to them.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Archiver exports a closed group's full ledger history to blob storage.
type Archiver interface {
	ArchiveGroup(ctx context.Context, snap GroupSnapshot) (string, error)
}

// BlobWriter writes objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
