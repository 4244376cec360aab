// Package service implements the thrift group ledger operations: group
// creation, contributions, cycle advancement, default handling, insurance
// claims, and early termination. All mutating operations serialize on a
// per-group lock and couple their custody transfers to the ledger commit:
// either both land or the custody side is compensated.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Emmyhack/Ahorro/internal/cycle"
	"github.com/Emmyhack/Ahorro/internal/domain"
	"github.com/Emmyhack/Ahorro/internal/gate"
	"github.com/Emmyhack/Ahorro/internal/insurance"
)

// defaultLockTTL bounds how long a crashed process can wedge a group.
const defaultLockTTL = 30 * time.Second

// Notifier is the subset of the notification fan-out the service needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// GroupService is the single entry point for all group ledger operations.
type GroupService struct {
	groups   domain.GroupStore
	ledger   domain.LedgerStore
	audit    domain.AuditStore
	vault    domain.Vault
	locks    domain.LockManager
	cache    domain.GroupCache // optional
	bus      domain.EventBus   // optional
	notifier Notifier          // optional
	resolver domain.IdentityResolver
	logger   *slog.Logger

	lockTTL           time.Duration
	defaultGrace      time.Duration
	defaultDebtPolicy domain.DebtPolicy
	now               func() time.Time
}

// NewGroupService creates a GroupService with its required dependencies.
// Cache, bus, and notifier are attached with the With* builders.
func NewGroupService(
	groups domain.GroupStore,
	ledger domain.LedgerStore,
	audit domain.AuditStore,
	vault domain.Vault,
	locks domain.LockManager,
	resolver domain.IdentityResolver,
	logger *slog.Logger,
) *GroupService {
	return &GroupService{
		groups:            groups,
		ledger:            ledger,
		audit:             audit,
		vault:             vault,
		locks:             locks,
		resolver:          resolver,
		logger:            logger.With(slog.String("component", "group_service")),
		lockTTL:           defaultLockTTL,
		defaultGrace:      0,
		defaultDebtPolicy: domain.DebtPolicyCarryForward,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// WithCache attaches a snapshot cache for the read path.
func (s *GroupService) WithCache(c domain.GroupCache) *GroupService {
	s.cache = c
	return s
}

// WithEventBus attaches an event bus; committed mutations publish on it.
func (s *GroupService) WithEventBus(b domain.EventBus) *GroupService {
	s.bus = b
	return s
}

// WithNotifier attaches a notification fan-out for operator alerts.
func (s *GroupService) WithNotifier(n Notifier) *GroupService {
	s.notifier = n
	return s
}

// WithLockTTL overrides the per-group lock TTL.
func (s *GroupService) WithLockTTL(ttl time.Duration) *GroupService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithDefaults sets the per-group policy defaults applied when a creation
// request leaves them unset.
func (s *GroupService) WithDefaults(grace time.Duration, policy domain.DebtPolicy) *GroupService {
	s.defaultGrace = grace
	if policy != "" {
		s.defaultDebtPolicy = policy
	}
	return s
}

// CreateGroupParams is the group creation surface.
type CreateGroupParams struct {
	ModelType          domain.ModelType
	InsuranceBps       int
	CycleOrder         []string
	ContributionAmount int64
	GraceWindow        time.Duration
	DebtPolicy         domain.DebtPolicy
}

// CreateGroup validates the configuration, provisions the custody vaults,
// and activates the group. The operation is all-or-nothing: a provisioning
// failure removes the forming row before returning.
func (s *GroupService) CreateGroup(ctx context.Context, caller string, p CreateGroupParams) (domain.ThriftGroup, error) {
	authority, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return domain.ThriftGroup{}, err
	}

	order := make([]string, len(p.CycleOrder))
	for i, m := range p.CycleOrder {
		resolved, err := s.resolver.Resolve(ctx, m)
		if err != nil {
			return domain.ThriftGroup{}, fmt.Errorf("%w: cycle order entry %d", domain.ErrInvalidConfig, i)
		}
		order[i] = resolved
	}

	if err := cycle.ValidateConfig(p.ModelType, p.InsuranceBps, order, p.ContributionAmount); err != nil {
		return domain.ThriftGroup{}, err
	}

	policy := p.DebtPolicy
	if policy == "" {
		policy = s.defaultDebtPolicy
	}
	if policy != domain.DebtPolicyCarryForward && policy != domain.DebtPolicyExclude {
		return domain.ThriftGroup{}, fmt.Errorf("%w: unknown debt policy %q", domain.ErrInvalidConfig, policy)
	}
	grace := p.GraceWindow
	if grace < 0 {
		return domain.ThriftGroup{}, fmt.Errorf("%w: negative grace window", domain.ErrInvalidConfig)
	}
	if grace == 0 {
		grace = s.defaultGrace
	}

	now := s.now()
	g := domain.ThriftGroup{
		ID:                 uuid.New().String(),
		Authority:          authority,
		ModelType:          p.ModelType,
		InsuranceBps:       p.InsuranceBps,
		CycleOrder:         order,
		ContributionAmount: p.ContributionAmount,
		Status:             domain.GroupStatusForming,
		DebtPolicy:         policy,
		GraceWindow:        grace,
		Paid:               map[string]bool{},
		Defaulted:          map[string]bool{},
		CycleStartedAt:     now,
		CreatedAt:          now,
	}

	if err := s.groups.Create(ctx, g); err != nil {
		return domain.ThriftGroup{}, fmt.Errorf("service: create group: %w", err)
	}

	handles, err := s.vault.Provision(ctx, g.ID)
	if err != nil {
		if delErr := s.groups.Delete(ctx, g.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "rollback of forming group failed",
				slog.String("group_id", g.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return domain.ThriftGroup{}, fmt.Errorf("%w: %v", domain.ErrVaultProvisionFailed, err)
	}

	if err := s.groups.Activate(ctx, g.ID, handles.Group, handles.Insurance); err != nil {
		if delErr := s.groups.Delete(ctx, g.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "rollback of forming group failed",
				slog.String("group_id", g.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return domain.ThriftGroup{}, fmt.Errorf("service: activate group: %w", err)
	}

	g.GroupVault = handles.Group
	g.InsuranceVault = handles.Insurance
	g.Status = domain.GroupStatusActive

	s.auditLog(ctx, g.ID, "group_created", map[string]any{
		"authority": authority,
		"members":   len(order),
		"amount":    p.ContributionAmount,
		"bps":       p.InsuranceBps,
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventGroupCreated, GroupID: g.ID, Cycle: 0, At: now,
	})

	s.logger.InfoContext(ctx, "group created",
		slog.String("group_id", g.ID),
		slog.Int("members", len(order)),
		slog.Int64("contribution_amount", p.ContributionAmount),
	)
	return g, nil
}

// GetGroupState returns a read-only snapshot of a group, served from the
// snapshot cache when possible.
func (s *GroupService) GetGroupState(ctx context.Context, groupID string) (domain.GroupSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, groupID); err == nil {
			return snap, nil
		}
	}

	snap, err := s.loadSnapshot(ctx, groupID)
	if err != nil {
		return domain.GroupSnapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "snapshot cache set failed",
				slog.String("group_id", groupID),
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, nil
}

// ListGroups returns groups with pagination and optional status filter.
func (s *GroupService) ListGroups(ctx context.Context, opts domain.ListOpts) ([]domain.ThriftGroup, error) {
	return s.groups.List(ctx, opts)
}

// ContributionResult reports a recorded contribution and whether it was
// the final one of the cycle, which triggers disbursement synchronously.
type ContributionResult struct {
	Contribution domain.Contribution `json:"contribution"`
	Disbursed    bool                `json:"disbursed"`
	Payout       *domain.Advancement `json:"payout,omitempty"`
}

// Contribute records a member's payment for the current cycle. The skim is
// accrued to the insurance pool and the net forwarded to the group vault.
// If this was the last outstanding contribution, the cycle disburses
// before returning.
func (s *GroupService) Contribute(ctx context.Context, caller, groupID string, amount int64) (ContributionResult, error) {
	member, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return ContributionResult{}, err
	}

	unlock, err := s.locks.Acquire(ctx, "group:"+groupID, s.lockTTL)
	if err != nil {
		return ContributionResult{}, err
	}
	defer unlock()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return ContributionResult{}, err
	}
	if err := gate.Require(&g, member, gate.CapMember); err != nil {
		return ContributionResult{}, err
	}

	hasOpenDebt := false
	if _, err := s.ledger.OldestOpenDebt(ctx, groupID, member); err == nil {
		hasOpenDebt = true
	} else if !errors.Is(err, domain.ErrNoDebtRecorded) {
		return ContributionResult{}, err
	}

	if err := cycle.CanContribute(&g, member, amount, hasOpenDebt); err != nil {
		return ContributionResult{}, err
	}

	net, skim, err := insurance.ComputeSkim(amount, g.InsuranceBps)
	if err != nil {
		return ContributionResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	// Custody first, ledger second. The unique contribution key makes the
	// ledger insert the commit point; any failure after a transfer has
	// been issued is compensated below.
	if err := s.vault.TransferIn(ctx, g.GroupVault, member, net); err != nil {
		return ContributionResult{}, fmt.Errorf("service: contribution transfer: %w", err)
	}
	if err := s.vault.TransferIn(ctx, g.InsuranceVault, member, skim); err != nil {
		s.compensate(ctx, g.ID, func() error {
			return s.vault.TransferOut(ctx, g.GroupVault, member, net)
		})
		return ContributionResult{}, fmt.Errorf("service: insurance transfer: %w", err)
	}

	c := domain.Contribution{
		ID:        uuid.New().String(),
		GroupID:   g.ID,
		Member:    member,
		Cycle:     g.CurrentCycleIndex,
		Amount:    amount,
		Skim:      skim,
		Net:       net,
		CreatedAt: s.now(),
	}
	if err := s.ledger.ApplyContribution(ctx, c); err != nil {
		s.compensate(ctx, g.ID, func() error {
			if err := s.vault.TransferOut(ctx, g.GroupVault, member, net); err != nil {
				return err
			}
			return s.vault.TransferOut(ctx, g.InsuranceVault, member, skim)
		})
		return ContributionResult{}, err
	}

	s.invalidate(ctx, g.ID)
	s.auditLog(ctx, g.ID, "contribution_received", map[string]any{
		"member": member, "cycle": c.Cycle, "amount": amount, "skim": skim,
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventContribution, GroupID: g.ID, Member: member,
		Cycle: c.Cycle, Amount: amount, At: c.CreatedAt,
	})

	result := ContributionResult{Contribution: c}

	g.Paid[member] = true
	g.InsurancePool += skim
	if g.AllPaid() {
		adv, err := s.disburse(ctx, &g)
		if err != nil {
			// The contribution committed; disbursement can be retried
			// through AdvanceCycle.
			s.logger.ErrorContext(ctx, "automatic disbursement failed",
				slog.String("group_id", g.ID),
				slog.String("error", err.Error()),
			)
			return result, nil
		}
		result.Disbursed = true
		result.Payout = &adv
	}
	return result, nil
}

// AdvanceCycle disburses the current cycle. Members may call it once the
// cycle is fully collected; the authority may force it after the grace
// window or once every outstanding member is flagged as defaulted.
func (s *GroupService) AdvanceCycle(ctx context.Context, caller, groupID string) (domain.Advancement, error) {
	identity, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return domain.Advancement{}, err
	}

	unlock, err := s.locks.Acquire(ctx, "group:"+groupID, s.lockTTL)
	if err != nil {
		return domain.Advancement{}, err
	}
	defer unlock()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return domain.Advancement{}, err
	}

	isAuthority := gate.IsAuthority(&g, identity)
	if !isAuthority {
		if err := gate.Require(&g, identity, gate.CapMember); err != nil {
			return domain.Advancement{}, err
		}
	}
	if err := cycle.CanAdvance(&g, isAuthority, s.now()); err != nil {
		return domain.Advancement{}, err
	}

	return s.disburse(ctx, &g)
}

// disburse pays the current cycle out to its recipient. Under the
// carry-forward policy the recipient's outstanding debts are settled out
// of the payout first. Callers must hold the group lock and have validated
// the transition.
func (s *GroupService) disburse(ctx context.Context, g *domain.ThriftGroup) (domain.Advancement, error) {
	collected, err := s.ledger.CollectedNet(ctx, g.ID, g.CurrentCycleIndex)
	if err != nil {
		return domain.Advancement{}, err
	}

	recipient := g.CurrentRecipient()
	now := s.now()

	// Cover defaulters from the insurance pool, oldest rotation position
	// first; whatever the pool cannot absorb becomes member debt.
	var newDebts []domain.MemberDebt
	var coverage int64
	poolLeft := g.InsurancePool
	for _, m := range g.Outstanding() {
		covered, remaining := insurance.Coverage(poolLeft, g.ContributionAmount)
		poolLeft -= covered
		coverage += covered
		if remaining > 0 {
			newDebts = append(newDebts, domain.MemberDebt{
				ID:          uuid.New().String(),
				GroupID:     g.ID,
				Member:      m,
				Cycle:       g.CurrentCycleIndex,
				Recipient:   recipient,
				Shortfall:   g.ContributionAmount,
				Covered:     covered,
				Outstanding: remaining,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	// Under carry-forward the recipient's own open debts are settled out
	// of the payout before anything reaches them: the withheld slice goes
	// to the members who were shorted when each debt was recorded, oldest
	// debt first.
	var repayments []domain.DebtRepayment
	var withheld int64
	if g.DebtPolicy == domain.DebtPolicyCarryForward {
		debts, err := s.ledger.ListDebts(ctx, g.ID)
		if err != nil {
			return domain.Advancement{}, err
		}
		available := collected
		for _, d := range debts {
			if available == 0 {
				break
			}
			if d.Member != recipient || d.Outstanding <= 0 {
				continue
			}
			pay := d.Outstanding
			if pay > available {
				pay = available
			}
			repayments = append(repayments, domain.DebtRepayment{
				DebtID:   d.ID,
				Creditor: d.Recipient,
				Amount:   pay,
			})
			available -= pay
			withheld += pay
		}
	}
	payout := collected - withheld

	// undoTransfers reverses the group-vault transfers issued so far plus,
	// optionally, the coverage transfer.
	undoTransfers := func(repaid int, withCoverage bool) func() error {
		return func() error {
			if err := s.vault.TransferIn(ctx, g.GroupVault, recipient, payout); err != nil {
				return err
			}
			for _, rp := range repayments[:repaid] {
				if err := s.vault.TransferIn(ctx, g.GroupVault, rp.Creditor, rp.Amount); err != nil {
					return err
				}
			}
			if withCoverage && coverage > 0 {
				return s.vault.TransferIn(ctx, g.InsuranceVault, recipient, coverage)
			}
			return nil
		}
	}

	if err := s.vault.TransferOut(ctx, g.GroupVault, recipient, payout); err != nil {
		return domain.Advancement{}, fmt.Errorf("service: payout transfer: %w", err)
	}
	for i, rp := range repayments {
		if err := s.vault.TransferOut(ctx, g.GroupVault, rp.Creditor, rp.Amount); err != nil {
			s.compensate(ctx, g.ID, undoTransfers(i, false))
			return domain.Advancement{}, fmt.Errorf("service: debt repayment transfer to %s: %w", rp.Creditor, err)
		}
	}
	if coverage > 0 {
		if err := s.vault.TransferOut(ctx, g.InsuranceVault, recipient, coverage); err != nil {
			s.compensate(ctx, g.ID, undoTransfers(len(repayments), false))
			return domain.Advancement{}, fmt.Errorf("service: coverage transfer: %w", err)
		}
	}

	nextIndex, closed := cycle.Next(g)
	adv := domain.Advancement{
		GroupID:    g.ID,
		Cycle:      g.CurrentCycleIndex,
		Recipient:  recipient,
		Disbursed:  payout,
		Coverage:   coverage,
		Withheld:   withheld,
		NewDebts:   newDebts,
		Repayments: repayments,
		NextIndex:  nextIndex,
		Closed:     closed,
	}

	if err := s.ledger.ApplyAdvance(ctx, adv); err != nil {
		s.compensate(ctx, g.ID, undoTransfers(len(repayments), true))
		return domain.Advancement{}, err
	}

	s.invalidate(ctx, g.ID)
	s.auditLog(ctx, g.ID, "payout_disbursed", map[string]any{
		"cycle": adv.Cycle, "recipient": recipient,
		"amount": payout, "coverage": coverage, "withheld": withheld, "closed": closed,
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventPayoutDisbursed, GroupID: g.ID, Member: recipient,
		Cycle: adv.Cycle, Amount: payout + coverage, At: now,
	})
	s.notify(ctx, "payout_disbursed", "Cycle payout",
		fmt.Sprintf("group %s cycle %d paid %d to %s", g.ID, adv.Cycle, payout+coverage, recipient))

	if closed {
		s.publish(ctx, domain.GroupEvent{
			Type: domain.EventGroupClosed, GroupID: g.ID, Cycle: adv.Cycle, At: now,
		})
		s.notify(ctx, "group_closed", "Group closed",
			fmt.Sprintf("group %s completed its rotation", g.ID))
	}

	s.logger.InfoContext(ctx, "cycle disbursed",
		slog.String("group_id", g.ID),
		slog.Int("cycle", adv.Cycle),
		slog.String("recipient", recipient),
		slog.Int64("amount", payout),
		slog.Int64("coverage", coverage),
		slog.Int64("withheld", withheld),
		slog.Bool("closed", closed),
	)
	return adv, nil
}

// MarkDefault flags a member that failed to contribute within the
// collection window. Flagging never blocks advancement; it enables the
// authority to force it.
func (s *GroupService) MarkDefault(ctx context.Context, caller, groupID, member string) error {
	identity, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	target, err := s.resolver.Resolve(ctx, member)
	if err != nil {
		return err
	}

	unlock, err := s.locks.Acquire(ctx, "group:"+groupID, s.lockTTL)
	if err != nil {
		return err
	}
	defer unlock()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if err := gate.Require(&g, identity, gate.CapAuthority); err != nil {
		return err
	}
	if err := cycle.CanMarkDefault(&g, target); err != nil {
		return err
	}

	if err := s.ledger.MarkDefault(ctx, groupID, g.CurrentCycleIndex, target); err != nil {
		return err
	}

	s.invalidate(ctx, groupID)
	s.auditLog(ctx, groupID, "member_default", map[string]any{
		"member": target, "cycle": g.CurrentCycleIndex,
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventMemberDefault, GroupID: groupID, Member: target,
		Cycle: g.CurrentCycleIndex, At: s.now(),
	})
	s.notify(ctx, "member_default", "Member default",
		fmt.Sprintf("member %s flagged in group %s cycle %d", target, groupID, g.CurrentCycleIndex))
	return nil
}

// ClaimResult reports an insurance claim payout.
type ClaimResult struct {
	DebtID    string `json:"debt_id"`
	Recipient string `json:"recipient"`
	Paid      int64  `json:"paid"`
	Remaining int64  `json:"remaining"` // debt still outstanding
}

// ClaimInsurance pays a member's recorded default shortfall down from the
// insurance pool, routing funds to the member who was shorted. A pool that
// cannot cover the requested amount pays what it can and reports
// ErrInsufficientInsurance; the remainder stays recorded as debt.
func (s *GroupService) ClaimInsurance(ctx context.Context, caller, groupID, member string, claim int64) (ClaimResult, error) {
	identity, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return ClaimResult{}, err
	}
	target, err := s.resolver.Resolve(ctx, member)
	if err != nil {
		return ClaimResult{}, err
	}
	if claim <= 0 {
		return ClaimResult{}, fmt.Errorf("%w: claim amount must be positive", domain.ErrInvalidConfig)
	}

	unlock, err := s.locks.Acquire(ctx, "group:"+groupID, s.lockTTL)
	if err != nil {
		return ClaimResult{}, err
	}
	defer unlock()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return ClaimResult{}, err
	}
	if err := gate.Require(&g, identity, gate.CapAuthority); err != nil {
		return ClaimResult{}, err
	}
	if g.Status == domain.GroupStatusForming || g.Status == domain.GroupStatusSettling {
		return ClaimResult{}, domain.ErrGroupClosed
	}

	debt, err := s.ledger.OldestOpenDebt(ctx, groupID, target)
	if err != nil {
		return ClaimResult{}, err
	}

	want := claim
	if want > debt.Outstanding {
		want = debt.Outstanding
	}
	paid, _ := insurance.Coverage(g.InsurancePool, want)
	if paid == 0 {
		return ClaimResult{DebtID: debt.ID, Recipient: debt.Recipient, Remaining: debt.Outstanding},
			domain.ErrInsufficientInsurance
	}

	if err := s.vault.TransferOut(ctx, g.InsuranceVault, debt.Recipient, paid); err != nil {
		return ClaimResult{}, fmt.Errorf("service: claim transfer: %w", err)
	}
	if err := s.ledger.ApplyClaim(ctx, debt.ID, paid); err != nil {
		s.compensate(ctx, g.ID, func() error {
			return s.vault.TransferIn(ctx, g.InsuranceVault, debt.Recipient, paid)
		})
		return ClaimResult{}, err
	}

	s.invalidate(ctx, groupID)
	s.auditLog(ctx, groupID, "insurance_claim", map[string]any{
		"member": target, "debt_id": debt.ID, "paid": paid,
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventInsuranceClaim, GroupID: groupID, Member: target,
		Cycle: debt.Cycle, Amount: paid, At: s.now(),
	})

	result := ClaimResult{
		DebtID:    debt.ID,
		Recipient: debt.Recipient,
		Paid:      paid,
		Remaining: debt.Outstanding - paid,
	}
	if paid < want {
		return result, domain.ErrInsufficientInsurance
	}
	return result, nil
}

// Refund is one settlement transfer issued during early termination.
type Refund struct {
	Member string `json:"member"`
	Amount int64  `json:"amount"`
	Source string `json:"source"` // "group" or "insurance"
}

// TerminateGroup performs authority-initiated early termination with full
// refund settlement: the open cycle's net contributions go back to their
// contributors and the insurance pool is refunded pro-rata by each
// member's collected skims, dust going to the authority. On any transfer
// failure every refund already issued is compensated and the group
// returns to active.
func (s *GroupService) TerminateGroup(ctx context.Context, caller, groupID string) ([]Refund, error) {
	identity, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Acquire(ctx, "group:"+groupID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := gate.Require(&g, identity, gate.CapAuthority); err != nil {
		return nil, err
	}
	if g.Status != domain.GroupStatusActive {
		return nil, domain.ErrGroupClosed
	}

	if err := s.groups.SetStatus(ctx, groupID, domain.GroupStatusSettling); err != nil {
		return nil, err
	}
	s.invalidate(ctx, groupID)

	refunds, err := s.settlementPlan(ctx, &g)
	if err != nil {
		s.revertSettling(ctx, groupID)
		return nil, err
	}

	var issued []Refund
	for _, r := range refunds {
		vault := g.GroupVault
		if r.Source == "insurance" {
			vault = g.InsuranceVault
		}
		if err := s.vault.TransferOut(ctx, vault, r.Member, r.Amount); err != nil {
			s.compensate(ctx, g.ID, func() error {
				for _, done := range issued {
					v := g.GroupVault
					if done.Source == "insurance" {
						v = g.InsuranceVault
					}
					if err := s.vault.TransferIn(ctx, v, done.Member, done.Amount); err != nil {
						return err
					}
				}
				return nil
			})
			s.revertSettling(ctx, groupID)
			return nil, fmt.Errorf("service: settlement transfer to %s: %w", r.Member, err)
		}
		issued = append(issued, r)
	}

	if err := s.ledger.ApplyTermination(ctx, groupID); err != nil {
		s.compensate(ctx, g.ID, func() error {
			for _, done := range issued {
				v := g.GroupVault
				if done.Source == "insurance" {
					v = g.InsuranceVault
				}
				if err := s.vault.TransferIn(ctx, v, done.Member, done.Amount); err != nil {
					return err
				}
			}
			return nil
		})
		s.revertSettling(ctx, groupID)
		return nil, err
	}

	s.invalidate(ctx, groupID)
	s.auditLog(ctx, groupID, "group_terminated", map[string]any{
		"refunds": len(issued),
	})
	s.publish(ctx, domain.GroupEvent{
		Type: domain.EventGroupClosed, GroupID: groupID, Cycle: g.CurrentCycleIndex, At: s.now(),
	})
	s.notify(ctx, "group_closed", "Group terminated",
		fmt.Sprintf("group %s terminated early with %d refunds", groupID, len(issued)))
	return issued, nil
}

// settlementPlan computes the refund set for early termination: current
// cycle net contributions back to contributors, then the insurance pool
// pro-rata over all collected skims with dust to the authority.
func (s *GroupService) settlementPlan(ctx context.Context, g *domain.ThriftGroup) ([]Refund, error) {
	var refunds []Refund

	current, err := s.ledger.ListContributions(ctx, g.ID, g.CurrentCycleIndex)
	if err != nil {
		return nil, err
	}
	for _, c := range current {
		if c.Net > 0 {
			refunds = append(refunds, Refund{Member: c.Member, Amount: c.Net, Source: "group"})
		}
	}

	if g.InsurancePool > 0 {
		all, err := s.ledger.ListContributions(ctx, g.ID, -1)
		if err != nil {
			return nil, err
		}
		skims := make(map[string]int64)
		var totalSkim int64
		for _, c := range all {
			skims[c.Member] += c.Skim
			totalSkim += c.Skim
		}

		distributed := int64(0)
		if totalSkim > 0 {
			for _, m := range g.CycleOrder {
				if skims[m] == 0 {
					continue
				}
				share := g.InsurancePool * skims[m] / totalSkim
				if share > 0 {
					refunds = append(refunds, Refund{Member: m, Amount: share, Source: "insurance"})
					distributed += share
				}
			}
		}
		if dust := g.InsurancePool - distributed; dust > 0 {
			refunds = append(refunds, Refund{Member: g.Authority, Amount: dust, Source: "insurance"})
		}
	}

	return refunds, nil
}

func (s *GroupService) revertSettling(ctx context.Context, groupID string) {
	if err := s.groups.SetStatus(ctx, groupID, domain.GroupStatusActive); err != nil {
		s.logger.ErrorContext(ctx, "failed to revert group to active",
			slog.String("group_id", groupID),
			slog.String("error", err.Error()),
		)
	}
	s.invalidate(ctx, groupID)
}

// loadSnapshot composes a full snapshot from the stores.
func (s *GroupService) loadSnapshot(ctx context.Context, groupID string) (domain.GroupSnapshot, error) {
	g, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return domain.GroupSnapshot{}, err
	}

	contributions, err := s.ledger.ListContributions(ctx, groupID, g.CurrentCycleIndex)
	if err != nil {
		return domain.GroupSnapshot{}, err
	}
	debts, err := s.ledger.ListDebts(ctx, groupID)
	if err != nil {
		return domain.GroupSnapshot{}, err
	}
	totals, err := s.ledger.MemberTotals(ctx, groupID)
	if err != nil {
		return domain.GroupSnapshot{}, err
	}

	return domain.GroupSnapshot{
		Group:         g,
		Outstanding:   g.Outstanding(),
		Members:       totals,
		Contributions: contributions,
		Debts:         debts,
	}, nil
}

// compensate runs a custody compensation after a failed commit. A failing
// compensation means custody and ledger disagree; that is surfaced loudly
// for operator reconciliation.
func (s *GroupService) compensate(ctx context.Context, groupID string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "custody compensation failed; balances need reconciliation",
			slog.String("group_id", groupID),
			slog.String("error", err.Error()),
		)
		s.auditLog(ctx, groupID, "compensation_failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *GroupService) invalidate(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, groupID); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache invalidation failed",
			slog.String("group_id", groupID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *GroupService) auditLog(ctx context.Context, groupID, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, groupID, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *GroupService) publish(ctx context.Context, e domain.GroupEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, e.Channel(), payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", e.Channel()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *GroupService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
