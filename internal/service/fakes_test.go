package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// memStore is an in-memory implementation of the group, ledger, and audit
// stores with the same visible semantics as the Postgres ones: Get derives
// the cycle-scoped Paid and Defaulted sets, ApplyContribution enforces the
// one-contribution-per-cycle key, and the Apply* methods mutate group and
// ledger state together.
type memStore struct {
	mu            sync.Mutex
	groups        map[string]domain.ThriftGroup
	contributions []domain.Contribution
	defaults      map[string]bool // groupID|cycle|member
	debts         []domain.MemberDebt
	payouts       map[string]string // groupID|cycle -> recipient
	auditEntries  []domain.AuditEntry

	failContribution error // next ApplyContribution fails with this
	failAdvance      error // next ApplyAdvance fails with this

	now func() time.Time // cycle start stamps, shared with the fixture clock
}

func newMemStore() *memStore {
	return &memStore{
		groups:   make(map[string]domain.ThriftGroup),
		defaults: make(map[string]bool),
		payouts:  make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func defaultKey(groupID string, cycle int, member string) string {
	return fmt.Sprintf("%s|%d|%s", groupID, cycle, member)
}

func payoutKey(groupID string, cycle int) string {
	return fmt.Sprintf("%s|%d", groupID, cycle)
}

func (s *memStore) Create(_ context.Context, g domain.ThriftGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (domain.ThriftGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return domain.ThriftGroup{}, domain.ErrNotFound
	}

	g.Paid = make(map[string]bool)
	g.Defaulted = make(map[string]bool)
	for _, c := range s.contributions {
		if c.GroupID == id && c.Cycle == g.CurrentCycleIndex {
			g.Paid[c.Member] = true
		}
	}
	for _, m := range g.CycleOrder {
		if s.defaults[defaultKey(id, g.CurrentCycleIndex, m)] {
			g.Defaulted[m] = true
		}
	}
	return g, nil
}

func (s *memStore) Activate(_ context.Context, id, groupVault, insuranceVault string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.GroupVault = groupVault
	g.InsuranceVault = insuranceVault
	g.Status = domain.GroupStatusActive
	s.groups[id] = g
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	return nil
}

func (s *memStore) SetStatus(_ context.Context, id string, status domain.GroupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.Status = status
	s.groups[id] = g
	return nil
}

func (s *memStore) List(_ context.Context, opts domain.ListOpts) ([]domain.ThriftGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ThriftGroup
	for _, g := range s.groups {
		if opts.Status != "" && g.Status != opts.Status {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ApplyContribution(_ context.Context, c domain.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failContribution; err != nil {
		s.failContribution = nil
		return err
	}

	for _, prev := range s.contributions {
		if prev.GroupID == c.GroupID && prev.Cycle == c.Cycle && prev.Member == c.Member {
			return domain.ErrDuplicateContribution
		}
	}
	s.contributions = append(s.contributions, c)

	g := s.groups[c.GroupID]
	g.InsurancePool += c.Skim
	s.groups[c.GroupID] = g
	return nil
}

func (s *memStore) ApplyAdvance(_ context.Context, adv domain.Advancement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failAdvance; err != nil {
		s.failAdvance = nil
		return err
	}

	g, ok := s.groups[adv.GroupID]
	if !ok {
		return domain.ErrNotFound
	}
	g.InsurancePool -= adv.Coverage
	g.CurrentCycleIndex = adv.NextIndex
	g.CycleStartedAt = s.now()
	if adv.Closed {
		g.Status = domain.GroupStatusClosed
	}
	s.groups[adv.GroupID] = g

	s.payouts[payoutKey(adv.GroupID, adv.Cycle)] = adv.Recipient
	s.debts = append(s.debts, adv.NewDebts...)

	for _, rp := range adv.Repayments {
		for i := range s.debts {
			if s.debts[i].ID == rp.DebtID && s.debts[i].Outstanding >= rp.Amount {
				s.debts[i].Outstanding -= rp.Amount
				s.debts[i].Covered += rp.Amount
			}
		}
	}
	return nil
}

func (s *memStore) MarkDefault(_ context.Context, groupID string, cycle int, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[defaultKey(groupID, cycle, member)] = true
	return nil
}

func (s *memStore) ApplyClaim(_ context.Context, debtID string, paid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.debts {
		if d.ID == debtID && d.Outstanding >= paid {
			s.debts[i].Outstanding -= paid
			s.debts[i].Covered += paid
			g := s.groups[d.GroupID]
			g.InsurancePool -= paid
			s.groups[d.GroupID] = g
			return nil
		}
	}
	return domain.ErrNoDebtRecorded
}

func (s *memStore) ApplyTermination(_ context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	g.InsurancePool = 0
	g.Status = domain.GroupStatusClosed
	s.groups[groupID] = g
	return nil
}

func (s *memStore) ListContributions(_ context.Context, groupID string, cycle int) ([]domain.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Contribution
	for _, c := range s.contributions {
		if c.GroupID == groupID && (cycle < 0 || c.Cycle == cycle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) CollectedNet(_ context.Context, groupID string, cycle int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, c := range s.contributions {
		if c.GroupID == groupID && c.Cycle == cycle {
			sum += c.Net
		}
	}
	return sum, nil
}

func (s *memStore) ListDebts(_ context.Context, groupID string) ([]domain.MemberDebt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.MemberDebt
	for _, d := range s.debts {
		if d.GroupID == groupID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) OldestOpenDebt(_ context.Context, groupID, member string) (domain.MemberDebt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.debts {
		if d.GroupID == groupID && d.Member == member && d.Outstanding > 0 {
			return d, nil
		}
	}
	return domain.MemberDebt{}, domain.ErrNoDebtRecorded
}

func (s *memStore) MemberTotals(_ context.Context, groupID string) ([]domain.MemberTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.MemberTotals, 0, len(g.CycleOrder))
	for _, m := range g.CycleOrder {
		t := domain.MemberTotals{Member: m}
		for _, c := range s.contributions {
			if c.GroupID == groupID && c.Member == m {
				t.TotalContributed += c.Amount
			}
		}
		for cycle := range g.CycleOrder {
			if s.payouts[payoutKey(groupID, cycle)] == m {
				t.HasReceivedPayout = true
			}
		}
		for _, d := range s.debts {
			if d.GroupID == groupID && d.Member == m {
				t.DebtOutstanding += d.Outstanding
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Log(_ context.Context, groupID, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditEntries = append(s.auditEntries, domain.AuditEntry{
		ID:        int64(len(s.auditEntries) + 1),
		GroupID:   groupID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *memStore) ListAudit(_ context.Context, groupID string, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditEntry
	for _, e := range s.auditEntries {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) events(groupID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, e := range s.auditEntries {
		if e.GroupID == groupID {
			out = append(out, e.Event)
		}
	}
	return out
}

// auditAdapter exposes memStore's audit half under the domain.AuditStore
// method set.
type auditAdapter struct{ s *memStore }

func (a auditAdapter) Log(ctx context.Context, groupID, event string, detail map[string]any) error {
	return a.s.Log(ctx, groupID, event, detail)
}

func (a auditAdapter) List(ctx context.Context, groupID string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return a.s.ListAudit(ctx, groupID, opts)
}

// memLocks is a process-local lock manager with the same contract as the
// Redis one.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true

	released := false
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !released {
			released = true
			delete(l.held, key)
		}
	}, nil
}

// passResolver returns caller identities unchanged.
type passResolver struct{}

func (passResolver) Resolve(_ context.Context, raw string) (string, error) {
	return raw, nil
}

var (
	_ domain.GroupStore       = (*memStore)(nil)
	_ domain.LedgerStore      = (*memStore)(nil)
	_ domain.AuditStore       = auditAdapter{}
	_ domain.LockManager      = (*memLocks)(nil)
	_ domain.IdentityResolver = passResolver{}
)
