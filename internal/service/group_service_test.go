package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Emmyhack/Ahorro/internal/custody"
	"github.com/Emmyhack/Ahorro/internal/domain"
)

const (
	authority = "boss"
	alice     = "alice"
	bob       = "bob"
	carol     = "carol"
)

type fixture struct {
	store *memStore
	bank  *custody.Bank
	locks *memLocks
	svc   *GroupService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: newMemStore(),
		bank:  custody.NewBank(),
		locks: newMemLocks(),
		now:   time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewGroupService(f.store, f.store, auditAdapter{f.store}, f.bank, f.locks, passResolver{}, logger)
	f.svc.now = func() time.Time { return f.now }
	f.store.now = f.svc.now
	return f
}

func (f *fixture) advanceClock(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) createGroup(t *testing.T, opts ...func(*CreateGroupParams)) domain.ThriftGroup {
	t.Helper()

	p := CreateGroupParams{
		ModelType:          domain.ModelFixedRotation,
		InsuranceBps:       500,
		CycleOrder:         []string{alice, bob, carol},
		ContributionAmount: 100,
		DebtPolicy:         domain.DebtPolicyCarryForward,
	}
	for _, o := range opts {
		o(&p)
	}

	g, err := f.svc.CreateGroup(context.Background(), authority, p)
	require.NoError(t, err)
	return g
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)

	require.Equal(t, domain.GroupStatusActive, g.Status)
	require.Equal(t, authority, g.Authority)
	require.NotEmpty(t, g.GroupVault)
	require.NotEmpty(t, g.InsuranceVault)
	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Zero(t, f.bank.Balance(g.InsuranceVault))

	stored, err := f.store.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupStatusActive, stored.Status)
	require.Contains(t, f.store.events(g.ID), "group_created")
}

func TestCreateGroupRejectsBadConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(*CreateGroupParams)
	}{
		{"auction model", func(p *CreateGroupParams) { p.ModelType = domain.ModelAuction }},
		{"bps over cap", func(p *CreateGroupParams) { p.InsuranceBps = 10_001 }},
		{"single member", func(p *CreateGroupParams) { p.CycleOrder = []string{alice} }},
		{"duplicate member", func(p *CreateGroupParams) { p.CycleOrder = []string{alice, bob, alice} }},
		{"zero amount", func(p *CreateGroupParams) { p.ContributionAmount = 0 }},
		{"negative grace", func(p *CreateGroupParams) { p.GraceWindow = -time.Hour }},
		{"unknown debt policy", func(p *CreateGroupParams) { p.DebtPolicy = "forgive" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := CreateGroupParams{
				ModelType:          domain.ModelFixedRotation,
				InsuranceBps:       500,
				CycleOrder:         []string{alice, bob, carol},
				ContributionAmount: 100,
			}
			tc.mod(&p)
			_, err := f.svc.CreateGroup(ctx, authority, p)
			require.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestCreateGroupRollsBackOnProvisionFailure(t *testing.T) {
	f := newFixture(t)
	f.bank.BeforeProvision = func(string) error {
		return errors.New("custody unreachable")
	}

	_, err := f.svc.CreateGroup(context.Background(), authority, CreateGroupParams{
		ModelType:          domain.ModelFixedRotation,
		InsuranceBps:       500,
		CycleOrder:         []string{alice, bob, carol},
		ContributionAmount: 100,
	})
	require.ErrorIs(t, err, domain.ErrVaultProvisionFailed)

	groups, err := f.store.List(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestContributeSplitsSkim(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	res, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	require.False(t, res.Disbursed)
	require.Equal(t, int64(95), res.Contribution.Net)
	require.Equal(t, int64(5), res.Contribution.Skim)

	require.Equal(t, int64(95), f.bank.Balance(g.GroupVault))
	require.Equal(t, int64(5), f.bank.Balance(g.InsuranceVault))

	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), stored.InsurancePool)
	require.True(t, stored.Paid[alice])
}

func TestContributeRejections(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, "mallory", g.ID, 100)
	require.ErrorIs(t, err, domain.ErrNotAMember)

	_, err = f.svc.Contribute(ctx, alice, g.ID, 99)
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	_, err = f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, alice, g.ID, 100)
	require.ErrorIs(t, err, domain.ErrDuplicateContribution)

	// No partial effects from the rejected attempts.
	require.Equal(t, int64(95), f.bank.Balance(g.GroupVault))
	require.Equal(t, int64(5), f.bank.Balance(g.InsuranceVault))
}

func TestContributeWhileLocked(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)

	unlock, err := f.locks.Acquire(context.Background(), "group:"+g.ID, time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = f.svc.Contribute(context.Background(), alice, g.ID, 100)
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestContributeCompensatesOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	f.store.failContribution = errors.New("deadlock detected")
	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.Error(t, err)

	// The custody transfers were rolled back and the ledger is untouched.
	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Zero(t, f.bank.Balance(g.InsuranceVault))
	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Zero(t, stored.InsurancePool)
	require.False(t, stored.Paid[alice])

	// A retry goes through cleanly.
	_, err = f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
}

func TestFinalContributionDisburses(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)

	res, err := f.svc.Contribute(ctx, carol, g.ID, 100)
	require.NoError(t, err)
	require.True(t, res.Disbursed)
	require.NotNil(t, res.Payout)
	require.Equal(t, alice, res.Payout.Recipient)
	require.Equal(t, int64(285), res.Payout.Disbursed)
	require.Zero(t, res.Payout.Coverage)
	require.False(t, res.Payout.Closed)

	// Group vault drained to the recipient; pool keeps the skims.
	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Equal(t, int64(15), f.bank.Balance(g.InsuranceVault))

	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.CurrentCycleIndex)
	require.Equal(t, int64(15), stored.InsurancePool)
	require.Empty(t, stored.Paid)
}

func TestAutoDisburseFailureLeavesContribution(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)

	f.store.failAdvance = errors.New("connection reset")
	res, err := f.svc.Contribute(ctx, carol, g.ID, 100)
	require.NoError(t, err)
	require.False(t, res.Disbursed)

	// Funds stayed in the vaults and the cycle is retryable by anyone.
	require.Equal(t, int64(285), f.bank.Balance(g.GroupVault))
	adv, err := f.svc.AdvanceCycle(ctx, bob, g.ID)
	require.NoError(t, err)
	require.Equal(t, alice, adv.Recipient)
	require.Equal(t, int64(285), adv.Disbursed)
	require.Zero(t, f.bank.Balance(g.GroupVault))
}

func TestFullRotationClosesGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	members := []string{alice, bob, carol}
	for cycle := 0; cycle < 3; cycle++ {
		for i, m := range members {
			res, err := f.svc.Contribute(ctx, m, g.ID, 100)
			require.NoError(t, err)
			if i == len(members)-1 {
				require.True(t, res.Disbursed)
				require.Equal(t, members[cycle], res.Payout.Recipient)
			}
		}
	}

	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupStatusClosed, stored.Status)

	// 900 in, 855 out, 45 of skims left in the insurance pool.
	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Equal(t, int64(45), f.bank.Balance(g.InsuranceVault))
	require.Equal(t, int64(45), stored.InsurancePool)

	totals, err := f.store.MemberTotals(ctx, g.ID)
	require.NoError(t, err)
	for _, tot := range totals {
		require.Equal(t, int64(300), tot.TotalContributed)
		require.True(t, tot.HasReceivedPayout)
		require.Zero(t, tot.DebtOutstanding)
	}

	_, err = f.svc.Contribute(ctx, alice, g.ID, 100)
	require.ErrorIs(t, err, domain.ErrGroupClosed)
}

func TestAdvanceByMemberRequiresFullCycle(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)

	_, err = f.svc.AdvanceCycle(ctx, bob, g.ID)
	require.ErrorIs(t, err, domain.ErrCycleIncomplete)

	_, err = f.svc.AdvanceCycle(ctx, "mallory", g.ID)
	require.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestAuthorityAdvanceAfterGraceCoversShortfall(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, func(p *CreateGroupParams) { p.GraceWindow = time.Hour })
	ctx := context.Background()

	// Cycle 0 completes normally and seeds the pool with 15.
	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}

	// Cycle 1: carol never pays.
	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)

	// Within the window even the authority cannot force it.
	_, err = f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.ErrorIs(t, err, domain.ErrCycleIncomplete)

	f.advanceClock(2 * time.Hour)
	adv, err := f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.NoError(t, err)
	require.Equal(t, bob, adv.Recipient)
	require.Equal(t, int64(190), adv.Disbursed)
	require.Equal(t, int64(15), adv.Coverage)
	require.Len(t, adv.NewDebts, 1)

	debt := adv.NewDebts[0]
	require.Equal(t, carol, debt.Member)
	require.Equal(t, bob, debt.Recipient)
	require.Equal(t, int64(100), debt.Shortfall)
	require.Equal(t, int64(15), debt.Covered)
	require.Equal(t, int64(85), debt.Outstanding)

	// Pool fully spent on coverage.
	require.Zero(t, f.bank.Balance(g.InsuranceVault))
	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Zero(t, stored.InsurancePool)
	require.Equal(t, 2, stored.CurrentCycleIndex)
}

func TestMarkDefaultEnablesAdvanceWithoutGrace(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)

	// Zero grace never elapses; advancement needs the flag.
	_, err = f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.ErrorIs(t, err, domain.ErrCycleIncomplete)

	require.ErrorIs(t, f.svc.MarkDefault(ctx, bob, g.ID, carol), domain.ErrUnauthorized)
	require.NoError(t, f.svc.MarkDefault(ctx, authority, g.ID, carol))
	require.ErrorIs(t, f.svc.MarkDefault(ctx, authority, g.ID, carol), domain.ErrInvalidConfig)

	adv, err := f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.NoError(t, err)
	require.Equal(t, alice, adv.Recipient)
	require.Equal(t, int64(190), adv.Disbursed)
	require.Equal(t, int64(10), adv.Coverage) // pool held only two skims
	require.Len(t, adv.NewDebts, 1)
	require.Equal(t, int64(90), adv.NewDebts[0].Outstanding)
}

func TestCarryForwardWithholdsDebtFromPayout(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, func(p *CreateGroupParams) {
		p.InsuranceBps = 0
		p.GraceWindow = time.Hour
	})
	ctx := context.Background()

	// Cycle 0: carol defaults with an empty pool, so her whole 100 becomes
	// debt owed to alice, the shorted recipient.
	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)
	f.advanceClock(2 * time.Hour)
	adv, err := f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.NoError(t, err)
	require.Equal(t, alice, adv.Recipient)
	require.Equal(t, int64(200), adv.Disbursed)
	require.Zero(t, adv.Coverage)
	require.Len(t, adv.NewDebts, 1)
	require.Equal(t, int64(100), adv.NewDebts[0].Outstanding)

	// Cycle 1 completes normally; carry-forward keeps carol in rotation.
	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}

	// Cycle 2: carol's own payout settles her debt before anything reaches
	// her. 100 of the 300 collected goes back to alice; carol keeps 200.
	var res ContributionResult
	for _, m := range []string{alice, bob, carol} {
		res, err = f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}
	require.True(t, res.Disbursed)
	payout := res.Payout
	require.Equal(t, carol, payout.Recipient)
	require.Equal(t, int64(200), payout.Disbursed)
	require.Equal(t, int64(100), payout.Withheld)
	require.Len(t, payout.Repayments, 1)
	require.Equal(t, alice, payout.Repayments[0].Creditor)
	require.Equal(t, int64(100), payout.Repayments[0].Amount)
	require.True(t, payout.Closed)

	// The vault drained fully and the debt is closed out.
	require.Zero(t, f.bank.Balance(g.GroupVault))
	_, err = f.store.OldestOpenDebt(ctx, g.ID, carol)
	require.ErrorIs(t, err, domain.ErrNoDebtRecorded)

	totals, err := f.store.MemberTotals(ctx, g.ID)
	require.NoError(t, err)
	for _, tot := range totals {
		require.Zero(t, tot.DebtOutstanding)
	}
}

func TestClaimInsurancePartialPayout(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, func(p *CreateGroupParams) { p.GraceWindow = time.Hour })
	ctx := context.Background()

	// Cycle 0: all pay and alice receives. Cycle 1: alice defaults after
	// her own payout; the pool of 25 covers part of her 100, leaving 75 of
	// debt owed to bob. Her payout is already behind her, so nothing is
	// ever withheld against this debt.
	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}
	_, err := f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, carol, g.ID, 100)
	require.NoError(t, err)
	f.advanceClock(2 * time.Hour)
	_, err = f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.NoError(t, err)

	// Cycle 2 completes, replenishing the pool to 15 and closing the group.
	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}

	// Only the authority may claim.
	_, err = f.svc.ClaimInsurance(ctx, bob, g.ID, alice, 50)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// The pool holds 15 against a requested 50: partial success.
	res, err := f.svc.ClaimInsurance(ctx, authority, g.ID, alice, 50)
	require.ErrorIs(t, err, domain.ErrInsufficientInsurance)
	require.Equal(t, int64(15), res.Paid)
	require.Equal(t, int64(60), res.Remaining)
	require.Equal(t, bob, res.Recipient)
	require.Zero(t, f.bank.Balance(g.InsuranceVault))

	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Zero(t, stored.InsurancePool)

	// The ledger still carries the residual debt.
	debt, err := f.store.OldestOpenDebt(ctx, g.ID, alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), debt.Outstanding)
}

func TestClaimInsuranceWithoutDebt(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)

	_, err := f.svc.ClaimInsurance(context.Background(), authority, g.ID, alice, 10)
	require.ErrorIs(t, err, domain.ErrNoDebtRecorded)
}

func TestExcludePolicyBlocksDebtors(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, func(p *CreateGroupParams) { p.DebtPolicy = domain.DebtPolicyExclude })
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkDefault(ctx, authority, g.ID, carol))
	_, err = f.svc.AdvanceCycle(ctx, authority, g.ID)
	require.NoError(t, err)

	_, err = f.svc.Contribute(ctx, carol, g.ID, 100)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// Solvent members are unaffected.
	_, err = f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)
}

func TestTerminateGroupRefundsEverything(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	// One full cycle, then alice pays into the second before termination.
	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}
	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)

	_, err = f.svc.TerminateGroup(ctx, alice, g.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	refunds, err := f.svc.TerminateGroup(ctx, authority, g.ID)
	require.NoError(t, err)

	// alice: 95 net back plus 10 of the 20 pool (two of four skims are
	// hers); bob and carol get 5 each.
	byMember := map[string]int64{}
	for _, r := range refunds {
		byMember[r.Member] += r.Amount
	}
	require.Equal(t, int64(105), byMember[alice])
	require.Equal(t, int64(5), byMember[bob])
	require.Equal(t, int64(5), byMember[carol])

	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Zero(t, f.bank.Balance(g.InsuranceVault))

	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupStatusClosed, stored.Status)
	require.Zero(t, stored.InsurancePool)

	_, err = f.svc.TerminateGroup(ctx, authority, g.ID)
	require.ErrorIs(t, err, domain.ErrGroupClosed)
}

func TestTerminateGroupRevertsOnTransferFailure(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}
	_, err := f.svc.Contribute(ctx, alice, g.ID, 100)
	require.NoError(t, err)

	calls := 0
	f.bank.BeforeTransferOut = func(string, string, int64) error {
		calls++
		if calls == 2 {
			return errors.New("custody timeout")
		}
		return nil
	}
	_, err = f.svc.TerminateGroup(ctx, authority, g.ID)
	require.Error(t, err)
	f.bank.BeforeTransferOut = nil

	// The issued refund was compensated and the group is active again.
	require.Equal(t, int64(95), f.bank.Balance(g.GroupVault))
	require.Equal(t, int64(20), f.bank.Balance(g.InsuranceVault))
	stored, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupStatusActive, stored.Status)
	require.Equal(t, int64(20), stored.InsurancePool)

	// Termination succeeds on retry.
	refunds, err := f.svc.TerminateGroup(ctx, authority, g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, refunds)
	require.Zero(t, f.bank.Balance(g.GroupVault))
	require.Zero(t, f.bank.Balance(g.InsuranceVault))
}

func TestGetGroupState(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	_, err := f.svc.Contribute(ctx, bob, g.ID, 100)
	require.NoError(t, err)

	snap, err := f.svc.GetGroupState(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, g.ID, snap.Group.ID)
	require.Equal(t, []string{alice, carol}, snap.Outstanding)
	require.Len(t, snap.Contributions, 1)
	require.Len(t, snap.Members, 3)

	_, err = f.svc.GetGroupState(ctx, "no-such-group")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t)
	ctx := context.Background()

	for _, m := range []string{alice, bob, carol} {
		_, err := f.svc.Contribute(ctx, m, g.ID, 100)
		require.NoError(t, err)
	}

	events := f.store.events(g.ID)
	require.Contains(t, events, "group_created")
	require.Contains(t, events, "contribution_received")
	require.Contains(t, events, "payout_disbursed")
}
