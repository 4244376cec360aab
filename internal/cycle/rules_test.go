package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

const (
	memberA = "0xAa00000000000000000000000000000000000001"
	memberB = "0xBb00000000000000000000000000000000000002"
	memberC = "0xCc00000000000000000000000000000000000003"
)

func activeGroup() *domain.ThriftGroup {
	return &domain.ThriftGroup{
		ID:                 "g1",
		Authority:          memberA,
		ModelType:          domain.ModelFixedRotation,
		InsuranceBps:       500,
		CycleOrder:         []string{memberA, memberB, memberC},
		ContributionAmount: 100,
		Status:             domain.GroupStatusActive,
		DebtPolicy:         domain.DebtPolicyCarryForward,
		GraceWindow:        24 * time.Hour,
		Paid:               map[string]bool{},
		Defaulted:          map[string]bool{},
		CycleStartedAt:     time.Now().UTC(),
	}
}

func TestValidateConfig(t *testing.T) {
	order := []string{memberA, memberB, memberC}

	require.NoError(t, ValidateConfig(domain.ModelFixedRotation, 500, order, 100))

	cases := []struct {
		name   string
		model  domain.ModelType
		bps    int
		order  []string
		amount int64
	}{
		{"auction unsupported", domain.ModelAuction, 500, order, 100},
		{"bps too high", domain.ModelFixedRotation, 10_001, order, 100},
		{"bps negative", domain.ModelFixedRotation, -1, order, 100},
		{"single member", domain.ModelFixedRotation, 500, []string{memberA}, 100},
		{"duplicate member", domain.ModelFixedRotation, 500, []string{memberA, memberA}, 100},
		{"empty identity", domain.ModelFixedRotation, 500, []string{memberA, ""}, 100},
		{"zero amount", domain.ModelFixedRotation, 500, order, 0},
		{"negative amount", domain.ModelFixedRotation, 500, order, -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.model, tc.bps, tc.order, tc.amount)
			require.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestCanContribute(t *testing.T) {
	g := activeGroup()

	require.NoError(t, CanContribute(g, memberB, 100, false))

	g.Paid[memberB] = true
	require.ErrorIs(t, CanContribute(g, memberB, 100, false), domain.ErrDuplicateContribution)

	require.ErrorIs(t, CanContribute(g, "0xDd00000000000000000000000000000000000004", 100, false), domain.ErrNotAMember)
	require.ErrorIs(t, CanContribute(g, memberC, 99, false), domain.ErrAmountMismatch)

	g.Status = domain.GroupStatusClosed
	require.ErrorIs(t, CanContribute(g, memberC, 100, false), domain.ErrGroupClosed)
}

func TestCanContribute_DebtPolicy(t *testing.T) {
	g := activeGroup()

	// Carry-forward keeps indebted members in the rotation.
	require.NoError(t, CanContribute(g, memberB, 100, true))

	g.DebtPolicy = domain.DebtPolicyExclude
	require.ErrorIs(t, CanContribute(g, memberB, 100, true), domain.ErrUnauthorized)
	require.NoError(t, CanContribute(g, memberB, 100, false))
}

func TestCanAdvance(t *testing.T) {
	now := time.Now().UTC()
	g := activeGroup()

	// Nobody paid: non-authority is rejected, authority too (window open,
	// nobody flagged).
	require.ErrorIs(t, CanAdvance(g, false, now), domain.ErrCycleIncomplete)
	require.ErrorIs(t, CanAdvance(g, true, now), domain.ErrCycleIncomplete)

	// Fully collected cycle advances for anyone.
	for _, m := range g.CycleOrder {
		g.Paid[m] = true
	}
	require.NoError(t, CanAdvance(g, false, now))
	require.NoError(t, CanAdvance(g, true, now))
}

func TestCanAdvance_GraceAndDefaults(t *testing.T) {
	now := time.Now().UTC()
	g := activeGroup()
	g.Paid[memberA] = true
	g.Paid[memberB] = true

	// Window still open, C neither paid nor flagged.
	require.ErrorIs(t, CanAdvance(g, true, now), domain.ErrCycleIncomplete)

	// Flagging the outstanding member lets the authority force.
	g.Defaulted[memberC] = true
	require.NoError(t, CanAdvance(g, true, now))
	require.ErrorIs(t, CanAdvance(g, false, now), domain.ErrCycleIncomplete)

	// Elapsed grace window lets the authority force without flags.
	g.Defaulted = map[string]bool{}
	g.CycleStartedAt = now.Add(-48 * time.Hour)
	require.NoError(t, CanAdvance(g, true, now))
}

func TestCanAdvance_ZeroGraceNeverElapses(t *testing.T) {
	now := time.Now().UTC()
	g := activeGroup()
	g.GraceWindow = 0
	g.CycleStartedAt = now.Add(-1000 * time.Hour)
	g.Paid[memberA] = true

	require.ErrorIs(t, CanAdvance(g, true, now), domain.ErrCycleIncomplete)
}

func TestCanMarkDefault(t *testing.T) {
	g := activeGroup()

	require.NoError(t, CanMarkDefault(g, memberC))

	g.Paid[memberC] = true
	require.Error(t, CanMarkDefault(g, memberC))

	g.Paid[memberC] = false
	g.Defaulted[memberC] = true
	require.Error(t, CanMarkDefault(g, memberC))

	require.ErrorIs(t, CanMarkDefault(g, "0xEe00000000000000000000000000000000000005"), domain.ErrNotAMember)

	g.Status = domain.GroupStatusSettling
	require.ErrorIs(t, CanMarkDefault(g, memberB), domain.ErrGroupClosed)
}

func TestNext(t *testing.T) {
	g := activeGroup()

	next, closed := Next(g)
	assert.Equal(t, 1, next)
	assert.False(t, closed)

	g.CurrentCycleIndex = 2
	next, closed = Next(g)
	assert.Equal(t, 0, next)
	assert.True(t, closed)
}
