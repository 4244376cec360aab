package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

const (
	authority = "0xAa00000000000000000000000000000000000001"
	member    = "0xBb00000000000000000000000000000000000002"
	stranger  = "0xCc00000000000000000000000000000000000003"
	member2   = "0xDd00000000000000000000000000000000000004"
)

func testGroup() *domain.ThriftGroup {
	return &domain.ThriftGroup{
		ID:         "g1",
		Authority:  authority,
		CycleOrder: []string{member, member2},
	}
}

func TestRequire_Authority(t *testing.T) {
	g := testGroup()

	require.NoError(t, Require(g, authority, CapAuthority))
	require.ErrorIs(t, Require(g, member, CapAuthority), domain.ErrUnauthorized)
	require.ErrorIs(t, Require(g, "", CapAuthority), domain.ErrUnauthorized)
}

func TestRequire_Member(t *testing.T) {
	g := testGroup()

	require.NoError(t, Require(g, member, CapMember))
	// The authority is not implicitly a member.
	require.ErrorIs(t, Require(g, authority, CapMember), domain.ErrNotAMember)
	require.ErrorIs(t, Require(g, stranger, CapMember), domain.ErrNotAMember)
}

func TestIsAuthority(t *testing.T) {
	g := testGroup()
	assert.True(t, IsAuthority(g, authority))
	assert.False(t, IsAuthority(g, member))
	assert.False(t, IsAuthority(g, ""))
}

func TestAddressResolver(t *testing.T) {
	ctx := context.Background()
	r := AddressResolver{}

	got, err := r.Resolve(ctx, "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae")
	require.NoError(t, err)
	assert.Equal(t, "0xDe0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", got)

	// Whitespace is tolerated, garbage is not.
	_, err = r.Resolve(ctx, "  0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae ")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "not-an-address")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAddressResolver_Normalize(t *testing.T) {
	ctx := context.Background()
	r := AddressResolver{}

	order, err := r.Normalize(ctx, []string{
		"0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	require.NoError(t, err)
	assert.Len(t, order, 2)
	assert.Equal(t, "0xDe0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", order[0])

	_, err = r.Normalize(ctx, []string{"0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", "bogus"})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
