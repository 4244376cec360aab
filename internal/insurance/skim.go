// Package insurance implements the integer arithmetic behind the
// insurance pool: the per-contribution skim and default coverage. Funds
// are real currency, so everything here is exact int64 math; there is no
// floating point anywhere in the package.
package insurance

import (
	"fmt"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// ComputeSkim splits a gross contribution into the net amount forwarded to
// the group vault and the basis-point skim accrued to the insurance pool.
// skim = floor(amount * bps / 10000). net + skim == amount always holds.
func ComputeSkim(amount int64, bps int) (net, skim int64, err error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("insurance: amount must be positive, got %d", amount)
	}
	if bps < 0 || bps > domain.MaxInsuranceBps {
		return 0, 0, fmt.Errorf("insurance: bps out of range [0,%d], got %d", domain.MaxInsuranceBps, bps)
	}

	// amount <= MaxInt64 and bps <= 10000, so widen through big-ish
	// intermediate math the way the custody programs do: 128-bit via
	// splitting is unnecessary because amount*bps fits in int64 only for
	// small amounts; do the division first when it would overflow.
	const maxBeforeMul = int64(1) << 49 // 10000 * 2^49 < 2^63
	if amount < maxBeforeMul {
		skim = amount * int64(bps) / domain.MaxInsuranceBps
	} else {
		// Split amount = q*10000 + r to stay exact.
		q := amount / domain.MaxInsuranceBps
		r := amount % domain.MaxInsuranceBps
		skim = q*int64(bps) + r*int64(bps)/domain.MaxInsuranceBps
	}
	return amount - skim, skim, nil
}

// Coverage returns how much of a deficit the insurance pool can absorb.
// When the pool is short, it covers what it can and reports the remainder,
// which stays recorded as member debt.
func Coverage(pool, deficit int64) (covered, remaining int64) {
	if deficit <= 0 {
		return 0, 0
	}
	if pool >= deficit {
		return deficit, 0
	}
	if pool < 0 {
		pool = 0
	}
	return pool, deficit - pool
}
