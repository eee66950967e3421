package lending

import "math/big"

var (
	// scale is the fixed-point unit shared by every ratio, rate and
	// exchange-rate calculation.
	scale = mustBigInt("1000000000000000000") // 1e18

	// defaultInterestRate is the 2% borrow rate assigned to new pools and
	// restored when a pool holds no liquidity at all.
	defaultInterestRate = mustBigInt("20000000000000000")

	// collateralExchangeRate is the fixed 1:1 collateral-to-asset price
	// placeholder. No oracle exists; collateral is valued at par.
	collateralExchangeRate = mustBigInt("1000000000000000000")

	lowUtilisation  = mustBigInt("300000000000000000") // 30%
	highUtilisation = mustBigInt("800000000000000000") // 80%

	// Multiplicative rate adjustments per utilisation bucket, pre-added to
	// the scaling unit. The mid bucket applies the small increase and both
	// extremes the large adjustment; the asymmetry is deliberate ledger
	// behaviour and must not be reshaped.
	rateFactorLow  = mustBigInt("800000000000000000")  // 1 - 20%
	rateFactorMid  = mustBigInt("1100000000000000000") // 1 + 10%
	rateFactorHigh = mustBigInt("1200000000000000000") // 1 + 20%
)

const (
	secondsPerDay = 86_400
	daysPerYear   = 365
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// mulDiv computes a*b/den, returning zero when the denominator is zero so
// degenerate exchange rates cannot panic the engine.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// collateralValue prices collateral in units of the borrowed asset using the
// fixed 1:1 exchange-rate placeholder.
func collateralValue(amount *big.Int) *big.Int {
	return mulDiv(amount, collateralExchangeRate, scale)
}

// collateralSufficient reports whether the posted collateral covers the debt
// at the required scaled ratio.
func collateralSufficient(collateral, debt, ratio *big.Int) bool {
	lhs := new(big.Int).Mul(collateralValue(collateral), scale)
	rhs := new(big.Int).Mul(cloneBigInt(debt), cloneBigInt(ratio))
	return lhs.Cmp(rhs) >= 0
}

// liquidationEligible reports whether the loan is undercollateralized, i.e.
// the posted collateral no longer exceeds the debt at the required ratio.
func liquidationEligible(collateral, debt, ratio *big.Int) bool {
	lhs := new(big.Int).Mul(collateralValue(collateral), scale)
	rhs := new(big.Int).Mul(cloneBigInt(debt), cloneBigInt(ratio))
	return lhs.Cmp(rhs) <= 0
}
