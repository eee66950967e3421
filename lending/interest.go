package lending

import "math/big"

// nextInterestRate derives a pool's new yearly borrow rate from utilisation.
// The rate random-walks multiplicatively: low utilisation decays it by 20%,
// high utilisation grows it by 20%, and the middle band grows it by 10%. When
// the pool holds nothing at all the rate resets to the default.
func nextInterestRate(current, totalBorrowed, heldBalance *big.Int) *big.Int {
	denominator := new(big.Int).Add(cloneBigInt(heldBalance), cloneBigInt(totalBorrowed))
	if denominator.Sign() == 0 {
		return cloneBigInt(defaultInterestRate)
	}

	utilisation := mulDiv(cloneBigInt(totalBorrowed), scale, denominator)

	factor := rateFactorMid
	switch {
	case utilisation.Cmp(lowUtilisation) < 0:
		factor = rateFactorLow
	case utilisation.Cmp(highUtilisation) > 0:
		factor = rateFactorHigh
	}
	return mulDiv(cloneBigInt(current), factor, scale)
}

// accrueLoanInterest recomputes the loan's interest from whole elapsed days
// since the last accrual. The computed value overwrites InterestDue rather
// than adding to it; interest accrued in a prior batch that was never repaid
// is discarded by the recomputation. The loan is untouched and the returned
// flag false when less than one whole day has elapsed, which defers the
// fractional remainder to a later accrual.
func accrueLoanInterest(loan *Loan, now int64) (*big.Int, bool) {
	if loan == nil {
		return big.NewInt(0), false
	}
	elapsed := now - loan.LastAccrual
	if elapsed < secondsPerDay {
		return big.NewInt(0), false
	}
	elapsedDays := big.NewInt(elapsed / secondsPerDay)

	interest := new(big.Int).Mul(cloneBigInt(loan.Principal), cloneBigInt(loan.ScaledBorrowRate))
	interest.Mul(interest, elapsedDays)
	interest.Quo(interest, new(big.Int).Mul(scale, big.NewInt(daysPerYear)))

	loan.InterestDue = interest
	loan.LastAccrual = now
	return cloneBigInt(interest), true
}
