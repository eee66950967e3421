package lending

import (
	"math/big"
	"testing"
)

func TestNextInterestRateBuckets(t *testing.T) {
	current := mustBigInt("20000000000000000") // 2%

	cases := []struct {
		name     string
		borrowed *big.Int
		held     *big.Int
		want     *big.Int
	}{
		{
			name:     "empty pool resets to default",
			borrowed: big.NewInt(0),
			held:     big.NewInt(0),
			want:     defaultInterestRate,
		},
		{
			name:     "idle liquidity decays the rate",
			borrowed: unit(10),
			held:     unit(90), // 10% utilisation
			want:     mustBigInt("16000000000000000"),
		},
		{
			name:     "moderate utilisation grows the rate slowly",
			borrowed: unit(50),
			held:     unit(50), // 50% utilisation
			want:     mustBigInt("22000000000000000"),
		},
		{
			name:     "hot pool grows the rate fast",
			borrowed: unit(90),
			held:     unit(10), // 90% utilisation
			want:     mustBigInt("24000000000000000"),
		},
		{
			name:     "low boundary stays in the middle band",
			borrowed: unit(30),
			held:     unit(70), // exactly 30%
			want:     mustBigInt("22000000000000000"),
		},
		{
			name:     "high boundary stays in the middle band",
			borrowed: unit(80),
			held:     unit(20), // exactly 80%
			want:     mustBigInt("22000000000000000"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextInterestRate(current, tc.borrowed, tc.held)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("unexpected rate: got %s want %s", got, tc.want)
			}
		})
	}
}

func TestNextInterestRateDecaysWithoutFloor(t *testing.T) {
	rate := cloneBigInt(defaultInterestRate)
	for i := 0; i < 200; i++ {
		rate = nextInterestRate(rate, big.NewInt(0), unit(100))
	}
	if rate.Sign() != 0 {
		t.Fatalf("expected sustained decay to reach zero, got %s", rate)
	}
	// Once at zero the multiplicative walk cannot recover.
	if got := nextInterestRate(rate, unit(90), unit(10)); got.Sign() != 0 {
		t.Fatalf("expected zero rate to stay zero, got %s", got)
	}
}

func TestUpdatePoolInterestRateOncePerTimestamp(t *testing.T) {
	f := newFixture(t)
	asset, collateralAsset, _, _ := seedMarket(t, f)
	if _, err := f.engine.Borrow(borrower, asset, unit(50), collateralAsset, unit(90)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	f.advance(3600)
	first, err := f.engine.UpdatePoolInterestRate(asset)
	if err != nil {
		t.Fatalf("update rate: %v", err)
	}
	// 50 borrowed against 50 held sits in the middle band: 2% * 1.1.
	if first.Cmp(mustBigInt("22000000000000000")) != 0 {
		t.Fatalf("unexpected rate: %s", first)
	}

	// Same timestamp: no further adjustment.
	second, err := f.engine.UpdatePoolInterestRate(asset)
	if err != nil {
		t.Fatalf("update rate again: %v", err)
	}
	if second.Cmp(first) != 0 {
		t.Fatalf("rate moved within one timestamp: %s -> %s", first, second)
	}

	f.advance(3600)
	third, err := f.engine.UpdatePoolInterestRate(asset)
	if err != nil {
		t.Fatalf("update rate later: %v", err)
	}
	if third.Cmp(mustBigInt("24200000000000000")) != 0 {
		t.Fatalf("unexpected compounded rate: %s", third)
	}
}

func TestUpdateLoanInterestAfterOneYear(t *testing.T) {
	f := newFixture(t)
	asset, collateralAsset, _, _ := seedMarket(t, f)
	id, err := f.engine.Borrow(borrower, asset, unit(100), collateralAsset, unit(180))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	f.advance(365 * secondsPerDay)
	interest, err := f.engine.UpdateLoanInterest(id)
	if err != nil {
		t.Fatalf("update loan interest: %v", err)
	}
	// 100 principal at the 2% origination rate over a full year.
	if interest.Cmp(unit(2)) != 0 {
		t.Fatalf("unexpected interest: got %s want %s", interest, unit(2))
	}
	loan := f.state.loans[id]
	if loan.InterestDue.Cmp(unit(2)) != 0 {
		t.Fatalf("unexpected interest due: %s", loan.InterestDue)
	}
	if loan.LastAccrual != f.clock {
		t.Fatalf("unexpected last accrual: %d", loan.LastAccrual)
	}
}

func TestUpdateLoanInterestIgnoresFractionalDays(t *testing.T) {
	f := newFixture(t)
	asset, collateralAsset, _, _ := seedMarket(t, f)
	id, err := f.engine.Borrow(borrower, asset, unit(100), collateralAsset, unit(180))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	origin := f.clock

	f.advance(secondsPerDay / 2)
	interest, err := f.engine.UpdateLoanInterest(id)
	if err != nil {
		t.Fatalf("update loan interest: %v", err)
	}
	if interest.Sign() != 0 {
		t.Fatalf("expected no accrual inside a day, got %s", interest)
	}
	// The accrual anchor is untouched, so the half day is not lost: a
	// later update counts whole days from origination.
	if got := f.state.loans[id].LastAccrual; got != origin {
		t.Fatalf("accrual anchor moved: %d", got)
	}

	f.advance(secondsPerDay / 2)
	interest, err = f.engine.UpdateLoanInterest(id)
	if err != nil {
		t.Fatalf("update loan interest: %v", err)
	}
	want := new(big.Int).Quo(unit(2), big.NewInt(365))
	if interest.Cmp(want) != 0 {
		t.Fatalf("unexpected one-day interest: got %s want %s", interest, want)
	}
}

func TestUpdateLoanInterestReplacesPriorAccrual(t *testing.T) {
	f := newFixture(t)
	asset, collateralAsset, _, _ := seedMarket(t, f)
	id, err := f.engine.Borrow(borrower, asset, unit(100), collateralAsset, unit(180))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	f.advance(365 * secondsPerDay)
	if _, err := f.engine.UpdateLoanInterest(id); err != nil {
		t.Fatalf("first accrual: %v", err)
	}
	if got := f.state.loans[id].InterestDue; got.Cmp(unit(2)) != 0 {
		t.Fatalf("unexpected interest due: %s", got)
	}

	// The next accrual recomputes from its own window only; the unpaid 2
	// units from the previous year are overwritten, not accumulated.
	f.advance(secondsPerDay)
	if _, err := f.engine.UpdateLoanInterest(id); err != nil {
		t.Fatalf("second accrual: %v", err)
	}
	want := new(big.Int).Quo(unit(2), big.NewInt(365))
	if got := f.state.loans[id].InterestDue; got.Cmp(want) != 0 {
		t.Fatalf("unexpected interest due: got %s want %s", got, want)
	}
}

func TestCollateralSufficiencyBoundaries(t *testing.T) {
	ratio := mustBigInt("1800000000000000000")

	if !collateralSufficient(unit(18), unit(10), ratio) {
		t.Fatalf("exact coverage should be sufficient")
	}
	if collateralSufficient(new(big.Int).Sub(unit(18), big.NewInt(1)), unit(10), ratio) {
		t.Fatalf("one wei short should be insufficient")
	}
	if !liquidationEligible(unit(18), unit(10), ratio) {
		t.Fatalf("exact coverage should be liquidation eligible")
	}
	if liquidationEligible(new(big.Int).Add(unit(18), big.NewInt(1)), unit(10), ratio) {
		t.Fatalf("surplus coverage should not be liquidation eligible")
	}
	if collateralSufficient(new(big.Int).Neg(unit(1)), unit(10), ratio) {
		t.Fatalf("negative remainder can never be sufficient")
	}
}

func TestMulDivZeroDenominator(t *testing.T) {
	if got := mulDiv(unit(5), scale, big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
	if got := mulDiv(nil, scale, scale); got.Sign() != 0 {
		t.Fatalf("expected zero for nil operand, got %s", got)
	}
}
