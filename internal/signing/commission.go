package signing

import "math"

// CommissionPolicy is the expected platform fee and the accepted deviation,
// both in percent of the trade notional.
type CommissionPolicy struct {
	ExpectedPct  float64
	TolerancePct float64
}

// VerifyCommission reports whether a proposed commission amount is acceptable
// for a trade of the given notional. The expected fee is
// notional * ExpectedPct / 100; the proposal passes when its relative
// deviation from the expected fee is at most TolerancePct / 100. When the
// expected fee is zero only a zero proposal passes.
func VerifyCommission(notionalUSDC, proposedUSDC float64, policy CommissionPolicy) bool {
	expected := notionalUSDC * policy.ExpectedPct / 100
	if expected == 0 {
		return proposedUSDC == 0
	}
	deviation := math.Abs(proposedUSDC-expected) / expected
	return deviation <= policy.TolerancePct/100
}
