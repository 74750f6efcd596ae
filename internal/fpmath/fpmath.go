// Package fpmath implements the integer-unit arithmetic underneath the market
// engine: basis-point fee math and constant-product swap output, both with
// floor (truncating) division.  Amounts are shopspring decimals constrained
// to whole micro-units; the backing big-integer representation is exact, so
// arithmetic can never overflow or silently truncate — every failure mode is
// an explicit guard.
//
// Rounding direction is load-bearing: floor division keeps the conservation
// invariant (vault + fees == held collateral) exact, and swap rounding always
// favours the pool, so a swap can never pay out more than the curve allows.
// Do not change it.
package fpmath

import (
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

// CheckAmount validates that an amount is a positive whole number of
// micro-units.  All mutating engine operations run this guard before any
// other arithmetic.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsInteger() {
		return domain.ErrFractionalAmount
	}
	if !amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	return nil
}

// Fee splits a gross amount into (fee, net) at the given basis-point rate:
//
//	fee = floor(amount * bps / 10000)
//	net = amount - fee
//
// The amount must pass CheckAmount and bps must be within 0–MaxFeeBps.
func Fee(amount decimal.Decimal, bps int64) (fee, net decimal.Decimal, err error) {
	if err = CheckAmount(amount); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if bps < 0 || bps > domain.MaxFeeBps {
		return decimal.Zero, decimal.Zero, domain.ErrFeeRateTooHigh
	}
	fee = MulDivFloor(amount, decimal.NewFromInt(bps), decimal.NewFromInt(domain.FeeDenominator))
	return fee, amount.Sub(fee), nil
}

// MulDivFloor computes floor(a*b/div) for non-negative integer operands.
// The intermediate product is exact (big-int backed), so no precision is
// lost before the single floor division.
func MulDivFloor(a, b, div decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(div, 0)
	return q
}

// SwapOutput runs the constant-product step: swapping `in` units into the
// pool on the input side with reserves (rIn, rOut):
//
//	k       = rIn * rOut
//	newRIn  = rIn + in
//	newROut = floor(k / newRIn)
//	out     = rOut - newROut
//
// The product newRIn*newROut stays within one floor-rounding remainder of k
// (newRIn*newROut > k - newRIn), so the invariant "k never decreases beyond
// rounding" holds by construction.
//
// Fails with ErrNoLiquidity when either reserve is zero before the swap, and
// with ErrInsufficientOutput when the output floors to zero (a degenerate
// pool state; unreachable for whole-unit inputs against live reserves, kept
// as a fail-closed guard).
func SwapOutput(rIn, rOut, in decimal.Decimal) (out, newRIn, newROut decimal.Decimal, err error) {
	if err = CheckAmount(in); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	if !rIn.IsPositive() || !rOut.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, domain.ErrNoLiquidity
	}

	k := rIn.Mul(rOut)
	newRIn = rIn.Add(in)
	newROut = MulDivFloor(k, decimal.NewFromInt(1), newRIn)
	out = rOut.Sub(newROut)

	if out.IsZero() {
		return decimal.Zero, decimal.Zero, decimal.Zero, domain.ErrInsufficientOutput
	}
	return out, newRIn, newROut, nil
}
