package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Market lookup / configuration errors
var (
	// ErrMarketNotFound is returned when no market matches the given identifier.
	ErrMarketNotFound = errors.New("market not found")

	// ErrQuestionRequired is returned when a market is created without a question.
	ErrQuestionRequired = errors.New("market question must not be empty")

	// ErrResolverRequired is returned when a market is created without an
	// authorized resolver identity.
	ErrResolverRequired = errors.New("resolver identity must be set")

	// ErrFeeRateTooHigh is returned when the fee rate exceeds MaxFeeBps (10%).
	ErrFeeRateTooHigh = errors.New("fee rate exceeds 1000 basis points")

	// ErrInvalidDuration is returned when the trading window is not positive.
	ErrInvalidDuration = errors.New("market duration must be positive")

	// ErrSeedTooSmall is returned when the seed collateral is below the
	// configured minimum.
	ErrSeedTooSmall = errors.New("seed collateral is below the minimum")
)

// Amount / arithmetic errors
var (
	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrFractionalAmount is returned when an amount is not a whole number of
	// micro-units.  Ledger arithmetic is integer-only with floor rounding.
	ErrFractionalAmount = errors.New("amount must be a whole number of micro-units")

	// ErrInvalidSide is returned when the side is not YES or NO.
	ErrInvalidSide = errors.New("invalid side: must be YES or NO")
)

// Trading errors
var (
	// ErrTradingEnded is returned when a trade arrives at or after the deadline.
	ErrTradingEnded = errors.New("trading window has ended")

	// ErrMarketResolved is returned when a trade is attempted on a resolved market.
	ErrMarketResolved = errors.New("market is already resolved")

	// ErrNoLiquidity is returned when a swap is attempted against an empty
	// reserve (only possible when seed collateral was zero).
	ErrNoLiquidity = errors.New("pool has no liquidity")

	// ErrInsufficientOutput is returned when the swap leg would produce zero
	// output units after floor rounding.
	ErrInsufficientOutput = errors.New("swap output rounds to zero")

	// ErrInsufficientPosition is returned when a participant does not hold
	// enough outcome tokens for the requested operation.
	ErrInsufficientPosition = errors.New("insufficient position balance")

	// ErrInsufficientVault is returned when a payout would underflow the vault.
	// This is a fatal precondition violation, never silently clamped.
	ErrInsufficientVault = errors.New("vault balance too low for payout")

	// ErrInsufficientCollateral is returned when a participant's collateral
	// account cannot cover the attached amount.
	ErrInsufficientCollateral = errors.New("insufficient collateral balance")

	// ErrAccountNotFound is returned when no collateral account exists for the
	// requested identity.
	ErrAccountNotFound = errors.New("collateral account not found")
)

// Resolution / redemption errors
var (
	// ErrUnauthorizedResolver is returned when resolve is called by any
	// identity other than the market's authorized resolver.
	ErrUnauthorizedResolver = errors.New("caller is not the authorized resolver")

	// ErrResolveTooEarly is returned when resolve is called before the deadline.
	ErrResolveTooEarly = errors.New("cannot resolve before the trading deadline")

	// ErrAlreadyResolved is returned on a second resolve attempt.
	ErrAlreadyResolved = errors.New("market outcome is already resolved")

	// ErrNotResolved is returned when redemption is attempted pre-resolution.
	ErrNotResolved = errors.New("market is not resolved yet")

	// ErrNoWinningPosition is returned when the caller holds no winning-side
	// balance.  This is the expected, non-exceptional outcome for a loser.
	ErrNoWinningPosition = errors.New("no winning position to redeem")

	// ErrNothingToWithdraw is returned when the fee pool is empty.
	ErrNothingToWithdraw = errors.New("no accrued fees to withdraw")

	// ErrOutcomeNotSet is returned by a manual decider before the operator has
	// posted an outcome.
	ErrOutcomeNotSet = errors.New("outcome has not been decided yet")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated caller lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrMarketNotFound,
	ErrAccountNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.  Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// double resolution or trading on a settled market).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrAlreadyResolved,
		ErrMarketResolved,
		ErrTradingEnded,
		ErrResolveTooEarly,
		ErrNotResolved,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for errors caused by malformed or out-of-range
// caller input (HTTP 400 territory).
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrQuestionRequired,
		ErrResolverRequired,
		ErrFeeRateTooHigh,
		ErrInvalidDuration,
		ErrSeedTooSmall,
		ErrNonPositiveAmount,
		ErrFractionalAmount,
		ErrInvalidSide,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenInvalid,
		ErrUnauthorizedResolver,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
