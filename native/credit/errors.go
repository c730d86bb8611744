package credit

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	nativecommon "eurocredit/native/common"
)

var (
	errNilState         = errors.New("credit engine: state not configured")
	errNilCollaborators = errors.New("credit engine: collaborator not configured")
	errInvalidParams    = errors.New("credit engine: invalid parameters")

	ErrInvalidAmount          = errors.New("credit engine: amount must be positive")
	ErrInvalidCollateral      = errors.New("credit engine: collateral not supported")
	ErrInsufficientBalance    = errors.New("credit engine: insufficient balance")
	ErrRedeemAmountTooSmall   = errors.New("credit engine: amount too small to release collateral")
	ErrInsufficientCollateral = errors.New("credit engine: requested debt exceeds issuable credit")
	ErrHealthFactorTooLow     = errors.New("credit engine: health factor below 1")
	ErrNotLiquidatable        = errors.New("credit engine: borrower not eligible for liquidation")
	ErrTransferFailed         = errors.New("credit engine: transfer failed")
	ErrOracleFailure          = errors.New("credit engine: oracle failure")
	ErrReentrantCall          = nativecommon.ErrReentrantCall
)

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// AmountError reports a zero amount or a native payment that does not match
// the deposited amount. Want is nil when any positive value is acceptable.
type AmountError struct {
	Field string
	Got   *uint256.Int
	Want  *uint256.Int
}

func (e *AmountError) Error() string {
	if e.Want == nil {
		return fmt.Sprintf("%s: %s=%s", ErrInvalidAmount, e.Field, formatAmount(e.Got))
	}
	return fmt.Sprintf("%s: %s=%s want %s", ErrInvalidAmount, e.Field, formatAmount(e.Got), formatAmount(e.Want))
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// CollateralError reports an identity outside the accepted set.
type CollateralError struct {
	Address common.Address
}

func (e *CollateralError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidCollateral, e.Address.Hex())
}

func (e *CollateralError) Unwrap() error { return ErrInvalidCollateral }

// Balance kinds carried by BalanceError.
const (
	BalanceCredit     = "credit"
	BalanceDebt       = "debt"
	BalanceCollateral = "collateral"
)

// BalanceError reports a ledger or token balance smaller than the amount to
// deduct.
type BalanceError struct {
	Kind string
	Have *uint256.Int
	Need *uint256.Int
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: %s have %s need %s", ErrInsufficientBalance, e.Kind, formatAmount(e.Have), formatAmount(e.Need))
}

func (e *BalanceError) Unwrap() error { return ErrInsufficientBalance }

// CeilingError reports a mint whose resulting debt exceeds the issuable
// credit of the position.
type CeilingError struct {
	Requested *uint256.Int
	Issuable  *uint256.Int
}

func (e *CeilingError) Error() string {
	return fmt.Sprintf("%s: requested %s issuable %s", ErrInsufficientCollateral, formatAmount(e.Requested), formatAmount(e.Issuable))
}

func (e *CeilingError) Unwrap() error { return ErrInsufficientCollateral }

// HealthError carries the offending health factor. Err is either
// ErrHealthFactorTooLow or ErrNotLiquidatable.
type HealthError struct {
	Err          error
	Account      common.Address
	HealthFactor *uint256.Int
}

func (e *HealthError) Error() string {
	return fmt.Sprintf("%s: account %s health factor %s", e.Err, e.Account.Hex(), formatAmount(e.HealthFactor))
}

func (e *HealthError) Unwrap() error { return e.Err }

// errorReason maps err onto a short label for metrics.
func errorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidCollateral):
		return "invalid_collateral"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrRedeemAmountTooSmall):
		return "amount_too_small"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrHealthFactorTooLow):
		return "health_factor"
	case errors.Is(err, ErrNotLiquidatable):
		return "not_liquidatable"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrOracleFailure):
		return "oracle"
	default:
		return "internal"
	}
}
