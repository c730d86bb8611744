// Package valuation implements the fixed-point arithmetic used to price
// collateral and debt. Every function is pure and operates on unsigned 256-bit
// integers; overflow is reported as an error instead of wrapping.
package valuation

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow           = errors.New("valuation: arithmetic overflow")
	ErrDivisionByZero     = errors.New("valuation: division by zero")
	ErrDecimalsOutOfRange = errors.New("valuation: decimals out of range")
)

const (
	// WadDecimals is the precision of the internal fixed-point unit.
	WadDecimals = 18
	// Percent is the denominator applied to the collateral threshold.
	Percent = 100

	maxPow10 = 77
)

var (
	// WAD is 1e18, the fixed-point unit.
	WAD = uint256.NewInt(1_000_000_000_000_000_000)
	// MinHealthFactor is the health factor (1.0) below which positions become liquidatable.
	MinHealthFactor = uint256.NewInt(1_000_000_000_000_000_000)
	// MaxHealthFactor is reported for positions without debt.
	MaxHealthFactor = new(uint256.Int).SetAllOne()

	percent = uint256.NewInt(Percent)
	one     = uint256.NewInt(1)
)

// Pow10 returns 10^exp.
func Pow10(exp uint) (*uint256.Int, error) {
	if exp > maxPow10 {
		return nil, ErrDecimalsOutOfRange
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp))), nil
}

// ScaleToWad converts an amount expressed with the asset's native decimals
// into the 18-decimal unit. Assets with more than 18 decimals are truncated.
func ScaleToWad(amount *uint256.Int, decimals uint8) (*uint256.Int, error) {
	switch {
	case decimals == WadDecimals:
		return new(uint256.Int).Set(amount), nil
	case decimals < WadDecimals:
		factor, err := Pow10(uint(WadDecimals - decimals))
		if err != nil {
			return nil, err
		}
		return mul(amount, factor)
	default:
		factor, err := Pow10(uint(decimals - WadDecimals))
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Div(amount, factor), nil
	}
}

// ScaleFromWad converts an 18-decimal amount back into the asset's native
// decimals, truncating any precision the asset cannot represent.
func ScaleFromWad(amountWad *uint256.Int, decimals uint8) (*uint256.Int, error) {
	switch {
	case decimals == WadDecimals:
		return new(uint256.Int).Set(amountWad), nil
	case decimals < WadDecimals:
		factor, err := Pow10(uint(WadDecimals - decimals))
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Div(amountWad, factor), nil
	default:
		factor, err := Pow10(uint(decimals - WadDecimals))
		if err != nil {
			return nil, err
		}
		return mul(amountWad, factor)
	}
}

// PriceInPeg expresses a USD collateral price in units of the peg currency:
// collateralPrice × 1e18 / pegPrice.
func PriceInPeg(collateralPriceUSD, pegPriceUSD *uint256.Int) (*uint256.Int, error) {
	return mulDiv(collateralPriceUSD, WAD, pegPriceUSD)
}

// CollateralValueInPeg values a collateral amount in the peg currency.
func CollateralValueInPeg(amount, pegPrice, collateralPrice *uint256.Int, decimals uint8) (*uint256.Int, error) {
	price, err := PriceInPeg(collateralPrice, pegPrice)
	if err != nil {
		return nil, err
	}
	amountWad, err := ScaleToWad(amount, decimals)
	if err != nil {
		return nil, err
	}
	return mulDiv(amountWad, price, WAD)
}

// CreditIssuableFromCollateral returns the largest credit amount that keeps
// a position backed by amount exactly at the threshold.
func CreditIssuableFromCollateral(amount, pegPrice, collateralPrice *uint256.Int, decimals uint8, threshold uint64) (*uint256.Int, error) {
	if threshold == 0 {
		return nil, ErrDivisionByZero
	}
	value, err := CollateralValueInPeg(amount, pegPrice, collateralPrice, decimals)
	if err != nil {
		return nil, err
	}
	return mulDiv(value, percent, uint256.NewInt(threshold))
}

// HealthFactor computes collateralValue × 100 × 1e18 / (debt × threshold).
// Accounts without debt report MaxHealthFactor.
func HealthFactor(collateralValuePeg, totalDebt *uint256.Int, threshold uint64) (*uint256.Int, error) {
	if totalDebt == nil || totalDebt.IsZero() {
		return new(uint256.Int).Set(MaxHealthFactor), nil
	}
	if threshold == 0 {
		return nil, ErrDivisionByZero
	}
	numerator, err := mul(percent, WAD)
	if err != nil {
		return nil, err
	}
	denominator, err := mul(totalDebt, uint256.NewInt(threshold))
	if err != nil {
		return nil, err
	}
	return mulDiv(collateralValuePeg, numerator, denominator)
}

// CollateralOutForRedeem returns the collateral released when amountDsc of
// debt is retired at the threshold exchange rate. Intermediate divisions round
// up; the final conversion to native decimals truncates, so the result never
// exceeds the collateral that originally backed the debt.
func CollateralOutForRedeem(amountDsc, pegPrice, collateralPrice *uint256.Int, decimals uint8, threshold uint64) (*uint256.Int, error) {
	price, err := PriceInPeg(collateralPrice, pegPrice)
	if err != nil {
		return nil, err
	}
	valueWad, err := mulDivUp(amountDsc, uint256.NewInt(threshold), percent)
	if err != nil {
		return nil, err
	}
	collateralWad, err := mulDivUp(valueWad, WAD, price)
	if err != nil {
		return nil, err
	}
	return ScaleFromWad(collateralWad, decimals)
}

// LiquidationCollateralOut returns the collateral owed to a liquidator that
// repays amountDsc: the spot-rate equivalent (rounded up) plus
// bonusRate/bonusPrecision of it.
func LiquidationCollateralOut(amountDsc, pegPrice, collateralPrice *uint256.Int, decimals uint8, bonusRate, bonusPrecision uint64) (*uint256.Int, error) {
	if bonusPrecision == 0 {
		return nil, ErrDivisionByZero
	}
	price, err := PriceInPeg(collateralPrice, pegPrice)
	if err != nil {
		return nil, err
	}
	baseWad, err := mulDivUp(amountDsc, WAD, price)
	if err != nil {
		return nil, err
	}
	bonusWad, err := mulDiv(baseWad, uint256.NewInt(bonusRate), uint256.NewInt(bonusPrecision))
	if err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(baseWad, bonusWad)
	if overflow {
		return nil, ErrOverflow
	}
	return ScaleFromWad(total, decimals)
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// mulDiv computes floor(x × y / d) with a 512-bit intermediate product.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// mulDivUp computes ceil(x × y / d).
func mulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	out, err := mulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return out, nil
	}
	rounded, overflow := new(uint256.Int).AddOverflow(out, one)
	if overflow {
		return nil, ErrOverflow
	}
	return rounded, nil
}
