package credit

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"eurocredit/core/events"
	"eurocredit/native/valuation"
)

// LiquidationResult describes an applied liquidation.
type LiquidationResult struct {
	DebtRepaid       *uint256.Int
	CollateralSeized *uint256.Int
	HealthBefore     *uint256.Int
	HealthAfter      *uint256.Int
}

// Liquidate repays debtToCover of borrower's debt out of the liquidator's
// credit balance and transfers the equivalent collateral plus the liquidation
// bonus to the liquidator. The borrower must be below the minimum health
// factor beforehand and at or above it afterwards.
func (e *Engine) Liquidate(ctx context.Context, liquidator, borrower common.Address, debtToCover *uint256.Int, collateral common.Address) (LiquidationResult, error) {
	attrs := []attribute.KeyValue{
		attribute.String("liquidator", liquidator.Hex()),
		attribute.String("borrower", borrower.Hex()),
		attribute.String("collateral", collateral.Hex()),
	}
	var result LiquidationResult
	err := e.mutate(ctx, "liquidate", attrs, func(ctx context.Context) error {
		if err := requirePositive("debt_to_cover", debtToCover); err != nil {
			return err
		}
		kind, err := e.resolveCollateral(collateral)
		if err != nil {
			return err
		}

		q := e.newQuotes(ctx)
		record, err := e.loadCollateral(borrower)
		if err != nil {
			return err
		}
		debt, err := e.loadDebt(borrower)
		if err != nil {
			return err
		}
		before, err := q.healthFactor(record, debt)
		if err != nil {
			return err
		}
		if !before.Lt(valuation.MinHealthFactor) {
			e.logger.Info("liquidation rejected", "borrower", borrower.Hex(), "healthFactor", before.Dec())
			return &HealthError{Err: ErrNotLiquidatable, Account: borrower, HealthFactor: before}
		}

		peg, err := q.pegPrice()
		if err != nil {
			return err
		}
		price, err := q.collateralPrice(kind)
		if err != nil {
			return err
		}
		seized, err := valuation.LiquidationCollateralOut(debtToCover, peg, price, e.decimals(kind),
			e.params.LiquidationBonus, e.params.LiquidationPrecision)
		if err != nil {
			return err
		}
		if seized.IsZero() {
			return ErrRedeemAmountTooSmall
		}
		if err := e.requireCreditBalance(liquidator, debtToCover); err != nil {
			return err
		}

		remaining, err := e.decreaseDebt(borrower, debtToCover)
		if err != nil {
			return err
		}
		if err := record.Sub(kind, seized); err != nil {
			return err
		}
		if err := e.storeCollateral(borrower, record); err != nil {
			return err
		}
		after, err := q.healthFactor(record, remaining)
		if err != nil {
			return err
		}
		if after.Lt(valuation.MinHealthFactor) || after.Lt(before) {
			e.logger.Info("liquidation rejected", "borrower", borrower.Hex(), "healthFactor", after.Dec())
			return &HealthError{Err: ErrHealthFactorTooLow, Account: borrower, HealthFactor: after}
		}

		if err := e.burnFrom(liquidator, debtToCover); err != nil {
			return err
		}
		if err := e.sendCollateral(kind, liquidator, seized); err != nil {
			return err
		}

		result = LiquidationResult{
			DebtRepaid:       new(uint256.Int).Set(debtToCover),
			CollateralSeized: seized,
			HealthBefore:     before,
			HealthAfter:      after,
		}
		e.emit(events.CreditBurned{Account: borrower, Payer: liquidator, Amount: debtToCover, Debt: remaining})
		e.emit(events.CollateralRedeemed{From: borrower, To: liquidator, Collateral: kind.String(), Amount: seized})
		e.emit(events.PositionLiquidated{
			Liquidator:       liquidator,
			Borrower:         borrower,
			Collateral:       kind.String(),
			DebtRepaid:       debtToCover,
			CollateralSeized: seized,
			HealthBefore:     before,
			HealthAfter:      after,
		})
		e.metrics.RecordLiquidation(kind.String())
		e.logger.Warn("position liquidated",
			"liquidator", liquidator.Hex(),
			"borrower", borrower.Hex(),
			"collateral", kind.String(),
			"debtRepaid", debtToCover.Dec(),
			"collateralSeized", seized.Dec(),
			"healthBefore", before.Dec(),
			"healthAfter", after.Dec())
		return nil
	})
	if err != nil {
		return LiquidationResult{}, err
	}
	return result, nil
}
