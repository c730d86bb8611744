package credit

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"eurocredit/core/events"
	"eurocredit/native/valuation"
)

// RedeemCollateral withdraws amount of collateral to sender. A position that
// still carries debt must remain healthy afterwards.
func (e *Engine) RedeemCollateral(ctx context.Context, sender, collateral common.Address, amount *uint256.Int) error {
	attrs := []attribute.KeyValue{
		attribute.String("account", sender.Hex()),
		attribute.String("collateral", collateral.Hex()),
	}
	return e.mutate(ctx, "redeem", attrs, func(ctx context.Context) error {
		if err := requirePositive("amount", amount); err != nil {
			return err
		}
		kind, err := e.resolveCollateral(collateral)
		if err != nil {
			return err
		}
		if err := e.debitCollateral(sender, kind, amount); err != nil {
			return err
		}
		if _, err := e.newQuotes(ctx).requireHealthy(sender); err != nil {
			return err
		}
		if err := e.sendCollateral(kind, sender, amount); err != nil {
			return err
		}
		e.emit(events.CollateralRedeemed{From: sender, To: sender, Collateral: kind.String(), Amount: amount})
		e.logger.Debug("collateral redeemed", "account", sender.Hex(), "collateral", kind.String(), "amount", amount.Dec())
		return nil
	})
}

// RedeemCollateralForDebt repays amountDsc of sender's debt and releases the
// collateral worth that debt at the threshold rate. It returns the collateral
// released. The release is proportional, so no health check applies.
func (e *Engine) RedeemCollateralForDebt(ctx context.Context, sender common.Address, amountDsc *uint256.Int, collateral common.Address) (*uint256.Int, error) {
	attrs := []attribute.KeyValue{
		attribute.String("account", sender.Hex()),
		attribute.String("collateral", collateral.Hex()),
	}
	var released *uint256.Int
	err := e.mutate(ctx, "redeem_for_debt", attrs, func(ctx context.Context) error {
		if err := requirePositive("amount", amountDsc); err != nil {
			return err
		}
		kind, err := e.resolveCollateral(collateral)
		if err != nil {
			return err
		}
		if err := e.requireCreditBalance(sender, amountDsc); err != nil {
			return err
		}

		q := e.newQuotes(ctx)
		peg, err := q.pegPrice()
		if err != nil {
			return err
		}
		price, err := q.collateralPrice(kind)
		if err != nil {
			return err
		}
		out, err := valuation.CollateralOutForRedeem(amountDsc, peg, price, e.decimals(kind), e.params.ThresholdPercent)
		if err != nil {
			return err
		}
		if out.IsZero() {
			return ErrRedeemAmountTooSmall
		}

		debt, err := e.decreaseDebt(sender, amountDsc)
		if err != nil {
			return err
		}
		if err := e.debitCollateral(sender, kind, out); err != nil {
			return err
		}
		if err := e.burnFrom(sender, amountDsc); err != nil {
			return err
		}
		if err := e.sendCollateral(kind, sender, out); err != nil {
			return err
		}
		released = out
		e.emit(events.CreditBurned{Account: sender, Payer: sender, Amount: amountDsc, Debt: debt})
		e.emit(events.CollateralRedeemed{From: sender, To: sender, Collateral: kind.String(), Amount: out})
		e.logger.Debug("collateral redeemed for debt",
			"account", sender.Hex(), "collateral", kind.String(), "repaid", amountDsc.Dec(), "released", out.Dec())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (e *Engine) debitCollateral(account common.Address, kind Collateral, amount *uint256.Int) error {
	record, err := e.loadCollateral(account)
	if err != nil {
		return err
	}
	if err := record.Sub(kind, amount); err != nil {
		return err
	}
	return e.storeCollateral(account, record)
}
