package credit

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"eurocredit/core/events"
	"eurocredit/native/valuation"
)

// DepositCollateral credits amount of collateral to sender. The native
// currency is paid through payment, which must equal amount; token deposits
// must carry no payment and are pulled with TransferFrom, so sender has to
// approve the engine first.
func (e *Engine) DepositCollateral(ctx context.Context, sender, collateral common.Address, amount, payment *uint256.Int) error {
	attrs := []attribute.KeyValue{
		attribute.String("account", sender.Hex()),
		attribute.String("collateral", collateral.Hex()),
	}
	return e.mutate(ctx, "deposit", attrs, func(ctx context.Context) error {
		kind, err := e.deposit(sender, collateral, amount, payment)
		if err != nil {
			return err
		}
		e.emit(events.CollateralDeposited{Account: sender, Collateral: kind.String(), Amount: amount})
		e.logger.Debug("collateral deposited", "account", sender.Hex(), "collateral", kind.String(), "amount", amount.Dec())
		return nil
	})
}

// DepositCollateralAndMint deposits amount of collateral and mints the credit
// issuable against that deposit alone. Existing collateral and debt are not
// taken into account. It returns the minted amount.
func (e *Engine) DepositCollateralAndMint(ctx context.Context, sender, collateral common.Address, amount, payment *uint256.Int) (*uint256.Int, error) {
	attrs := []attribute.KeyValue{
		attribute.String("account", sender.Hex()),
		attribute.String("collateral", collateral.Hex()),
	}
	var minted *uint256.Int
	err := e.mutate(ctx, "deposit_and_mint", attrs, func(ctx context.Context) error {
		kind, err := e.deposit(sender, collateral, amount, payment)
		if err != nil {
			return err
		}
		q := e.newQuotes(ctx)
		issuable, err := q.issuable(kind, amount)
		if err != nil {
			return err
		}
		if issuable.IsZero() {
			return &AmountError{Field: "minted", Got: issuable}
		}
		debt, err := e.increaseDebt(sender, issuable)
		if err != nil {
			return err
		}
		if err := e.credit.Mint(e.params.Address, sender, issuable); err != nil {
			return fmt.Errorf("credit engine: mint credit: %w", err)
		}
		minted = issuable
		e.emit(events.CollateralDeposited{Account: sender, Collateral: kind.String(), Amount: amount})
		e.emit(events.CreditMinted{Account: sender, Amount: issuable, Debt: debt})
		e.logger.Debug("collateral deposited and credit minted",
			"account", sender.Hex(), "collateral", kind.String(), "amount", amount.Dec(), "minted", issuable.Dec())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// deposit validates the request, stages the ledger credit and pulls the
// collateral in.
func (e *Engine) deposit(sender, collateral common.Address, amount, payment *uint256.Int) (Collateral, error) {
	if err := requirePositive("amount", amount); err != nil {
		return 0, err
	}
	kind, err := e.resolveCollateral(collateral)
	if err != nil {
		return 0, err
	}
	paid := payment
	if paid == nil {
		paid = new(uint256.Int)
	}
	if kind == CollateralNative {
		if !paid.Eq(amount) {
			return 0, &AmountError{Field: "payment", Got: paid, Want: amount}
		}
	} else if !paid.IsZero() {
		return 0, &AmountError{Field: "payment", Got: paid, Want: new(uint256.Int)}
	}

	record, err := e.loadCollateral(sender)
	if err != nil {
		return 0, err
	}
	if err := record.Add(kind, amount); err != nil {
		return 0, err
	}
	if err := e.storeCollateral(sender, record); err != nil {
		return 0, err
	}
	if err := e.pullCollateral(kind, sender, amount); err != nil {
		return 0, err
	}
	return kind, nil
}

func (e *Engine) increaseDebt(account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	debt, err := e.loadDebt(account)
	if err != nil {
		return nil, err
	}
	next, overflow := new(uint256.Int).AddOverflow(debt, amount)
	if overflow {
		return nil, fmt.Errorf("credit engine: debt: %w", valuation.ErrOverflow)
	}
	if err := e.storeDebt(account, next); err != nil {
		return nil, err
	}
	return next, nil
}
