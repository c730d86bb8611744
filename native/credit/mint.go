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

// Mint issues amount credit to sender against the whole position. The
// resulting debt must stay within the aggregate issuable ceiling and keep the
// health factor at or above 1.
func (e *Engine) Mint(ctx context.Context, sender common.Address, amount *uint256.Int) error {
	attrs := []attribute.KeyValue{attribute.String("account", sender.Hex())}
	return e.mutate(ctx, "mint", attrs, func(ctx context.Context) error {
		if err := requirePositive("amount", amount); err != nil {
			return err
		}
		record, err := e.loadCollateral(sender)
		if err != nil {
			return err
		}
		debt, err := e.loadDebt(sender)
		if err != nil {
			return err
		}
		requested, overflow := new(uint256.Int).AddOverflow(debt, amount)
		if overflow {
			return fmt.Errorf("credit engine: debt: %w", valuation.ErrOverflow)
		}

		q := e.newQuotes(ctx)
		issuable, err := q.positionIssuable(record)
		if err != nil {
			return err
		}
		if requested.Gt(issuable) {
			return &CeilingError{Requested: requested, Issuable: issuable}
		}
		hf, err := q.healthFactor(record, requested)
		if err != nil {
			return err
		}
		if hf.Lt(valuation.MinHealthFactor) {
			return &HealthError{Err: ErrHealthFactorTooLow, Account: sender, HealthFactor: hf}
		}

		if err := e.storeDebt(sender, requested); err != nil {
			return err
		}
		if err := e.credit.Mint(e.params.Address, sender, amount); err != nil {
			return fmt.Errorf("credit engine: mint credit: %w", err)
		}
		e.emit(events.CreditMinted{Account: sender, Amount: amount, Debt: requested})
		e.logger.Debug("credit minted", "account", sender.Hex(), "amount", amount.Dec(), "debt", requested.Dec())
		return nil
	})
}

// Burn repays amount of sender's debt with sender's own credit balance. The
// engine pulls the tokens with TransferFrom and destroys them.
func (e *Engine) Burn(ctx context.Context, sender common.Address, amount *uint256.Int) error {
	attrs := []attribute.KeyValue{attribute.String("account", sender.Hex())}
	return e.mutate(ctx, "burn", attrs, func(ctx context.Context) error {
		if err := requirePositive("amount", amount); err != nil {
			return err
		}
		if err := e.requireCreditBalance(sender, amount); err != nil {
			return err
		}
		debt, err := e.decreaseDebt(sender, amount)
		if err != nil {
			return err
		}
		if err := e.burnFrom(sender, amount); err != nil {
			return err
		}
		e.emit(events.CreditBurned{Account: sender, Payer: sender, Amount: amount, Debt: debt})
		e.logger.Debug("credit burned", "account", sender.Hex(), "amount", amount.Dec(), "debt", debt.Dec())
		return nil
	})
}
