package credit

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/core/pricing"
	"eurocredit/native/valuation"
)

// quotes memoises oracle reads for the duration of a single call so every
// decision inside that call sees the same prices.
type quotes struct {
	engine *Engine
	ctx    context.Context
	peg    *uint256.Int
	prices [len(collateralKinds) + 1]*uint256.Int
}

func (e *Engine) newQuotes(ctx context.Context) *quotes {
	return &quotes{engine: e, ctx: ctx}
}

func (q *quotes) pegPrice() (*uint256.Int, error) {
	if q.peg != nil {
		return q.peg, nil
	}
	price, err := pricing.Fetch(q.ctx, q.engine.pegFeed)
	if err != nil {
		return nil, fmt.Errorf("%w: peg feed: %w", ErrOracleFailure, err)
	}
	q.peg = price
	return price, nil
}

func (q *quotes) collateralPrice(kind Collateral) (*uint256.Int, error) {
	if cached := q.prices[kind]; cached != nil {
		return cached, nil
	}
	price, err := pricing.Fetch(q.ctx, q.engine.feed(kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %s feed: %w", ErrOracleFailure, kind, err)
	}
	q.prices[kind] = price
	return price, nil
}

func (e *Engine) feed(kind Collateral) pricing.Feed {
	switch kind {
	case CollateralAssetA:
		return e.assetAFeed
	case CollateralAssetB:
		return e.assetBFeed
	default:
		return e.nativeFeed
	}
}

func (e *Engine) decimals(kind Collateral) uint8 {
	switch kind {
	case CollateralAssetA:
		return e.assetA.Decimals()
	case CollateralAssetB:
		return e.assetB.Decimals()
	default:
		return NativeDecimals
	}
}

// issuable returns the credit mintable against amount of kind at exactly the
// collateral threshold.
func (q *quotes) issuable(kind Collateral, amount *uint256.Int) (*uint256.Int, error) {
	peg, err := q.pegPrice()
	if err != nil {
		return nil, err
	}
	price, err := q.collateralPrice(kind)
	if err != nil {
		return nil, err
	}
	return valuation.CreditIssuableFromCollateral(amount, peg, price, q.engine.decimals(kind), q.engine.params.ThresholdPercent)
}

func (q *quotes) value(kind Collateral, amount *uint256.Int) (*uint256.Int, error) {
	peg, err := q.pegPrice()
	if err != nil {
		return nil, err
	}
	price, err := q.collateralPrice(kind)
	if err != nil {
		return nil, err
	}
	return valuation.CollateralValueInPeg(amount, peg, price, q.engine.decimals(kind))
}

// positionValue sums the peg value of every non-empty balance in record.
func (q *quotes) positionValue(record *CollateralRecord) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, kind := range collateralKinds {
		balance := record.Balance(kind)
		if balance.IsZero() {
			continue
		}
		v, err := q.value(kind, balance)
		if err != nil {
			return nil, err
		}
		if _, overflow := total.AddOverflow(total, v); overflow {
			return nil, valuation.ErrOverflow
		}
	}
	return total, nil
}

// positionIssuable sums the per-asset issuable credit of record. The
// issuance formula is linear per asset so this matches valuing the whole
// position at once, up to one unit of floor rounding per asset.
func (q *quotes) positionIssuable(record *CollateralRecord) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, kind := range collateralKinds {
		balance := record.Balance(kind)
		if balance.IsZero() {
			continue
		}
		v, err := q.issuable(kind, balance)
		if err != nil {
			return nil, err
		}
		if _, overflow := total.AddOverflow(total, v); overflow {
			return nil, valuation.ErrOverflow
		}
	}
	return total, nil
}

func (q *quotes) healthFactor(record *CollateralRecord, debt *uint256.Int) (*uint256.Int, error) {
	if debt == nil || debt.IsZero() {
		return new(uint256.Int).Set(valuation.MaxHealthFactor), nil
	}
	value, err := q.positionValue(record)
	if err != nil {
		return nil, err
	}
	return valuation.HealthFactor(value, debt, q.engine.params.ThresholdPercent)
}

// requireHealthy loads account's staged position and fails when it carries
// debt below the minimum health factor.
func (q *quotes) requireHealthy(account common.Address) (*uint256.Int, error) {
	record, err := q.engine.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	debt, err := q.engine.loadDebt(account)
	if err != nil {
		return nil, err
	}
	hf, err := q.healthFactor(record, debt)
	if err != nil {
		return nil, err
	}
	if hf.Lt(valuation.MinHealthFactor) {
		return nil, &HealthError{Err: ErrHealthFactorTooLow, Account: account, HealthFactor: hf}
	}
	return hf, nil
}

// AccountInfo summarises a position.
type AccountInfo struct {
	Debt               *uint256.Int
	CollateralValuePeg *uint256.Int
	Issuable           *uint256.Int
	HealthFactor       *uint256.Int
}

// HealthFactor returns the live health factor of account. Accounts without
// debt report valuation.MaxHealthFactor.
func (e *Engine) HealthFactor(ctx context.Context, account common.Address) (*uint256.Int, error) {
	record, err := e.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	debt, err := e.loadDebt(account)
	if err != nil {
		return nil, err
	}
	return e.newQuotes(ctx).healthFactor(record, debt)
}

// CollateralForUser returns the raw ledger balances of account.
func (e *Engine) CollateralForUser(_ context.Context, account common.Address) (amountA, amountNative, amountB *uint256.Int, err error) {
	record, err := e.loadCollateral(account)
	if err != nil {
		return nil, nil, nil, err
	}
	return record.AssetA, record.Native, record.AssetB, nil
}

// Debt returns the outstanding credit owed by account.
func (e *Engine) Debt(_ context.Context, account common.Address) (*uint256.Int, error) {
	return e.loadDebt(account)
}

// CollateralValueInPeg values the whole position of account in the peg
// currency.
func (e *Engine) CollateralValueInPeg(ctx context.Context, account common.Address) (*uint256.Int, error) {
	record, err := e.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	return e.newQuotes(ctx).positionValue(record)
}

// IssuableCredit returns the aggregate debt ceiling of account.
func (e *Engine) IssuableCredit(ctx context.Context, account common.Address) (*uint256.Int, error) {
	record, err := e.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	return e.newQuotes(ctx).positionIssuable(record)
}

// AccountInformation reports debt, collateral value, ceiling and health of
// account using one set of prices.
func (e *Engine) AccountInformation(ctx context.Context, account common.Address) (AccountInfo, error) {
	record, err := e.loadCollateral(account)
	if err != nil {
		return AccountInfo{}, err
	}
	debt, err := e.loadDebt(account)
	if err != nil {
		return AccountInfo{}, err
	}
	q := e.newQuotes(ctx)
	value, err := q.positionValue(record)
	if err != nil {
		return AccountInfo{}, err
	}
	issuable, err := q.positionIssuable(record)
	if err != nil {
		return AccountInfo{}, err
	}
	hf := new(uint256.Int).Set(valuation.MaxHealthFactor)
	if !debt.IsZero() {
		hf, err = valuation.HealthFactor(value, debt, e.params.ThresholdPercent)
		if err != nil {
			return AccountInfo{}, err
		}
	}
	return AccountInfo{Debt: debt, CollateralValuePeg: value, Issuable: issuable, HealthFactor: hf}, nil
}
