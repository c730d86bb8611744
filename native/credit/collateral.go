package credit

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/native/valuation"
)

// Collateral identifies one of the three accepted collateral kinds.
type Collateral uint8

const (
	CollateralAssetA Collateral = iota + 1
	CollateralNative
	CollateralAssetB
)

// NativeCollateral is the sentinel address that selects the native currency.
var NativeCollateral = common.Address{}

// NativeDecimals is the fixed precision of the native currency.
const NativeDecimals = 18

func (c Collateral) String() string {
	switch c {
	case CollateralAssetA:
		return "asset_a"
	case CollateralNative:
		return "native"
	case CollateralAssetB:
		return "asset_b"
	default:
		return fmt.Sprintf("collateral(%d)", uint8(c))
	}
}

var collateralKinds = [...]Collateral{CollateralAssetA, CollateralNative, CollateralAssetB}

// resolveCollateral is the single predicate deciding whether addr is an
// accepted collateral identity.
func (e *Engine) resolveCollateral(addr common.Address) (Collateral, error) {
	switch addr {
	case NativeCollateral:
		return CollateralNative, nil
	case e.params.AssetA:
		return CollateralAssetA, nil
	case e.params.AssetB:
		return CollateralAssetB, nil
	default:
		return 0, &CollateralError{Address: addr}
	}
}

// CollateralRecord holds the per-account collateral balances. Fields are
// always non-nil once loaded.
type CollateralRecord struct {
	AssetA *uint256.Int
	Native *uint256.Int
	AssetB *uint256.Int
}

func newCollateralRecord() *CollateralRecord {
	return &CollateralRecord{AssetA: new(uint256.Int), Native: new(uint256.Int), AssetB: new(uint256.Int)}
}

// Balance returns the balance held for kind.
func (r *CollateralRecord) Balance(kind Collateral) *uint256.Int {
	switch kind {
	case CollateralAssetA:
		return r.AssetA
	case CollateralNative:
		return r.Native
	case CollateralAssetB:
		return r.AssetB
	default:
		return new(uint256.Int)
	}
}

func (r *CollateralRecord) set(kind Collateral, value *uint256.Int) {
	switch kind {
	case CollateralAssetA:
		r.AssetA = value
	case CollateralNative:
		r.Native = value
	case CollateralAssetB:
		r.AssetB = value
	}
}

// Add credits amount to the kind balance, failing on overflow.
func (r *CollateralRecord) Add(kind Collateral, amount *uint256.Int) error {
	next, overflow := new(uint256.Int).AddOverflow(r.Balance(kind), amount)
	if overflow {
		return fmt.Errorf("credit engine: %s collateral: %w", kind, valuation.ErrOverflow)
	}
	r.set(kind, next)
	return nil
}

// Sub debits amount from the kind balance. The record is left untouched when
// the balance is too small.
func (r *CollateralRecord) Sub(kind Collateral, amount *uint256.Int) error {
	have := r.Balance(kind)
	if have.Lt(amount) {
		return &BalanceError{Kind: BalanceCollateral, Have: new(uint256.Int).Set(have), Need: new(uint256.Int).Set(amount)}
	}
	r.set(kind, new(uint256.Int).Sub(have, amount))
	return nil
}

// IsEmpty reports whether no collateral is held.
func (r *CollateralRecord) IsEmpty() bool {
	return r.AssetA.IsZero() && r.Native.IsZero() && r.AssetB.IsZero()
}
