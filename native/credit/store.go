package credit

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/core/state"
)

const (
	collateralNamespace = "credit/collateral"
	debtNamespace       = "credit/debt"
)

func collateralKey(account common.Address) []byte {
	return state.Key(collateralNamespace, account.Bytes())
}

func debtKey(account common.Address) []byte {
	return state.Key(debtNamespace, account.Bytes())
}

type storedCollateral struct {
	AssetA *uint256.Int
	Native *uint256.Int
	AssetB *uint256.Int
}

func (e *Engine) loadCollateral(account common.Address) (*CollateralRecord, error) {
	var stored storedCollateral
	ok, err := e.state.GetRLP(collateralKey(account), &stored)
	if err != nil {
		return nil, err
	}
	record := newCollateralRecord()
	if !ok {
		return record, nil
	}
	if stored.AssetA != nil {
		record.AssetA = stored.AssetA
	}
	if stored.Native != nil {
		record.Native = stored.Native
	}
	if stored.AssetB != nil {
		record.AssetB = stored.AssetB
	}
	return record, nil
}

func (e *Engine) storeCollateral(account common.Address, record *CollateralRecord) error {
	if record.IsEmpty() {
		e.state.Delete(collateralKey(account))
		return nil
	}
	return e.state.PutRLP(collateralKey(account), &storedCollateral{
		AssetA: record.AssetA,
		Native: record.Native,
		AssetB: record.AssetB,
	})
}

func (e *Engine) loadDebt(account common.Address) (*uint256.Int, error) {
	return e.state.GetUint256(debtKey(account))
}

func (e *Engine) storeDebt(account common.Address, debt *uint256.Int) error {
	return e.state.SetUint256(debtKey(account), debt)
}
