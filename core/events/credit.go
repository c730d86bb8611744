package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/core/types"
)

const (
	// TypeCollateralDeposited is emitted when collateral enters the engine.
	TypeCollateralDeposited = "credit.collateral_deposited"
	// TypeCollateralRedeemed is emitted when collateral leaves the engine,
	// either through a redemption or a liquidation seizure.
	TypeCollateralRedeemed = "credit.collateral_redeemed"
	// TypeCreditMinted is emitted when credit tokens are issued against collateral.
	TypeCreditMinted = "credit.minted"
	// TypeCreditBurned is emitted when outstanding debt is repaid and destroyed.
	TypeCreditBurned = "credit.burned"
	// TypePositionLiquidated is emitted for every successful liquidation.
	TypePositionLiquidated = "credit.liquidated"
)

type CollateralDeposited struct {
	Account    common.Address
	Collateral string
	Amount     *uint256.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"account":    formatAddress(e.Account),
			"collateral": normalizeAsset(e.Collateral),
			"amount":     formatAmount(e.Amount),
		},
	}
}

type CollateralRedeemed struct {
	From       common.Address
	To         common.Address
	Collateral string
	Amount     *uint256.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralRedeemed,
		Attributes: map[string]string{
			"from":       formatAddress(e.From),
			"to":         formatAddress(e.To),
			"collateral": normalizeAsset(e.Collateral),
			"amount":     formatAmount(e.Amount),
		},
	}
}

type CreditMinted struct {
	Account common.Address
	Amount  *uint256.Int
	Debt    *uint256.Int
}

func (CreditMinted) EventType() string { return TypeCreditMinted }

func (e CreditMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditMinted,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"amount":  formatAmount(e.Amount),
			"debt":    formatAmount(e.Debt),
		},
	}
}

// CreditBurned records debt retired on behalf of Account, paid from the
// credit balance of Payer.
type CreditBurned struct {
	Account common.Address
	Payer   common.Address
	Amount  *uint256.Int
	Debt    *uint256.Int
}

func (CreditBurned) EventType() string { return TypeCreditBurned }

func (e CreditBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditBurned,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"payer":   formatAddress(e.Payer),
			"amount":  formatAmount(e.Amount),
			"debt":    formatAmount(e.Debt),
		},
	}
}

type PositionLiquidated struct {
	Liquidator       common.Address
	Borrower         common.Address
	Collateral       string
	DebtRepaid       *uint256.Int
	CollateralSeized *uint256.Int
	HealthBefore     *uint256.Int
	HealthAfter      *uint256.Int
}

func (PositionLiquidated) EventType() string { return TypePositionLiquidated }

func (e PositionLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypePositionLiquidated,
		Attributes: map[string]string{
			"liquidator":       formatAddress(e.Liquidator),
			"borrower":         formatAddress(e.Borrower),
			"collateral":       normalizeAsset(e.Collateral),
			"debtRepaid":       formatAmount(e.DebtRepaid),
			"collateralSeized": formatAmount(e.CollateralSeized),
			"healthBefore":     formatAmount(e.HealthBefore),
			"healthAfter":      formatAmount(e.HealthAfter),
		},
	}
}
