package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCreditEventsRenderAttributes(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000AA")

	evt := CollateralDeposited{Account: account, Collateral: "weth", Amount: uint256.NewInt(5)}.Event()
	require.Equal(t, TypeCollateralDeposited, evt.Type)
	require.Equal(t, "0x00000000000000000000000000000000000000aa", evt.Attribute("account"))
	require.Equal(t, "WETH", evt.Attribute("collateral"))
	require.Equal(t, "5", evt.Attribute("amount"))

	burned := CreditBurned{Account: account, Payer: account}.Event()
	require.Equal(t, "0", burned.Attribute("amount"))
	require.Equal(t, "0", burned.Attribute("debt"))

	liq := PositionLiquidated{
		Liquidator:       account,
		Borrower:         account,
		Collateral:       "native",
		DebtRepaid:       uint256.NewInt(1),
		CollateralSeized: uint256.NewInt(2),
		HealthBefore:     uint256.NewInt(3),
		HealthAfter:      uint256.NewInt(4),
	}.Event()
	require.Equal(t, TypePositionLiquidated, liq.Type)
	require.Equal(t, "NATIVE", liq.Attribute("collateral"))
	require.Equal(t, "2", liq.Attribute("collateralSeized"))
	require.Equal(t, "4", liq.Attribute("healthAfter"))
}

func TestBufferTruncateAndDrain(t *testing.T) {
	var buf Buffer
	buf.Emit(CreditMinted{Amount: uint256.NewInt(1)})
	mark := buf.Mark()
	buf.Emit(CreditMinted{Amount: uint256.NewInt(2)})
	buf.Emit(nil)
	require.Equal(t, 2, buf.Len())

	buf.Truncate(mark)
	drained := buf.Drain()
	require.Len(t, drained, 1)
	require.Equal(t, TypeCreditMinted, drained[0].EventType())
	require.Zero(t, buf.Len())
}
