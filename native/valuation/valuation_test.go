package valuation

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	pegPrice   = uint256.MustFromDecimal("1160000000000000000")
	ethPrice   = uint256.MustFromDecimal("3000000000000000000000")
	ethCrash   = uint256.MustFromDecimal("2400000000000000000000")
	btcPrice   = uint256.MustFromDecimal("60000000000000000000000")
	oneEther   = uint256.MustFromDecimal("1000000000000000000")
	oneBitcoin = uint256.NewInt(100_000_000)
)

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestScaleToWad(t *testing.T) {
	cases := []struct {
		name     string
		amount   *uint256.Int
		decimals uint8
		want     *uint256.Int
	}{
		{"wad", oneEther, 18, oneEther},
		{"eight decimals", oneBitcoin, 8, oneEther},
		{"six decimals", uint256.NewInt(2_500_000), 6, dec("2500000000000000000")},
		{"twenty decimals truncates", uint256.NewInt(12_345), 20, uint256.NewInt(123)},
		{"zero", new(uint256.Int), 6, new(uint256.Int)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ScaleToWad(tc.amount, tc.decimals)
			require.NoError(t, err)
			require.Equal(t, tc.want.Dec(), got.Dec())
		})
	}
}

func TestScaleFromWad(t *testing.T) {
	got, err := ScaleFromWad(dec("1999999999999999999"), 8)
	require.NoError(t, err)
	require.Equal(t, uint64(199_999_999), got.Uint64())

	got, err = ScaleFromWad(uint256.NewInt(5), 20)
	require.NoError(t, err)
	require.Equal(t, uint64(500), got.Uint64())

	_, err = ScaleFromWad(oneEther, 200)
	require.ErrorIs(t, err, ErrDecimalsOutOfRange)
}

func TestScaleToWadOverflow(t *testing.T) {
	_, err := ScaleToWad(MaxHealthFactor, 0)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestPriceInPeg(t *testing.T) {
	got, err := PriceInPeg(ethPrice, pegPrice)
	require.NoError(t, err)
	require.Equal(t, "2586206896551724137931", got.Dec())

	_, err = PriceInPeg(ethPrice, new(uint256.Int))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestCreditIssuableFromCollateral(t *testing.T) {
	got, err := CreditIssuableFromCollateral(oneEther, pegPrice, ethPrice, 18, 150)
	require.NoError(t, err)
	require.Equal(t, "1724137931034482758620", got.Dec())

	got, err = CreditIssuableFromCollateral(oneBitcoin, pegPrice, btcPrice, 8, 150)
	require.NoError(t, err)
	require.Equal(t, "34482758620689655172413", got.Dec())

	_, err = CreditIssuableFromCollateral(oneEther, pegPrice, ethPrice, 18, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestHealthFactor(t *testing.T) {
	minted := dec("1724137931034482758620")

	value, err := CollateralValueInPeg(oneEther, pegPrice, ethPrice, 18)
	require.NoError(t, err)
	hf, err := HealthFactor(value, minted, 150)
	require.NoError(t, err)
	require.Equal(t, MinHealthFactor.Dec(), hf.Dec())

	value, err = CollateralValueInPeg(oneEther, pegPrice, ethCrash, 18)
	require.NoError(t, err)
	hf, err = HealthFactor(value, minted, 150)
	require.NoError(t, err)
	require.Equal(t, "800000000000000000", hf.Dec())
	require.True(t, hf.Lt(MinHealthFactor))
}

func TestHealthFactorWithoutDebtIsMax(t *testing.T) {
	for _, collateral := range []*uint256.Int{new(uint256.Int), oneEther, MaxHealthFactor} {
		hf, err := HealthFactor(collateral, new(uint256.Int), 150)
		require.NoError(t, err)
		require.True(t, hf.Eq(MaxHealthFactor))
	}
	hf, err := HealthFactor(oneEther, nil, 0)
	require.NoError(t, err)
	require.True(t, hf.Eq(MaxHealthFactor))
}

func TestCollateralOutForRedeem(t *testing.T) {
	minted := dec("1724137931034482758620")
	got, err := CollateralOutForRedeem(minted, pegPrice, ethPrice, 18, 150)
	require.NoError(t, err)
	require.Equal(t, oneEther.Dec(), got.Dec())

	got, err = CollateralOutForRedeem(uint256.NewInt(1), pegPrice, btcPrice, 8, 150)
	require.NoError(t, err)
	require.True(t, got.IsZero(), "dust redemption must not yield collateral")
}

func TestRoundTripNeverExceedsDeposit(t *testing.T) {
	deposits := []string{"1", "7", "999", "123456789", "1000000000000000000", "31415926535897932384", "5000000000000000000000"}
	prices := []*uint256.Int{ethPrice, ethCrash, btcPrice, dec("1234567"), dec("999999999999999999")}
	for _, decimals := range []uint8{6, 8, 18} {
		for _, raw := range deposits {
			deposit := dec(raw)
			for _, price := range prices {
				minted, err := CreditIssuableFromCollateral(deposit, pegPrice, price, decimals, 150)
				require.NoError(t, err)
				released, err := CollateralOutForRedeem(minted, pegPrice, price, decimals, 150)
				require.NoError(t, err)
				require.False(t, released.Gt(deposit), "deposit %s decimals %d price %s released %s", raw, decimals, price.Dec(), released.Dec())
			}
		}
	}
}

func TestLiquidationCollateralOut(t *testing.T) {
	cases := []struct {
		debt string
		want string
	}{
		{"1500000000000000000000", "797500000000000001"},
		{"100000000000000000000", "53166666666666667"},
		{"1724137931034482758620", "916666666666666667"},
		{"1", "1"},
	}
	for _, tc := range cases {
		got, err := LiquidationCollateralOut(dec(tc.debt), pegPrice, ethCrash, 18, 10, 100)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Dec(), "debt %s", tc.debt)
	}

	_, err := LiquidationCollateralOut(oneEther, pegPrice, ethCrash, 18, 10, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivUp(t *testing.T) {
	got, err := mulDivUp(uint256.NewInt(10), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(4), got.Uint64())

	got, err = mulDivUp(uint256.NewInt(9), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Uint64())

	_, err = mulDiv(MaxHealthFactor, uint256.NewInt(2), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)
}
