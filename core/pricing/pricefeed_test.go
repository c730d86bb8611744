package pricing

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeScalesToWad(t *testing.T) {
	cases := []struct {
		name     string
		answer   int64
		decimals uint8
		want     string
	}{
		{"eight decimals", 300_000_000_000, 8, "3000000000000000000000"},
		{"peg", 116_000_000, 8, "1160000000000000000"},
		{"eighteen decimals", 7, 18, "7"},
		{"zero decimals", 2, 0, "2000000000000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(Round{Answer: big.NewInt(tc.answer)}, tc.decimals)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Dec())
		})
	}
}

func TestNormalizeRejectsNonPositive(t *testing.T) {
	for _, answer := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := Normalize(Round{Answer: answer}, 8)
		require.ErrorIs(t, err, ErrInvalidAnswer)
	}
	// Answers that vanish after scaling are treated as zero prices.
	_, err := Normalize(Round{Answer: big.NewInt(1)}, 30)
	require.ErrorIs(t, err, ErrInvalidAnswer)
}

func TestNormalizeIgnoresStaleness(t *testing.T) {
	round := Round{Answer: big.NewInt(100), UpdatedAt: time.Unix(0, 0)}
	got, err := Normalize(round, 2)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", got.Dec())
}

func TestManualFeedRounds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feed := NewManualFeed(8, big.NewInt(300_000_000_000))
	feed.SetClock(func() time.Time { return now })
	feed.SetAnswer(big.NewInt(240_000_000_000))

	round, err := feed.LatestRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), round.RoundID)
	require.Equal(t, round.RoundID, round.AnsweredInRound)
	require.True(t, round.UpdatedAt.Equal(now))

	price, err := Fetch(context.Background(), feed)
	require.NoError(t, err)
	require.Equal(t, "2400000000000000000000", price.Dec())

	round.Answer.SetInt64(1)
	again, err := feed.LatestRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(240_000_000_000), again.Answer.Int64())
}

func TestFetchHonoursContextAndNilFeed(t *testing.T) {
	_, err := Fetch(context.Background(), nil)
	require.ErrorIs(t, err, ErrFeedNotConfigured)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fetch(ctx, NewManualFeed(8, big.NewInt(1)))
	require.ErrorIs(t, err, context.Canceled)
}
