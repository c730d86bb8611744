package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

var (
	// ErrInvalidAnswer is returned when a feed reports a zero or negative price.
	ErrInvalidAnswer = errors.New("pricing: oracle answer must be positive")
	// ErrFeedNotConfigured is returned when no feed was wired for an asset.
	ErrFeedNotConfigured = errors.New("pricing: feed not configured")
)

// Round mirrors the latest-round response of an aggregator style price feed.
// Answer is signed because upstream aggregators report signed integers.
type Round struct {
	RoundID         uint64
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// Feed exposes the latest price of a single asset in USD.
type Feed interface {
	LatestRound(ctx context.Context) (Round, error)
	Decimals() uint8
}

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Normalize converts a raw feed answer to 18-decimal fixed point:
// answer × 1e18 / 10^decimals. UpdatedAt is not inspected.
func Normalize(round Round, decimals uint8) (*uint256.Int, error) {
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrInvalidAnswer
	}
	scaled := new(big.Int).Mul(round.Answer, wad)
	scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	if scaled.Sign() == 0 {
		return nil, ErrInvalidAnswer
	}
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, fmt.Errorf("pricing: normalised price overflows 256 bits")
	}
	return out, nil
}

// Fetch reads the latest round from feed and normalises it.
func Fetch(ctx context.Context, feed Feed) (*uint256.Int, error) {
	if feed == nil {
		return nil, ErrFeedNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	round, err := feed.LatestRound(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(round, feed.Decimals())
}

// ManualFeed is an in-memory aggregator whose answer is set explicitly. It is
// used by tests and local tooling; every update opens a new round.
type ManualFeed struct {
	mu       sync.RWMutex
	decimals uint8
	round    Round
	clock    func() time.Time
}

// NewManualFeed constructs a feed reporting answer with the given decimals.
func NewManualFeed(decimals uint8, answer *big.Int) *ManualFeed {
	f := &ManualFeed{decimals: decimals, clock: time.Now}
	f.SetAnswer(answer)
	return f
}

// SetClock overrides the time source used to stamp rounds.
func (f *ManualFeed) SetClock(clock func() time.Time) {
	if f == nil || clock == nil {
		return
	}
	f.mu.Lock()
	f.clock = clock
	f.mu.Unlock()
}

// SetAnswer publishes a new round with the supplied answer.
func (f *ManualFeed) SetAnswer(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock().UTC()
	next := f.round.RoundID + 1
	var value *big.Int
	if answer != nil {
		value = new(big.Int).Set(answer)
	}
	f.round = Round{
		RoundID:         next,
		Answer:          value,
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: next,
	}
}

// LatestRound implements Feed.
func (f *ManualFeed) LatestRound(ctx context.Context) (Round, error) {
	if err := ctx.Err(); err != nil {
		return Round{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	round := f.round
	if round.Answer != nil {
		round.Answer = new(big.Int).Set(round.Answer)
	}
	return round, nil
}

// Decimals implements Feed.
func (f *ManualFeed) Decimals() uint8 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decimals
}
