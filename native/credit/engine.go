// Package credit implements the overcollateralised credit engine. It owns the
// per-account collateral and debt ledgers and is the only caller allowed to
// mint and burn the credit token.
package credit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eurocredit/core/events"
	"eurocredit/core/pricing"
	"eurocredit/core/state"
	nativecommon "eurocredit/native/common"
	"eurocredit/observability"
)

const moduleName = "credit"

// CreditToken is the credit token collaborator. The engine must hold its
// mint authority.
type CreditToken interface {
	Mint(caller, to common.Address, amount *uint256.Int) error
	Burn(caller common.Address, amount *uint256.Int) error
	BalanceOf(account common.Address) (*uint256.Int, error)
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// CollateralToken is a reference collateral asset.
type CollateralToken interface {
	BalanceOf(account common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Decimals() uint8
}

// NativeBank moves the native currency.
type NativeBank interface {
	BalanceOf(account common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// Metrics records engine activity. An empty reason marks success.
type Metrics interface {
	Observe(operation, reason string, duration time.Duration)
	RecordLiquidation(collateral string)
}

// Params fixes the engine identity and risk configuration.
type Params struct {
	// Address is the account holding collateral and the credit mint authority.
	Address common.Address
	AssetA  common.Address
	AssetB  common.Address
	// ThresholdPercent is the minimum collateralisation, 150 means 150%.
	ThresholdPercent     uint64
	LiquidationBonus     uint64
	LiquidationPrecision uint64
}

// DefaultParams returns the reference risk configuration for the given
// addresses.
func DefaultParams(engine, assetA, assetB common.Address) Params {
	return Params{
		Address:              engine,
		AssetA:               assetA,
		AssetB:               assetB,
		ThresholdPercent:     150,
		LiquidationBonus:     10,
		LiquidationPrecision: 100,
	}
}

func (p Params) validate() error {
	switch {
	case p.Address == (common.Address{}):
		return fmt.Errorf("%w: engine address required", errInvalidParams)
	case p.AssetA == (common.Address{}) || p.AssetB == (common.Address{}):
		return fmt.Errorf("%w: collateral asset addresses required", errInvalidParams)
	case p.AssetA == p.AssetB:
		return fmt.Errorf("%w: collateral assets must differ", errInvalidParams)
	case p.ThresholdPercent < 100:
		return fmt.Errorf("%w: threshold must be at least 100%%", errInvalidParams)
	case p.LiquidationPrecision == 0:
		return fmt.Errorf("%w: liquidation precision must be positive", errInvalidParams)
	}
	return nil
}

// Collaborators bundles the engine dependencies. NativeFeed falls back to
// AssetAFeed since asset A is the wrapped native currency.
type Collaborators struct {
	State       *state.StateDB
	Credit      CreditToken
	AssetAToken CollateralToken
	AssetBToken CollateralToken
	Native      NativeBank
	PegFeed     pricing.Feed
	AssetAFeed  pricing.Feed
	AssetBFeed  pricing.Feed
	NativeFeed  pricing.Feed
}

// Option customises an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithEmitter routes engine events to emitter, typically the executor buffer.
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for latency measurements.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// Engine orchestrates the collateral and debt ledgers.
type Engine struct {
	params Params
	state  *state.StateDB

	credit CreditToken
	assetA CollateralToken
	assetB CollateralToken
	native NativeBank

	pegFeed    pricing.Feed
	assetAFeed pricing.Feed
	assetBFeed pricing.Feed
	nativeFeed pricing.Feed

	guard nativecommon.ReentrancyGuard

	logger  *slog.Logger
	metrics Metrics
	emitter events.Emitter
	tracer  trace.Tracer
	clock   func() time.Time
}

// New constructs an engine. The credit token authority must be handed to
// params.Address before any mutating call.
func New(params Params, deps Collaborators, opts ...Option) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if deps.State == nil {
		return nil, errNilState
	}
	switch {
	case deps.Credit == nil:
		return nil, fmt.Errorf("%w: credit token", errNilCollaborators)
	case deps.AssetAToken == nil || deps.AssetBToken == nil:
		return nil, fmt.Errorf("%w: collateral token", errNilCollaborators)
	case deps.Native == nil:
		return nil, fmt.Errorf("%w: native bank", errNilCollaborators)
	case deps.PegFeed == nil || deps.AssetAFeed == nil || deps.AssetBFeed == nil:
		return nil, fmt.Errorf("%w: price feed", errNilCollaborators)
	}
	nativeFeed := deps.NativeFeed
	if nativeFeed == nil {
		nativeFeed = deps.AssetAFeed
	}
	e := &Engine{
		params:     params,
		state:      deps.State,
		credit:     deps.Credit,
		assetA:     deps.AssetAToken,
		assetB:     deps.AssetBToken,
		native:     deps.Native,
		pegFeed:    deps.PegFeed,
		assetAFeed: deps.AssetAFeed,
		assetBFeed: deps.AssetBFeed,
		nativeFeed: nativeFeed,
		logger:     slog.Default(),
		emitter:    events.NoopEmitter{},
		tracer:     otel.Tracer("native/credit"),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.metrics == nil {
		e.metrics = observability.CreditEngine()
	}
	e.logger = e.logger.With("module", moduleName)
	return e, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

// Address returns the engine account.
func (e *Engine) Address() common.Address { return e.params.Address }

// CollateralAddresses lists the accepted collateral identities in ledger
// order: asset A, native sentinel, asset B.
func (e *Engine) CollateralAddresses() []common.Address {
	return []common.Address{e.params.AssetA, NativeCollateral, e.params.AssetB}
}

// View returns an engine that reads positions from st. It shares the
// configuration, collaborators and feeds of e and is meant for queries.
func (e *Engine) View(st *state.StateDB) *Engine {
	return &Engine{
		params:     e.params,
		state:      st,
		credit:     e.credit,
		assetA:     e.assetA,
		assetB:     e.assetB,
		native:     e.native,
		pegFeed:    e.pegFeed,
		assetAFeed: e.assetAFeed,
		assetBFeed: e.assetBFeed,
		nativeFeed: e.nativeFeed,
		logger:     e.logger,
		metrics:    e.metrics,
		emitter:    events.NoopEmitter{},
		tracer:     e.tracer,
		clock:      e.clock,
	}
}

// mutate runs fn as one guarded, all-or-nothing transition. Nothing fn wrote
// to state survives an error.
func (e *Engine) mutate(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	start := e.clock()
	release, err := e.guard.Enter()
	if err != nil {
		e.metrics.Observe(operation, errorReason(err), e.clock().Sub(start))
		return err
	}
	defer release()

	ctx, span := e.tracer.Start(ctx, "credit."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	snapshot := e.state.Snapshot()
	if err := fn(ctx); err != nil {
		e.state.RevertToSnapshot(snapshot)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.Observe(operation, errorReason(err), e.clock().Sub(start))
		return err
	}
	span.SetStatus(codes.Ok, operation+" applied")
	e.metrics.Observe(operation, "", e.clock().Sub(start))
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func requirePositive(field string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return &AmountError{Field: field, Got: amount}
	}
	return nil
}

func transferFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrTransferFailed, err)
}

// pullCollateral moves amount of kind from sender into the engine.
func (e *Engine) pullCollateral(kind Collateral, sender common.Address, amount *uint256.Int) error {
	var err error
	switch kind {
	case CollateralAssetA:
		err = e.assetA.TransferFrom(e.params.Address, sender, e.params.Address, amount)
	case CollateralAssetB:
		err = e.assetB.TransferFrom(e.params.Address, sender, e.params.Address, amount)
	case CollateralNative:
		err = e.native.Transfer(sender, e.params.Address, amount)
	}
	if err != nil {
		return transferFailed(err)
	}
	return nil
}

// sendCollateral pushes amount of kind from the engine to recipient. Ledger
// debits must already be staged.
func (e *Engine) sendCollateral(kind Collateral, recipient common.Address, amount *uint256.Int) error {
	var err error
	switch kind {
	case CollateralAssetA:
		err = e.assetA.Transfer(e.params.Address, recipient, amount)
	case CollateralAssetB:
		err = e.assetB.Transfer(e.params.Address, recipient, amount)
	case CollateralNative:
		err = e.native.Transfer(e.params.Address, recipient, amount)
	}
	if err != nil {
		return transferFailed(err)
	}
	return nil
}

// burnFrom pulls amount credit from payer into the engine and destroys it.
func (e *Engine) burnFrom(payer common.Address, amount *uint256.Int) error {
	if err := e.credit.TransferFrom(e.params.Address, payer, e.params.Address, amount); err != nil {
		return transferFailed(err)
	}
	if err := e.credit.Burn(e.params.Address, amount); err != nil {
		return fmt.Errorf("credit engine: burn credit: %w", err)
	}
	return nil
}

func (e *Engine) requireCreditBalance(account common.Address, amount *uint256.Int) error {
	balance, err := e.credit.BalanceOf(account)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return &BalanceError{Kind: BalanceCredit, Have: balance, Need: new(uint256.Int).Set(amount)}
	}
	return nil
}

// decreaseDebt stages debt - amount for account, failing before any write when
// the debt is smaller than amount.
func (e *Engine) decreaseDebt(account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	debt, err := e.loadDebt(account)
	if err != nil {
		return nil, err
	}
	if debt.Lt(amount) {
		return nil, &BalanceError{Kind: BalanceDebt, Have: debt, Need: new(uint256.Int).Set(amount)}
	}
	next := new(uint256.Int).Sub(debt, amount)
	if err := e.storeDebt(account, next); err != nil {
		return nil, err
	}
	return next, nil
}
