// Package creditd assembles the credit engine with its state, collaborator
// ledgers, event archive and telemetry from a config.Config.
package creditd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"eurocredit/config"
	"eurocredit/core"
	"eurocredit/core/pricing"
	"eurocredit/core/state"
	"eurocredit/native/credit"
	"eurocredit/native/token"
	"eurocredit/observability"
	"eurocredit/observability/logging"
	telemetry "eurocredit/observability/otel"
	"eurocredit/storage"
	"eurocredit/storage/eventlog"
)

// Feeds overrides the manual price feeds built from the oracle section.
type Feeds struct {
	Peg    pricing.Feed
	AssetA pricing.Feed
	AssetB pricing.Feed
	Native pricing.Feed
}

// Option customises service construction.
type Option func(*options)

type options struct {
	feeds  Feeds
	logger *slog.Logger
}

// WithFeeds wires external price feeds. Nil entries fall back to the manual
// feeds seeded from config.
func WithFeeds(feeds Feeds) Option {
	return func(o *options) { o.feeds = feeds }
}

// WithLogger skips logging.Setup and uses logger instead.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Service is a fully wired credit engine. Mutating calls go through the
// executor so each one commits atomically.
type Service struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       storage.Database
	State    *state.StateDB
	Executor *core.Executor
	Engine   *credit.Engine
	Credit   *token.Token
	AssetA   *token.Token
	AssetB   *token.Token
	Bank     *token.NativeBank
	Archive  *eventlog.Archive

	// ManualFeeds holds the config-seeded feeds that are in use, keyed by
	// peg, asset_a and asset_b.
	ManualFeeds map[string]*pricing.ManualFeed

	deployer common.Address
	closers  []func() error
}

// New builds the service. Callers own the returned Service and must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (svc *Service, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("creditd: configuration is missing")
	}
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	svc = &Service{Config: cfg, ManualFeeds: make(map[string]*pricing.ManualFeed)}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()

	svc.Logger = o.logger
	if svc.Logger == nil {
		logger, closer := logging.Setup(logging.Options{
			Service: cfg.Logging.Service,
			Env:     cfg.Logging.Env,
			Level:   cfg.Logging.Level,
			File:    cfg.Logging.File,
		})
		svc.Logger = logger
		svc.closers = append(svc.closers, closer.Close)
	}

	if err := svc.initTelemetry(ctx); err != nil {
		return svc, err
	}
	if err := svc.openStorage(); err != nil {
		return svc, err
	}

	var execOpts []core.ExecutorOption
	execOpts = append(execOpts, core.WithExecutorLogger(svc.Logger))
	if cfg.Archive.Path != "" {
		archive, err := eventlog.Open(cfg.Archive.Path)
		if err != nil {
			return svc, err
		}
		svc.Archive = archive
		svc.closers = append(svc.closers, archive.Close)
		execOpts = append(execOpts, core.WithSink(archive))
	}
	svc.Executor = core.NewExecutor(svc.State, execOpts...)

	params, err := cfg.Engine.Params()
	if err != nil {
		return svc, fmt.Errorf("creditd: %w", err)
	}
	if err := svc.openLedgers(); err != nil {
		return svc, err
	}
	feeds, err := svc.resolveFeeds(o.feeds)
	if err != nil {
		return svc, err
	}

	svc.Engine, err = credit.New(params, credit.Collaborators{
		State:       svc.State,
		Credit:      svc.Credit,
		AssetAToken: svc.AssetA,
		AssetBToken: svc.AssetB,
		Native:      svc.Bank,
		PegFeed:     feeds.Peg,
		AssetAFeed:  feeds.AssetA,
		AssetBFeed:  feeds.AssetB,
		NativeFeed:  feeds.Native,
	},
		credit.WithLogger(svc.Logger),
		credit.WithEmitter(svc.Executor.Emitter()),
		credit.WithMetrics(observability.CreditEngine()),
	)
	if err != nil {
		return svc, err
	}
	if err := svc.handOverAuthority(ctx); err != nil {
		return svc, err
	}
	svc.Logger.Info("credit engine ready",
		"engine", params.Address.Hex(),
		"backend", cfg.Storage.Backend,
		"threshold", params.ThresholdPercent)
	return svc, nil
}

func (s *Service) initTelemetry(ctx context.Context) error {
	t := s.Config.Telemetry
	headers := telemetry.ParseHeaders(t.Headers)
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: s.Config.Logging.Service,
		Environment: s.Config.Logging.Env,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		Headers:     headers,
		Traces:      t.Traces,
		Metrics:     t.Metrics,
		SampleRatio: t.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("creditd: init telemetry: %w", err)
	}
	s.closers = append(s.closers, func() error { return shutdown(context.Background()) })
	if t.Traces || t.Metrics {
		args := []any{"endpoint", t.Endpoint}
		for _, attr := range logging.MaskHeaders(headers) {
			args = append(args, attr)
		}
		s.Logger.Info("telemetry exporters enabled", args...)
	}
	return nil
}

func (s *Service) openStorage() error {
	switch s.Config.Storage.Backend {
	case config.BackendLevelDB:
		db, err := storage.NewLevelDB(filepath.Join(s.Config.Storage.DataDir, "state"))
		if err != nil {
			return fmt.Errorf("creditd: open leveldb: %w", err)
		}
		s.DB = db
	default:
		s.DB = storage.NewMemDB()
	}
	db := s.DB
	s.closers = append(s.closers, func() error { db.Close(); return nil })
	s.State = state.New(s.DB)
	return nil
}

func (s *Service) openLedgers() error {
	tokens := s.Config.Tokens
	deployer := common.HexToAddress(tokens.Deployer)
	s.deployer = deployer

	var err error
	if s.Credit, err = token.New(s.State, tokens.CreditSymbol, 18, deployer); err != nil {
		return err
	}
	if s.AssetA, err = token.New(s.State, tokens.AssetASymbol, tokens.AssetADecimals, deployer); err != nil {
		return err
	}
	if s.AssetB, err = token.New(s.State, tokens.AssetBSymbol, tokens.AssetBDecimals, deployer); err != nil {
		return err
	}
	s.Bank = token.NewNativeBank(s.State)
	return nil
}

func (s *Service) resolveFeeds(override Feeds) (Feeds, error) {
	oracle := s.Config.Oracle
	manual := func(name, answer string) (pricing.Feed, error) {
		value, err := config.ParseAnswer(answer)
		if err != nil {
			return nil, fmt.Errorf("creditd: oracle %s: %w", name, err)
		}
		feed := pricing.NewManualFeed(oracle.Decimals, value)
		s.ManualFeeds[name] = feed
		return feed, nil
	}
	feeds := override
	var err error
	if feeds.Peg == nil {
		if feeds.Peg, err = manual("peg", oracle.PegAnswer); err != nil {
			return Feeds{}, err
		}
	}
	if feeds.AssetA == nil {
		if feeds.AssetA, err = manual("asset_a", oracle.AssetAAnswer); err != nil {
			return Feeds{}, err
		}
	}
	if feeds.AssetB == nil {
		if feeds.AssetB, err = manual("asset_b", oracle.AssetBAnswer); err != nil {
			return Feeds{}, err
		}
	}
	return feeds, nil
}

// handOverAuthority moves the credit mint authority from the deployer to the
// engine. It is a no-op once the engine already holds it.
func (s *Service) handOverAuthority(ctx context.Context) error {
	engine := s.Engine.Address()
	return s.Executor.Execute(ctx, "handover", func(context.Context) error {
		current, err := s.Credit.Authority()
		if err != nil {
			return err
		}
		switch current {
		case engine:
			return nil
		case s.deployer:
			return s.Credit.TransferAuthority(s.deployer, engine)
		default:
			return fmt.Errorf("creditd: credit authority held by %s", current.Hex())
		}
	})
}

// Deployer returns the address that minted the collateral ledgers.
func (s *Service) Deployer() common.Address { return s.deployer }

// Close releases every resource in reverse order of acquisition.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) DepositCollateral(ctx context.Context, sender, collateral common.Address, amount, payment *uint256.Int) error {
	return s.Executor.Execute(ctx, "deposit", func(ctx context.Context) error {
		return s.Engine.DepositCollateral(ctx, sender, collateral, amount, payment)
	})
}

func (s *Service) DepositCollateralAndMint(ctx context.Context, sender, collateral common.Address, amount, payment *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := s.Executor.Execute(ctx, "deposit_and_mint", func(ctx context.Context) error {
		var err error
		minted, err = s.Engine.DepositCollateralAndMint(ctx, sender, collateral, amount, payment)
		return err
	})
	return minted, err
}

func (s *Service) Mint(ctx context.Context, sender common.Address, amount *uint256.Int) error {
	return s.Executor.Execute(ctx, "mint", func(ctx context.Context) error {
		return s.Engine.Mint(ctx, sender, amount)
	})
}

func (s *Service) Burn(ctx context.Context, sender common.Address, amount *uint256.Int) error {
	return s.Executor.Execute(ctx, "burn", func(ctx context.Context) error {
		return s.Engine.Burn(ctx, sender, amount)
	})
}

func (s *Service) RedeemCollateral(ctx context.Context, sender, collateral common.Address, amount *uint256.Int) error {
	return s.Executor.Execute(ctx, "redeem", func(ctx context.Context) error {
		return s.Engine.RedeemCollateral(ctx, sender, collateral, amount)
	})
}

func (s *Service) RedeemCollateralForDebt(ctx context.Context, sender common.Address, amountDsc *uint256.Int, collateral common.Address) (*uint256.Int, error) {
	var released *uint256.Int
	err := s.Executor.Execute(ctx, "redeem_for_debt", func(ctx context.Context) error {
		var err error
		released, err = s.Engine.RedeemCollateralForDebt(ctx, sender, amountDsc, collateral)
		return err
	})
	return released, err
}

func (s *Service) Liquidate(ctx context.Context, liquidator, borrower common.Address, debtToCover *uint256.Int, collateral common.Address) (credit.LiquidationResult, error) {
	var result credit.LiquidationResult
	err := s.Executor.Execute(ctx, "liquidate", func(ctx context.Context) error {
		var err error
		result, err = s.Engine.Liquidate(ctx, liquidator, borrower, debtToCover, collateral)
		return err
	})
	return result, err
}

// Fund mints collateral tokens from the deployer faucet to account, or
// credits native currency when collateral is the native sentinel.
func (s *Service) Fund(ctx context.Context, account, collateral common.Address, amount *uint256.Int) error {
	return s.Executor.Execute(ctx, "fund", func(context.Context) error {
		switch collateral {
		case credit.NativeCollateral:
			return s.Bank.Credit(account, amount)
		case s.Engine.Params().AssetA:
			return s.AssetA.Mint(s.deployer, account, amount)
		case s.Engine.Params().AssetB:
			return s.AssetB.Mint(s.deployer, account, amount)
		default:
			return &credit.CollateralError{Address: collateral}
		}
	})
}

var _ io.Closer = (*Service)(nil)
