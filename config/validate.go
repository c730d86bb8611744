package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"eurocredit/native/credit"
)

const (
	defaultThreshold = 150
	defaultBonus     = 10
	defaultPrecision = 100
)

func (cfg *Config) normalize() {
	e := &cfg.Engine
	e.Address = strings.TrimSpace(e.Address)
	e.AssetA = strings.TrimSpace(e.AssetA)
	e.AssetB = strings.TrimSpace(e.AssetB)
	if e.ThresholdPercent == 0 {
		e.ThresholdPercent = defaultThreshold
	}
	if e.LiquidationPrecision == 0 {
		e.LiquidationPrecision = defaultPrecision
		if e.LiquidationBonus == 0 {
			e.LiquidationBonus = defaultBonus
		}
	}

	cfg.Tokens.Deployer = strings.TrimSpace(cfg.Tokens.Deployer)
	cfg.Tokens.CreditSymbol = strings.ToUpper(strings.TrimSpace(cfg.Tokens.CreditSymbol))
	cfg.Tokens.AssetASymbol = strings.ToUpper(strings.TrimSpace(cfg.Tokens.AssetASymbol))
	cfg.Tokens.AssetBSymbol = strings.ToUpper(strings.TrimSpace(cfg.Tokens.AssetBSymbol))

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	cfg.Storage.DataDir = strings.TrimSpace(cfg.Storage.DataDir)
	cfg.Archive.Path = strings.TrimSpace(cfg.Archive.Path)
	cfg.HTTP.ListenAddress = strings.TrimSpace(cfg.HTTP.ListenAddress)

	if strings.TrimSpace(cfg.Logging.Service) == "" {
		cfg.Logging.Service = "credit-engine"
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if _, err := cfg.Engine.Params(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := parseAddress("deployer", cfg.Tokens.Deployer); err != nil {
		return fmt.Errorf("tokens: %w", err)
	}
	for field, symbol := range map[string]string{
		"credit_symbol":  cfg.Tokens.CreditSymbol,
		"asset_a_symbol": cfg.Tokens.AssetASymbol,
		"asset_b_symbol": cfg.Tokens.AssetBSymbol,
	} {
		if symbol == "" {
			return fmt.Errorf("tokens: %s required", field)
		}
	}
	if cfg.Tokens.AssetADecimals > 36 || cfg.Tokens.AssetBDecimals > 36 {
		return fmt.Errorf("tokens: decimals must not exceed 36")
	}
	for field, answer := range map[string]string{
		"peg_answer":     cfg.Oracle.PegAnswer,
		"asset_a_answer": cfg.Oracle.AssetAAnswer,
		"asset_b_answer": cfg.Oracle.AssetBAnswer,
	} {
		if _, err := ParseAnswer(answer); err != nil {
			return fmt.Errorf("oracle: %s: %w", field, err)
		}
	}
	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if cfg.Storage.DataDir == "" {
			return fmt.Errorf("storage: data_dir required for leveldb backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	if cfg.HTTP.RequestsPerMinute < 0 || cfg.HTTP.Burst < 0 {
		return fmt.Errorf("http: rate limits must not be negative")
	}
	return nil
}

// Params converts the section into engine parameters.
func (e Engine) Params() (credit.Params, error) {
	addr, err := parseAddress("address", e.Address)
	if err != nil {
		return credit.Params{}, err
	}
	assetA, err := parseAddress("asset_a", e.AssetA)
	if err != nil {
		return credit.Params{}, err
	}
	assetB, err := parseAddress("asset_b", e.AssetB)
	if err != nil {
		return credit.Params{}, err
	}
	switch {
	case assetA == assetB:
		return credit.Params{}, fmt.Errorf("asset_a and asset_b must differ")
	case addr == assetA || addr == assetB:
		return credit.Params{}, fmt.Errorf("engine address must not be a collateral asset")
	case e.ThresholdPercent < 100:
		return credit.Params{}, fmt.Errorf("threshold_percent must be at least 100")
	case e.LiquidationPrecision == 0:
		return credit.Params{}, fmt.Errorf("liquidation_precision must be positive")
	case e.LiquidationBonus >= e.LiquidationPrecision:
		return credit.Params{}, fmt.Errorf("liquidation_bonus must be below liquidation_precision")
	}
	return credit.Params{
		Address:              addr,
		AssetA:               assetA,
		AssetB:               assetB,
		ThresholdPercent:     e.ThresholdPercent,
		LiquidationBonus:     e.LiquidationBonus,
		LiquidationPrecision: e.LiquidationPrecision,
	}, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid hex address %q", field, value)
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: zero address not allowed", field)
	}
	return addr, nil
}

// ParseAnswer parses a positive integer oracle answer.
func ParseAnswer(value string) (*big.Int, error) {
	answer, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("answer must be positive")
	}
	return answer, nil
}
