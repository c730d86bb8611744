package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the credit engine process.
type Config struct {
	Engine    Engine    `toml:"engine" yaml:"engine"`
	Tokens    Tokens    `toml:"tokens" yaml:"tokens"`
	Oracle    Oracle    `toml:"oracle" yaml:"oracle"`
	Storage   Storage   `toml:"storage" yaml:"storage"`
	Archive   Archive   `toml:"archive" yaml:"archive"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
	HTTP      HTTP      `toml:"http" yaml:"http"`
}

// Engine carries the engine identity and risk parameters. Addresses are hex
// encoded.
type Engine struct {
	Address              string `toml:"Address" yaml:"address"`
	AssetA               string `toml:"AssetA" yaml:"asset_a"`
	AssetB               string `toml:"AssetB" yaml:"asset_b"`
	ThresholdPercent     uint64 `toml:"ThresholdPercent" yaml:"threshold_percent"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus" yaml:"liquidation_bonus"`
	LiquidationPrecision uint64 `toml:"LiquidationPrecision" yaml:"liquidation_precision"`
}

// Tokens describes the state-backed token ledgers. Deployer is the initial
// credit mint authority, handed to the engine at startup.
type Tokens struct {
	Deployer       string `toml:"Deployer" yaml:"deployer"`
	CreditSymbol   string `toml:"CreditSymbol" yaml:"credit_symbol"`
	AssetASymbol   string `toml:"AssetASymbol" yaml:"asset_a_symbol"`
	AssetADecimals uint8  `toml:"AssetADecimals" yaml:"asset_a_decimals"`
	AssetBSymbol   string `toml:"AssetBSymbol" yaml:"asset_b_symbol"`
	AssetBDecimals uint8  `toml:"AssetBDecimals" yaml:"asset_b_decimals"`
}

// Oracle seeds the manual price feeds used when no external feed is wired.
// Answers are decimal strings with Decimals fractional digits.
type Oracle struct {
	Decimals     uint8  `toml:"Decimals" yaml:"decimals"`
	PegAnswer    string `toml:"PegAnswer" yaml:"peg_answer"`
	AssetAAnswer string `toml:"AssetAAnswer" yaml:"asset_a_answer"`
	AssetBAnswer string `toml:"AssetBAnswer" yaml:"asset_b_answer"`
}

// Storage selects the state backend.
type Storage struct {
	Backend string `toml:"Backend" yaml:"backend"`
	DataDir string `toml:"DataDir" yaml:"data_dir"`
}

// Archive configures the SQLite event archive. An empty path disables it.
type Archive struct {
	Path string `toml:"Path" yaml:"path"`
}

type Logging struct {
	Service string `toml:"Service" yaml:"service"`
	Env     string `toml:"Env" yaml:"env"`
	Level   string `toml:"Level" yaml:"level"`
	File    string `toml:"File" yaml:"file"`
}

type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// HTTP configures the read-only query listener of creditd.
type HTTP struct {
	ListenAddress string `toml:"ListenAddress" yaml:"listen_address"`
	// RequestsPerMinute caps each client; zero disables the limiter.
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
)

// Load reads the configuration at path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as TOML. A missing TOML file is created with
// the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	cfg := Default()
	if isYAML(path) {
		if err := decodeYAML(path, cfg); err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return createDefault(path)
		}
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
		}
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decodeYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Default returns the local development configuration: in-memory state and the
// reference prices of 1.16 USD per EUR, 3000 USD for asset A and 60000 USD for
// asset B.
func Default() *Config {
	return &Config{
		Engine: Engine{
			Address:              "0x00000000000000000000000000000000000ec0de",
			AssetA:               "0x000000000000000000000000000000000000a11a",
			AssetB:               "0x000000000000000000000000000000000000b22b",
			ThresholdPercent:     defaultThreshold,
			LiquidationBonus:     defaultBonus,
			LiquidationPrecision: defaultPrecision,
		},
		Tokens: Tokens{
			Deployer:       "0x00000000000000000000000000000000000d3910",
			CreditSymbol:   "DEUR",
			AssetASymbol:   "WETH",
			AssetADecimals: 18,
			AssetBSymbol:   "WBTC",
			AssetBDecimals: 8,
		},
		Oracle: Oracle{
			Decimals:     8,
			PegAnswer:    "116000000",
			AssetAAnswer: "300000000000",
			AssetBAnswer: "6000000000000",
		},
		Storage: Storage{Backend: BackendMemory},
		Logging: Logging{Service: "credit-engine", Level: "info"},
		HTTP:    HTTP{ListenAddress: "127.0.0.1:8088", RequestsPerMinute: 600, Burst: 60},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}
