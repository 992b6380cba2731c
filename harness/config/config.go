package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/apetrovskiy/neon-evm/harness/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = constant.DefaultNodeHome
	}
	if cfg.PayerKeyPath == "" {
		cfg.PayerKeyPath = filepath.Join(cfg.NodeHome, constant.PayerKeyFileName)
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = constant.RunsDBFileName
	}

	if len(cfg.RPCURLs) == 0 {
		cfg.RPCURLs = []string{"http://localhost:8899"}
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 30
	}

	// Programs fall back to the embedded defaults field by field
	var defaults Config
	if err := json.Unmarshal(defaultConfigJSON, &defaults); err != nil {
		return fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	fillString(&cfg.Programs.EvmLoader, defaults.Programs.EvmLoader)
	fillString(&cfg.Programs.KeccakSecp256k1, defaults.Programs.KeccakSecp256k1)
	fillString(&cfg.Programs.SysvarInstructions, defaults.Programs.SysvarInstructions)
	fillString(&cfg.Programs.SysvarClock, defaults.Programs.SysvarClock)
	fillString(&cfg.Programs.SysvarRecentBlockhashes, defaults.Programs.SysvarRecentBlockhashes)
	fillString(&cfg.Programs.SysvarSlotHashes, defaults.Programs.SysvarSlotHashes)

	if cfg.Ethereum.ChainID == 0 {
		cfg.Ethereum.ChainID = defaults.Ethereum.ChainID
	}
	if cfg.Ethereum.GasLimit == 0 {
		cfg.Ethereum.GasLimit = defaults.Ethereum.GasLimit
	}
	if cfg.Ethereum.GasPrice == 0 {
		cfg.Ethereum.GasPrice = defaults.Ethereum.GasPrice
	}

	if cfg.Batch.BlockhashStalenessMillis == 0 {
		cfg.Batch.BlockhashStalenessMillis = 5000
	}
	if cfg.Batch.BlockhashStalenessMillis < 0 {
		return fmt.Errorf("blockhash staleness must be positive")
	}
	if cfg.Batch.SiblingIndexMode == "" {
		cfg.Batch.SiblingIndexMode = SiblingIndexFixed
	}
	if cfg.Batch.SiblingIndexMode != SiblingIndexFixed && cfg.Batch.SiblingIndexMode != SiblingIndexPositional {
		return fmt.Errorf("sibling index mode must be 'fixed' or 'positional'")
	}
	if cfg.Batch.SiblingIndexMode == SiblingIndexFixed && cfg.Batch.FixedSiblingSlot == 0 {
		cfg.Batch.FixedSiblingSlot = 1
	}
	if cfg.Batch.ConfirmTimeoutSeconds == 0 {
		cfg.Batch.ConfirmTimeoutSeconds = 60
	}
	if cfg.Batch.ConfirmPollIntervalMillis == 0 {
		cfg.Batch.ConfirmPollIntervalMillis = 500
	}

	if cfg.Accounts.CodeAccountLamports == 0 {
		cfg.Accounts.CodeAccountLamports = defaults.Accounts.CodeAccountLamports
	}
	if cfg.Accounts.CodeAccountSpace == 0 {
		cfg.Accounts.CodeAccountSpace = defaults.Accounts.CodeAccountSpace
	}
	if cfg.Accounts.EtherAccountLamports == 0 {
		cfg.Accounts.EtherAccountLamports = defaults.Accounts.EtherAccountLamports
	}

	if cfg.TransferAmount == 0 {
		cfg.TransferAmount = 1
	}
	if cfg.MintAmount == "" {
		cfg.MintAmount = defaults.MintAmount
	}
	if _, err := uint256.FromDecimal(cfg.MintAmount); err != nil {
		return fmt.Errorf("mint amount must be a non-negative decimal integer below 2^256: %w", err)
	}

	if cfg.Probe.GasLimit == 0 {
		cfg.Probe.GasLimit = defaults.Probe.GasLimit
	}
	if cfg.Probe.GasPrice == 0 {
		cfg.Probe.GasPrice = defaults.Probe.GasPrice
	}
	if cfg.Probe.BlockhashSource == "" {
		cfg.Probe.BlockhashSource = ProbeSourceRecentBlockhashes
	}
	if cfg.Probe.BlockhashSource != ProbeSourceRecentBlockhashes && cfg.Probe.BlockhashSource != ProbeSourceSlotHashes {
		return fmt.Errorf("probe blockhash source must be '%s' or '%s'", ProbeSourceRecentBlockhashes, ProbeSourceSlotHashes)
	}

	return nil
}

func fillString(dst *string, fallback string) {
	if *dst == "" {
		*dst = fallback
	}
}

// Validate applies defaults and checks the config.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <NodeHome>/config/neonbench_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <basePath>/config/neonbench_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault returns the config stored under basePath, or the embedded
// defaults when no config file exists yet.
func LoadOrDefault(basePath string) (*Config, error) {
	cfg, err := Load(basePath)
	if err == nil {
		if cfg.NodeHome == "" {
			cfg.NodeHome = basePath
		}
		return &cfg, nil
	}
	if _, statErr := os.Stat(filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)); statErr == nil {
		return nil, err
	}

	def, err := LoadDefaultConfig()
	if err != nil {
		return nil, err
	}
	def.NodeHome = basePath
	return def, nil
}

// Override keys recognised by ApplyOverrides. Each may come from a bound
// flag or from a NEONBENCH_<KEY> environment variable.
const (
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyRPCURLs          = "rpc_urls"
	KeyPayerKeyPath     = "payer_key_path"
	KeyChainID          = "chain_id"
	KeySkipPreflight    = "skip_preflight"
	KeySiblingIndexMode = "sibling_index_mode"
	KeyFixedSiblingSlot = "fixed_sibling_slot"
	KeyMetricsListen    = "metrics_listen_addr"
	KeyEvmLoader        = "evm_loader"
	KeyStalenessMillis  = "blockhash_staleness_ms"
	KeyProbeSource      = "probe_blockhash_source"
)

// ApplyOverrides copies values explicitly set in v over cfg. Unset keys leave
// cfg untouched so file values win over viper defaults.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	if v == nil {
		return nil
	}

	var err error
	if v.IsSet(KeyLogLevel) {
		if cfg.LogLevel, err = cast.ToIntE(v.Get(KeyLogLevel)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
		}
	}
	if v.IsSet(KeyLogFormat) {
		cfg.LogFormat = cast.ToString(v.Get(KeyLogFormat))
	}
	if v.IsSet(KeyRPCURLs) {
		urls, err := cast.ToStringSliceE(v.Get(KeyRPCURLs))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", KeyRPCURLs, err)
		}
		if len(urls) > 0 {
			cfg.RPCURLs = urls
		}
	}
	if v.IsSet(KeyPayerKeyPath) {
		cfg.PayerKeyPath = cast.ToString(v.Get(KeyPayerKeyPath))
	}
	if v.IsSet(KeyChainID) {
		if cfg.Ethereum.ChainID, err = cast.ToUint64E(v.Get(KeyChainID)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeyChainID, err)
		}
	}
	if v.IsSet(KeySkipPreflight) {
		if cfg.Batch.SkipPreflight, err = cast.ToBoolE(v.Get(KeySkipPreflight)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeySkipPreflight, err)
		}
	}
	if v.IsSet(KeySiblingIndexMode) {
		cfg.Batch.SiblingIndexMode = SiblingIndexMode(cast.ToString(v.Get(KeySiblingIndexMode)))
	}
	if v.IsSet(KeyFixedSiblingSlot) {
		if cfg.Batch.FixedSiblingSlot, err = cast.ToUint8E(v.Get(KeyFixedSiblingSlot)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeyFixedSiblingSlot, err)
		}
	}
	if v.IsSet(KeyMetricsListen) {
		cfg.MetricsListenAddr = cast.ToString(v.Get(KeyMetricsListen))
	}
	if v.IsSet(KeyEvmLoader) {
		cfg.Programs.EvmLoader = cast.ToString(v.Get(KeyEvmLoader))
	}
	if v.IsSet(KeyProbeSource) {
		cfg.Probe.BlockhashSource = cast.ToString(v.Get(KeyProbeSource))
	}
	if v.IsSet(KeyStalenessMillis) {
		if cfg.Batch.BlockhashStalenessMillis, err = cast.ToIntE(v.Get(KeyStalenessMillis)); err != nil {
			return fmt.Errorf("invalid %s: %w", KeyStalenessMillis, err)
		}
	}
	return nil
}
