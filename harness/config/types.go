package config

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

// SiblingIndexMode selects how the keccak proof instruction locates the
// EVM call instruction it attests.
type SiblingIndexMode string

const (
	// SiblingIndexFixed pins the sibling to Batch.FixedSiblingSlot.
	SiblingIndexFixed SiblingIndexMode = "fixed"

	// SiblingIndexPositional derives the sibling from the call's position in the transaction.
	SiblingIndexPositional SiblingIndexMode = "positional"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Harness home directory (default: ~/.neonbench)

	// Ledger RPC
	RPCURLs               []string `json:"rpc_urls"`                // Solana JSON-RPC endpoints
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"` // Per-call timeout (default: 30)

	// Payer
	PayerKeyPath    string `json:"payer_key_path"`   // Solana keypair JSON (default: <home>/payer.json)
	AirdropLamports uint64 `json:"airdrop_lamports"` // Lamports requested at bootstrap, 0 disables airdrop

	Programs ProgramsConfig `json:"programs"`
	Ethereum EthereumConfig `json:"ethereum"`
	Batch    BatchConfig    `json:"batch"`
	Accounts AccountsConfig `json:"accounts"`
	Factory  FactoryConfig  `json:"factory"`
	Probe    ProbeConfig    `json:"probe"`

	// Amounts used by the mint and transfer phases
	TransferAmount uint64 `json:"transfer_amount"`
	MintAmount     string `json:"mint_amount"` // decimal, may exceed 64 bits

	// Observability and bookkeeping
	MetricsListenAddr string `json:"metrics_listen_addr"` // empty disables the /metrics endpoint
	DatabaseFile      string `json:"database_file"`       // SQLite file under <home>/databases
}

// ProgramsConfig holds the base58 addresses of the programs and sysvars the
// EVM loader instructions reference.
type ProgramsConfig struct {
	EvmLoader               string `json:"evm_loader"`
	KeccakSecp256k1         string `json:"keccak_secp256k1"`
	SysvarInstructions      string `json:"sysvar_instructions"`
	SysvarClock             string `json:"sysvar_clock"`
	SysvarRecentBlockhashes string `json:"sysvar_recent_blockhashes"`
	SysvarSlotHashes        string `json:"sysvar_slot_hashes"`
}

// EthereumConfig holds the fields used when signing Ethereum transactions.
type EthereumConfig struct {
	ChainID  uint64 `json:"chain_id"`
	GasLimit uint64 `json:"gas_limit"`
	GasPrice uint64 `json:"gas_price"`
	Value    uint64 `json:"value"`
}

// BatchConfig controls the submit/confirm pipeline.
type BatchConfig struct {
	BlockhashStalenessMillis  int              `json:"blockhash_staleness_ms"`   // default 5000
	SkipPreflight             bool             `json:"skip_preflight"`           // send without simulation
	SiblingIndexMode          SiblingIndexMode `json:"sibling_index_mode"`       // "fixed" or "positional"
	FixedSiblingSlot          uint8            `json:"fixed_sibling_slot"`       // default 1
	ConfirmTimeoutSeconds     int              `json:"confirm_timeout_seconds"`  // default 60
	ConfirmPollIntervalMillis int              `json:"confirm_poll_interval_ms"` // default 500
}

// AccountsConfig controls funding of accounts created by the harness.
type AccountsConfig struct {
	CodeAccountLamports  uint64 `json:"code_account_lamports"` // default 1_000_000_000
	CodeAccountSpace     uint64 `json:"code_account_space"`    // default 20000
	EtherAccountLamports uint64 `json:"ether_account_lamports"`
	EtherAccountSpace    uint64 `json:"ether_account_space"`
}

// FactoryConfig identifies the pre-deployed ERC20 factory contract.
type FactoryConfig struct {
	Storage string `json:"storage"` // base58 contract storage account
	Code    string `json:"code"`    // base58 contract code account
	Ether   string `json:"ether"`   // 0x-prefixed Ethereum address
}

// Block hash sources the probe contract can read.
const (
	ProbeSourceRecentBlockhashes = "recent_blockhashes"
	ProbeSourceSlotHashes        = "slot_hashes"
)

// ProbeConfig identifies the pre-deployed block hash test contract.
type ProbeConfig struct {
	Storage         string `json:"storage"`
	Code            string `json:"code"`
	Ether           string `json:"ether"`
	BlockhashSource string `json:"blockhash_source"` // "recent_blockhashes" or "slot_hashes"
	GasLimit        uint64 `json:"gas_limit"`
	GasPrice        uint64 `json:"gas_price"`
}

// BlockhashStaleness returns the freshness bound for recent blockhashes.
func (b BatchConfig) BlockhashStaleness() time.Duration {
	return time.Duration(b.BlockhashStalenessMillis) * time.Millisecond
}

// BlockhashStaleness returns the freshness bound for recent blockhashes.
func (c *Config) BlockhashStaleness() time.Duration {
	return c.Batch.BlockhashStaleness()
}

// RequestTimeout returns the per-call RPC timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ConfirmTimeout returns how long a single confirmation may block.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Batch.ConfirmTimeoutSeconds) * time.Second
}

// ConfirmPollInterval returns the signature-status polling interval.
func (c *Config) ConfirmPollInterval() time.Duration {
	return time.Duration(c.Batch.ConfirmPollIntervalMillis) * time.Millisecond
}

// MintAmountInt parses MintAmount.
func (c *Config) MintAmountInt() (*big.Int, bool) {
	v, err := uint256.FromDecimal(c.MintAmount)
	if err != nil {
		return nil, false
	}
	return v.ToBig(), true
}
