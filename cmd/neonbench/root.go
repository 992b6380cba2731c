package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/constant"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

const keyHome = "home"

// flagBindings maps persistent flags to the config keys they override.
var flagBindings = []struct {
	flag string
	key  string
}{
	{"log-level", config.KeyLogLevel},
	{"log-format", config.KeyLogFormat},
	{"rpc-urls", config.KeyRPCURLs},
	{"payer", config.KeyPayerKeyPath},
	{"chain-id", config.KeyChainID},
	{"skip-preflight", config.KeySkipPreflight},
	{"sibling-index-mode", config.KeySiblingIndexMode},
	{"fixed-sibling-slot", config.KeyFixedSiblingSlot},
	{"metrics-listen", config.KeyMetricsListen},
	{"evm-loader", config.KeyEvmLoader},
	{"blockhash-staleness-ms", config.KeyStalenessMillis},
}

func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "neonbench",
		Short:         "ERC20 load generator for the EVM loader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyHome, constant.DefaultNodeHome, "harness home directory")
	flags.Int("log-level", 1, "log level (0=debug .. 5=panic)")
	flags.String("log-format", "console", "log format: json or console")
	flags.String("rpc-urls", "", "whitespace separated ledger RPC endpoints")
	flags.String("payer", "", "payer keypair file")
	flags.Uint64("chain-id", 0, "Ethereum chain id")
	flags.Bool("skip-preflight", false, "skip preflight simulation on send")
	flags.String("sibling-index-mode", "", "keccak sibling index mode: fixed or positional")
	flags.Uint8("fixed-sibling-slot", 1, "sibling slot used in fixed mode")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address")
	flags.String("evm-loader", "", "EVM loader program id")
	flags.Int("blockhash-staleness-ms", 0, "refetch the blockhash once it is this old")

	_ = v.BindPFlag(keyHome, flags.Lookup(keyHome))
	for _, b := range flagBindings {
		_ = v.BindPFlag(b.key, flags.Lookup(b.flag))
	}

	InitRootCmd(rootCmd, v) // add the phase subcommands

	return rootCmd
}

// loadConfig reads <home>/config, then applies flag and environment
// overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	home := v.GetString(keyHome)
	if home == "" {
		home = constant.DefaultNodeHome
	}
	cfg, err := config.LoadOrDefault(home)
	if err != nil {
		return nil, harnesserrors.Wrap(err, "failed to load config")
	}
	cfg.NodeHome = home
	if err := config.ApplyOverrides(cfg, v); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
