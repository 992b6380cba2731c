package main

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apetrovskiy/neon-evm/harness/chains/svm"
	"github.com/apetrovskiy/neon-evm/harness/config"
	"github.com/apetrovskiy/neon-evm/harness/constant"
	"github.com/apetrovskiy/neon-evm/harness/db"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
	"github.com/apetrovskiy/neon-evm/harness/logger"
	"github.com/apetrovskiy/neon-evm/harness/metrics"
	"github.com/apetrovskiy/neon-evm/harness/pipeline"
	"github.com/apetrovskiy/neon-evm/harness/state"
)

// session owns everything a phase command opens and must close.
type session struct {
	env     *pipeline.Env
	caller  pipeline.Caller
	rpc     *svm.RPCClient
	metrics *metrics.Server
}

func (s *session) Close() error {
	eg := harnesserrors.NewErrorGroup()
	if s.metrics != nil {
		eg.Add(harnesserrors.Wrap(s.metrics.Shutdown(), "failed to stop metrics server"))
	}
	if s.env.DB != nil {
		eg.Add(harnesserrors.Wrap(s.env.DB.Close(), "failed to close database"))
	}
	if s.rpc != nil {
		s.rpc.Close()
	}
	return eg.ErrOrNil()
}

func openDB(cfg *config.Config) (*db.DB, error) {
	return db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DatabasesSubdir), cfg.DatabaseFile, true)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
}

// openSession wires the ledger client, state store, run database and
// metrics for one phase. With bootstrap set it also funds the payer and
// creates the caller account.
func openSession(ctx context.Context, cmd *cobra.Command, v *viper.Viper, bootstrap bool) (*session, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	programs, err := svm.ParsePrograms(cfg.Programs)
	if err != nil {
		return nil, err
	}
	payer, err := pipeline.LoadOrCreatePayer(cfg.PayerKeyPath, log)
	if err != nil {
		return nil, err
	}

	s := &session{env: &pipeline.Env{
		Config:   cfg,
		Programs: programs,
		Payer:    payer,
		State:    state.NewStore(cfg.NodeHome),
		Metrics:  metrics.New(),
		Out:      cmd.OutOrStdout(),
		Logger:   log,
	}}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	rpcClient, err := svm.NewRPCClient(connectCtx, cfg.RPCURLs, log)
	cancel()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.rpc = rpcClient.
		WithConfirmation(cfg.ConfirmPollInterval(), cfg.ConfirmTimeout()).
		WithLogProgram(programs.EvmLoader)
	s.env.Client = s.rpc

	if s.env.DB, err = openDB(cfg); err != nil {
		_ = s.Close()
		return nil, err
	}
	if cfg.MetricsListenAddr != "" {
		if s.metrics, err = metrics.Start(ctx, cfg.MetricsListenAddr, s.env.Metrics, log); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	if bootstrap {
		if s.caller, err = pipeline.Bootstrap(ctx, s.env); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}
