package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ironfish/core/blockchain"
	"ironfish/core/chain"
	"ironfish/core/chainprocessor"
	"ironfish/core/kv"
	"ironfish/core/mempool"
	"ironfish/core/syncer"
	"ironfish/core/verifier"
	"ironfish/pkg/config"
)

// node bundles the wired core components a running ironfishd process
// needs. It is built once per process, the way cmd/cli's connPool is a
// package-level singleton guarded by sync.Once.
type node struct {
	db        *kv.Database
	verifier  *verifier.Verifier
	engine    *blockchain.Engine
	mempool   *mempool.Pool
	syncer    *syncer.Syncer
	processor *chainprocessor.Processor
	logger    *logrus.Logger
}

var (
	activeNode *node
	nodeOnce   sync.Once
	nodeErr    error
)

// rejectingProofVerifier rejects every proof. Spend/output proof
// verification belongs to the zero-knowledge layer, an external
// collaborator per §1 non-goals; this wiring exists only so the
// engine always has a verifier.ProofVerifier to call, not to implement
// proof checking itself.
type rejectingProofVerifier struct{}

func (rejectingProofVerifier) VerifySpendProof(chain.Spend) bool   { return false }
func (rejectingProofVerifier) VerifyOutputProof(chain.Output) bool { return false }

func nodeInit(cmd *cobra.Command, _ []string) error {
	nodeOnce.Do(func() {
		activeNode, nodeErr = newNode()
	})
	return nodeErr
}

func newNode() (*node, error) {
	logger := logrus.New()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Warn("no config file found, using defaults")
		if uerr := viper.Unmarshal(&config.AppConfig); uerr != nil {
			return nil, fmt.Errorf("apply default config: %w", uerr)
		}
		cfg = &config.AppConfig
	}

	db, err := kv.Open(kv.Options{Path: cfg.Node.ChainDatabasePath, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open chain database: %w", err)
	}

	runner := kv.NewRunner(kv.DBKindBlockchain, logger, kv.AllMigrations()...)
	if err := runner.Run(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrate chain database: %w", err)
	}

	params := cfg.VerifierParams()
	v := verifier.New(params)

	engine := blockchain.New(blockchain.Options{
		DB:            db,
		Verifier:      v,
		ProofVerifier: rejectingProofVerifier{},
		Logger:        logger,
	})

	pool := mempool.New(mempool.Options{
		Verifier:     v,
		ChainView:    engine,
		FeeEstimator: mempool.NewFeeEstimator(cfg.Node.FeeEstimatorNumBlocks, cfg.Node.FeeEstimatorNumTxSamples, params.MinFee),
		Logger:       logger,
	})
	engine.Subscribe(pool)

	proc := chainprocessor.New(engine, chainprocessor.Options{Logger: logger})
	engine.Subscribe(proc)

	registry := &noopPeerRegistry{}
	transport := &loggingTransport{logger: logger}
	s := syncer.New(engine, registry, transport, syncer.Options{Logger: logger})

	return &node{
		db:        db,
		verifier:  v,
		engine:    engine,
		mempool:   pool,
		syncer:    s,
		processor: proc,
		logger:    logger,
	}, nil
}
