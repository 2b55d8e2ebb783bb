// Package config provides a reusable loader for node configuration files
// and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.2.0
package config

import (
	"fmt"
	"math/big"

	"github.com/spf13/viper"

	"ironfish/core/verifier"
	"ironfish/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified configuration for an ironfishd node. Consensus
// holds the network-wide parameters a verifier and engine need to agree
// on (§6); Node holds this process's local environment contract.
type Config struct {
	Consensus struct {
		AllowedBlockFutureSeconds  uint64 `mapstructure:"allowed_block_future_seconds" json:"allowed_block_future_seconds"`
		GenesisSupplyInIron        uint64 `mapstructure:"genesis_supply_in_iron" json:"genesis_supply_in_iron"`
		TargetBlockTimeInSeconds   uint64 `mapstructure:"target_block_time_in_seconds" json:"target_block_time_in_seconds"`
		TargetBucketTimeInSeconds  uint64 `mapstructure:"target_bucket_time_in_seconds" json:"target_bucket_time_in_seconds"`
		MaxBlockSizeBytes          uint64 `mapstructure:"max_block_size_bytes" json:"max_block_size_bytes"`
		MinFee                     int64  `mapstructure:"min_fee" json:"min_fee"`
		EnableAssetOwnershipAt     uint32 `mapstructure:"enable_asset_ownership_at" json:"enable_asset_ownership_at"`
		EnforceSequentialTimeAt    uint32 `mapstructure:"enforce_sequential_time_at" json:"enforce_sequential_time_at"`
		FishHashActivationSequence uint32 `mapstructure:"fish_hash_activation_sequence" json:"fish_hash_activation_sequence"`
		SpendRootStalenessBlocks   uint32 `mapstructure:"spend_root_staleness_blocks" json:"spend_root_staleness_blocks"`
	} `mapstructure:"consensus" json:"consensus"`

	Node struct {
		WalletDatabasePath       string `mapstructure:"wallet_database_path" json:"wallet_database_path"`
		ChainDatabasePath        string `mapstructure:"chain_database_path" json:"chain_database_path"`
		Confirmations            uint32 `mapstructure:"confirmations" json:"confirmations"`
		FeeEstimatorNumBlocks    int    `mapstructure:"fee_estimator_num_blocks" json:"fee_estimator_num_blocks"`
		FeeEstimatorNumTxSamples int    `mapstructure:"fee_estimator_num_tx_samples" json:"fee_estimator_num_tx_samples"`
	} `mapstructure:"node" json:"node"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("IRONFISH")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the IRONFISH_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("IRONFISH_ENV", ""))
}

func setDefaults() {
	viper.SetDefault("consensus.allowed_block_future_seconds", 15*60)
	viper.SetDefault("consensus.target_block_time_in_seconds", 60)
	viper.SetDefault("consensus.target_bucket_time_in_seconds", 10)
	viper.SetDefault("consensus.max_block_size_bytes", 2<<20)
	viper.SetDefault("consensus.min_fee", 1)
	viper.SetDefault("node.confirmations", 10)
	viper.SetDefault("node.fee_estimator_num_blocks", 10)
	viper.SetDefault("node.fee_estimator_num_tx_samples", 3)
	viper.SetDefault("node.chain_database_path", "./data/chain")
	viper.SetDefault("node.wallet_database_path", "./data/wallet")
	viper.SetDefault("logging.level", "info")
}

// VerifierParams projects the consensus section of c into the
// verifier.Params shape the context-free and contextual checks consume.
func (c *Config) VerifierParams() verifier.Params {
	return verifier.Params{
		AllowedBlockFutureSeconds:  c.Consensus.AllowedBlockFutureSeconds,
		MaxBlockSizeBytes:          c.Consensus.MaxBlockSizeBytes,
		MinFee:                     big.NewInt(c.Consensus.MinFee),
		EnableAssetOwnershipAt:     c.Consensus.EnableAssetOwnershipAt,
		EnforceSequentialTimeAt:    c.Consensus.EnforceSequentialTimeAt,
		FishHashActivationSequence: c.Consensus.FishHashActivationSequence,
		SpendRootStalenessBlocks:   c.Consensus.SpendRootStalenessBlocks,
	}
}
