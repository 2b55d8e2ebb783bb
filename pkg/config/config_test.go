package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestVerifierParamsProjectsConsensusSection(t *testing.T) {
	var c Config
	c.Consensus.AllowedBlockFutureSeconds = 900
	c.Consensus.MaxBlockSizeBytes = 1 << 20
	c.Consensus.MinFee = 5
	c.Consensus.EnableAssetOwnershipAt = 100
	c.Consensus.EnforceSequentialTimeAt = 200
	c.Consensus.FishHashActivationSequence = 300
	c.Consensus.SpendRootStalenessBlocks = 64

	params := c.VerifierParams()

	if params.AllowedBlockFutureSeconds != 900 {
		t.Fatalf("AllowedBlockFutureSeconds = %d, want 900", params.AllowedBlockFutureSeconds)
	}
	if params.MinFee == nil || params.MinFee.Int64() != 5 {
		t.Fatalf("MinFee = %v, want 5", params.MinFee)
	}
	if params.EnableAssetOwnershipAt != 100 {
		t.Fatalf("EnableAssetOwnershipAt = %d, want 100", params.EnableAssetOwnershipAt)
	}
	if params.FishHashActivationSequence != 300 {
		t.Fatalf("FishHashActivationSequence = %d, want 300", params.FishHashActivationSequence)
	}
}

func TestSetDefaultsPopulatesNodeAndConsensusFloor(t *testing.T) {
	setDefaults()

	if v := viper.GetInt("node.fee_estimator_num_blocks"); v != 10 {
		t.Fatalf("fee_estimator_num_blocks default = %d, want 10", v)
	}
	if v := viper.GetInt("node.fee_estimator_num_tx_samples"); v != 3 {
		t.Fatalf("fee_estimator_num_tx_samples default = %d, want 3", v)
	}
	if v := viper.GetInt64("consensus.min_fee"); v != 1 {
		t.Fatalf("consensus.min_fee default = %d, want 1", v)
	}
}
