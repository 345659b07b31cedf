package config

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoundTable(t *testing.T) {
	cfg := Load()

	require.Len(t, cfg.Presale.Rounds, 5)

	sum := big.NewInt(0)
	for i, rc := range cfg.Presale.Rounds {
		price, ok := new(big.Int).SetString(rc.Price, 10)
		require.True(t, ok, "round %d price", i)
		assert.True(t, price.Sign() > 0, "round %d price must be positive", i)

		target, ok := new(big.Int).SetString(rc.Target, 10)
		require.True(t, ok, "round %d target", i)
		assert.True(t, target.Sign() > 0, "round %d target must be positive", i)
		sum.Add(sum, target)

		assert.True(t, rc.BonusPercent >= 0 && rc.BonusPercent <= 100)
		assert.True(t, rc.TGEUnlockPercent >= 0 && rc.TGEUnlockPercent <= 100)
	}

	hardCap, ok := new(big.Int).SetString(cfg.Presale.HardCap, 10)
	require.True(t, ok)
	assert.Equal(t, hardCap.String(), sum.String(), "round targets must sum to the hard cap")
}
