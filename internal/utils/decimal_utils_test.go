package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseUnitsToDecimal(t *testing.T) {
	assert.Equal(t, "1", BaseUnitsToDecimal(big.NewInt(1_000_000), 6).String())
	assert.Equal(t, "0.000001", BaseUnitsToDecimal(big.NewInt(1), 6).String())
	assert.Equal(t, "0", BaseUnitsToDecimal(big.NewInt(0), 18).String())
}

func TestRawAmountToDecimal(t *testing.T) {
	assert.Equal(t, "2.5", RawAmountToDecimal("2500000", 6).String())
	assert.Equal(t, "0", RawAmountToDecimal("not-a-number", 6).String())
}
