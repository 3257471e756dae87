package swapmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// priceOne is a 1:1 sqrt price (2^96).
	priceOne = new(big.Int).Lsh(big.NewInt(1), 96)
	// deepLiquidity is large enough that small swaps barely move the price.
	deepLiquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil)
)

// Helper to create a random big.Int up to a given bit length.
func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

func TestComputeSwapStepValidation(t *testing.T) {
	target := new(big.Int).Rsh(priceOne, 1)

	t.Run("zero liquidity", func(t *testing.T) {
		_, err := ComputeSwapStep(priceOne, target, big.NewInt(0), big.NewInt(1000), 3000, true)
		assert.ErrorIs(t, err, ErrZeroLiquidity)
	})

	t.Run("fee at denominator", func(t *testing.T) {
		_, err := ComputeSwapStep(priceOne, target, deepLiquidity, big.NewInt(1000), feeDenominator, true)
		assert.ErrorIs(t, err, ErrInvalidFee)
	})

	t.Run("zero fee is valid", func(t *testing.T) {
		_, err := ComputeSwapStep(priceOne, target, deepLiquidity, big.NewInt(1000), 0, true)
		assert.NoError(t, err)
	})
}

func TestComputeSwapStepExactIn(t *testing.T) {
	t.Run("moves price down for zeroForOne", func(t *testing.T) {
		target := new(big.Int).Rsh(priceOne, 1)
		liquidity := big.NewInt(1_000_000_000)
		amountIn := big.NewInt(1_000_000)

		step, err := ComputeSwapStep(priceOne, target, liquidity, amountIn, 3000, true)
		require.NoError(t, err)

		assert.Negative(t, step.SqrtPriceNextX96.Cmp(priceOne))
		assert.GreaterOrEqual(t, step.SqrtPriceNextX96.Cmp(target), 0)
		assert.Zero(t, step.AmountIn.Cmp(amountIn))
		assert.Positive(t, step.AmountOut.Sign())
	})

	t.Run("moves price up for oneForZero", func(t *testing.T) {
		target := new(big.Int).Lsh(priceOne, 1)
		liquidity := big.NewInt(1_000_000_000)

		step, err := ComputeSwapStep(priceOne, target, liquidity, big.NewInt(1_000_000), 3000, false)
		require.NoError(t, err)

		assert.Positive(t, step.SqrtPriceNextX96.Cmp(priceOne))
		assert.LessOrEqual(t, step.SqrtPriceNextX96.Cmp(target), 0)
	})

	t.Run("output follows the fee-adjusted delta", func(t *testing.T) {
		liquidity := big.NewInt(1_000_000_000)
		amountIn := big.NewInt(1_000_000)
		feePips := uint64(3000)
		target := new(big.Int).Rsh(priceOne, 1)

		step, err := ComputeSwapStep(priceOne, target, liquidity, amountIn, feePips, true)
		require.NoError(t, err)

		afterFee := new(big.Int).Mul(amountIn, big.NewInt(feeDenominator-int64(feePips)))
		afterFee.Div(afterFee, feeDenominatorBig)
		delta := new(big.Int).Mul(afterFee, priceOne)
		delta.Div(delta, liquidity)

		expectedNext := new(big.Int).Sub(priceOne, delta)
		assert.Zero(t, step.SqrtPriceNextX96.Cmp(expectedNext))

		expectedOut := new(big.Int).Mul(liquidity, delta)
		expectedOut.Div(expectedOut, priceOne)
		assert.Zero(t, step.AmountOut.Cmp(expectedOut))
	})

	t.Run("clamps at target and charges only the used input", func(t *testing.T) {
		// Target is one price unit away; almost none of the input is needed.
		target := new(big.Int).Sub(priceOne, big.NewInt(1))
		liquidity := big.NewInt(1_000_000_000)
		amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

		step, err := ComputeSwapStep(priceOne, target, liquidity, amountIn, 3000, true)
		require.NoError(t, err)

		assert.Zero(t, step.SqrtPriceNextX96.Cmp(target))
		assert.Negative(t, step.AmountIn.Cmp(amountIn))
	})

	t.Run("dust input gets the flat spread quote", func(t *testing.T) {
		target := new(big.Int).Rsh(priceOne, 1)
		amountIn := big.NewInt(100)
		// Deep enough that a 99-unit after-fee input moves the price by
		// less than one unit.
		liquidity := new(big.Int).Lsh(big.NewInt(1), 130)

		step, err := ComputeSwapStep(priceOne, target, liquidity, amountIn, 3000, true)
		require.NoError(t, err)

		// Price movement quantizes to zero against deep liquidity.
		assert.Zero(t, step.SqrtPriceNextX96.Cmp(priceOne))

		afterFee := new(big.Int).Mul(amountIn, big.NewInt(feeDenominator-3000))
		afterFee.Div(afterFee, feeDenominatorBig)
		expected := new(big.Int).Mul(afterFee, big.NewInt(98))
		expected.Div(expected, big.NewInt(100))
		assert.Zero(t, step.AmountOut.Cmp(expected))
	})

	t.Run("clamped step never takes the spread quote", func(t *testing.T) {
		// Target three price units away: the realized movement quantizes
		// to zero output, and the charge must follow that movement rather
		// than the full input.
		target := new(big.Int).Sub(priceOne, big.NewInt(3))
		liquidity := big.NewInt(1_000_000_000)
		amountIn := big.NewInt(1_000_000)

		step, err := ComputeSwapStep(priceOne, target, liquidity, amountIn, 3000, true)
		require.NoError(t, err)

		assert.Zero(t, step.SqrtPriceNextX96.Cmp(target))
		assert.Zero(t, step.AmountOut.Sign())
		assert.Zero(t, step.AmountIn.Cmp(big.NewInt(2)))
	})

	t.Run("target at current price is a no-op", func(t *testing.T) {
		liquidity := big.NewInt(1_000_000_000)

		step, err := ComputeSwapStep(priceOne, priceOne, liquidity, big.NewInt(1_000_000), 3000, true)
		require.NoError(t, err)

		assert.Zero(t, step.SqrtPriceNextX96.Cmp(priceOne))
		assert.Zero(t, step.AmountIn.Sign())
		assert.Zero(t, step.AmountOut.Sign())
	})

	t.Run("zero input yields zero amounts", func(t *testing.T) {
		target := new(big.Int).Rsh(priceOne, 1)
		step, err := ComputeSwapStep(priceOne, target, deepLiquidity, big.NewInt(0), 3000, true)
		require.NoError(t, err)
		assert.Zero(t, step.AmountIn.Sign())
		assert.Zero(t, step.AmountOut.Sign())
		assert.Zero(t, step.SqrtPriceNextX96.Cmp(priceOne))
	})
}

func TestComputeSwapStepExactOut(t *testing.T) {
	t.Run("delivers the requested output", func(t *testing.T) {
		target := new(big.Int).Rsh(priceOne, 1)
		liquidity := big.NewInt(1_000_000_000)
		wanted := big.NewInt(1_000_000)

		step, err := ComputeSwapStep(priceOne, target, liquidity, new(big.Int).Neg(wanted), 3000, true)
		require.NoError(t, err)

		assert.Zero(t, step.AmountOut.Cmp(wanted))
		assert.Positive(t, step.AmountIn.Sign())
	})

	t.Run("input is grossed up for the fee", func(t *testing.T) {
		target := new(big.Int).Rsh(priceOne, 1)
		liquidity := big.NewInt(1_000_000_000)
		wanted := big.NewInt(1_000_000)

		withFee, err := ComputeSwapStep(priceOne, target, liquidity, new(big.Int).Neg(wanted), 3000, true)
		require.NoError(t, err)
		noFee, err := ComputeSwapStep(priceOne, target, liquidity, new(big.Int).Neg(wanted), 0, true)
		require.NoError(t, err)

		assert.Positive(t, withFee.AmountIn.Cmp(noFee.AmountIn))
		assert.Zero(t, withFee.SqrtPriceNextX96.Cmp(noFee.SqrtPriceNextX96))
	})

	t.Run("clamps at target and caps the deliverable output", func(t *testing.T) {
		target := new(big.Int).Sub(priceOne, big.NewInt(1000))
		liquidity := big.NewInt(1_000_000_000)
		wanted := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

		step, err := ComputeSwapStep(priceOne, target, liquidity, new(big.Int).Neg(wanted), 3000, true)
		require.NoError(t, err)

		assert.Zero(t, step.SqrtPriceNextX96.Cmp(target))
		assert.Negative(t, step.AmountOut.Cmp(wanted))
	})
}

// TestComputeSwapStepInvariants runs the step on random inputs and checks
// the properties that must hold regardless of the numbers chosen.
func TestComputeSwapStepInvariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		current := newRandInt(120)
		if current.Sign() == 0 {
			current.SetInt64(1)
		}
		liquidity := newRandInt(96)
		if liquidity.Sign() == 0 {
			liquidity.SetInt64(1)
		}
		amountRemaining := newRandInt(100)
		if i%2 == 1 {
			amountRemaining.Neg(amountRemaining)
		}
		feePips := uint64(i%4) * 100 * uint64(i%7)

		zeroForOne := i%3 != 0
		target := new(big.Int)
		if zeroForOne {
			target.Rsh(current, 2)
		} else {
			target.Lsh(current, 2)
		}

		step, err := ComputeSwapStep(current, target, liquidity, amountRemaining, feePips, zeroForOne)
		require.NoError(t, err)

		// Price never moves beyond the target in the direction of travel.
		if zeroForOne {
			assert.GreaterOrEqual(t, step.SqrtPriceNextX96.Cmp(target), 0)
			assert.LessOrEqual(t, step.SqrtPriceNextX96.Cmp(current), 0)
		} else {
			assert.LessOrEqual(t, step.SqrtPriceNextX96.Cmp(target), 0)
			assert.GreaterOrEqual(t, step.SqrtPriceNextX96.Cmp(current), 0)
		}

		if amountRemaining.Sign() >= 0 {
			// Never consumes more than was offered.
			assert.LessOrEqual(t, step.AmountIn.Cmp(amountRemaining), 0)
		} else {
			// Never delivers more than was requested.
			wanted := new(big.Int).Neg(amountRemaining)
			assert.LessOrEqual(t, step.AmountOut.Cmp(wanted), 0)
		}
		assert.GreaterOrEqual(t, step.AmountIn.Sign(), 0)
		assert.GreaterOrEqual(t, step.AmountOut.Sign(), 0)
	}
}
