package fullmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func fromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func TestMulDiv(t *testing.T) {
	t.Run("denominator zero", func(t *testing.T) {
		_, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})

	t.Run("denominator zero with zero operands", func(t *testing.T) {
		// The denominator is validated before the zero shortcut fires.
		_, err := MulDiv(big.NewInt(0), big.NewInt(5), big.NewInt(0))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})

	t.Run("zero operand", func(t *testing.T) {
		res, err := MulDiv(big.NewInt(0), newRandInt(256), big.NewInt(7))
		require.NoError(t, err)
		assert.Zero(t, res.Sign())
	})

	t.Run("intermediate wider than 256 bits", func(t *testing.T) {
		// a*b is a 512-bit product but the quotient fits.
		a := fromString("115792089237316195423570985008687907853269984665640564039457584007913129639935") // 2^256-1
		res, err := MulDiv(a, a, a)
		require.NoError(t, err)
		assert.Zero(t, res.Cmp(a))
	})

	t.Run("overflowing result", func(t *testing.T) {
		a := fromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
		_, err := MulDiv(a, a, big.NewInt(2))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("matches reference on random inputs", func(t *testing.T) {
		for i := 0; i < 2000; i++ {
			a := newRandInt(200)
			b := newRandInt(200)
			den := newRandInt(180)
			if den.Sign() == 0 {
				den.SetInt64(1)
			}

			want := new(big.Int).Mul(a, b)
			want.Div(want, den)
			if want.Cmp(MaxUint256) > 0 {
				continue
			}

			got, err := MulDiv(a, b, den)
			require.NoError(t, err)
			assert.Zero(t, got.Cmp(want))
		}
	})
}

func TestMulDivRoundingUp(t *testing.T) {
	t.Run("exact division does not round", func(t *testing.T) {
		res, err := MulDivRoundingUp(big.NewInt(6), big.NewInt(4), big.NewInt(8))
		require.NoError(t, err)
		assert.EqualValues(t, 3, res.Int64())
	})

	t.Run("remainder rounds up", func(t *testing.T) {
		res, err := MulDivRoundingUp(big.NewInt(7), big.NewInt(4), big.NewInt(8))
		require.NoError(t, err)
		assert.EqualValues(t, 4, res.Int64())
	})

	t.Run("never below floor variant", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			a := newRandInt(128)
			b := newRandInt(128)
			den := newRandInt(100)
			if den.Sign() == 0 {
				den.SetInt64(1)
			}
			up, err := MulDivRoundingUp(a, b, den)
			require.NoError(t, err)
			down, err := MulDiv(a, b, den)
			require.NoError(t, err)

			diff := new(big.Int).Sub(up, down)
			assert.True(t, diff.Sign() >= 0)
			assert.True(t, diff.Cmp(big.NewInt(1)) <= 0)
		}
	})
}

func TestSqrt(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		res, err := Sqrt(big.NewInt(0))
		require.NoError(t, err)
		assert.Zero(t, res.Sign())
	})

	t.Run("negative", func(t *testing.T) {
		_, err := Sqrt(big.NewInt(-1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNegativeInput)
	})

	t.Run("small values", func(t *testing.T) {
		cases := []struct{ in, want int64 }{
			{1, 1}, {2, 1}, {3, 1}, {4, 2}, {8, 2}, {9, 3},
			{15, 3}, {16, 4}, {99, 9}, {100, 10}, {101, 10},
		}
		for _, tc := range cases {
			res, err := Sqrt(big.NewInt(tc.in))
			require.NoError(t, err)
			assert.EqualValues(t, tc.want, res.Int64())
		}
	})

	t.Run("floor property on random inputs", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			x := newRandInt(256)
			res, err := Sqrt(x)
			require.NoError(t, err)

			// res^2 <= x < (res+1)^2
			sq := new(big.Int).Mul(res, res)
			assert.True(t, sq.Cmp(x) <= 0)
			next := new(big.Int).Add(res, big.NewInt(1))
			next.Mul(next, next)
			assert.True(t, next.Cmp(x) > 0)
		}
	})

	t.Run("matches big.Int reference", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			x := newRandInt(250)
			res, err := Sqrt(x)
			require.NoError(t, err)
			want := new(big.Int).Sqrt(x)
			assert.Zero(t, res.Cmp(want))
		}
	})
}
