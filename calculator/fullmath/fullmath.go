// Package fullmath provides the overflow-checked multiply-divide and
// integer square root primitives that every price and amount computation
// in the pool engine routes through.
package fullmath

import (
	"errors"
	"math/big"
)

var (
	ErrDivisionByZero = errors.New("denominator must be greater than zero")
	ErrOverflow       = errors.New("result overflows 256 bits")
	ErrNegativeInput  = errors.New("input must not be negative")

	// MaxUint256 is the largest value representable in the engine's
	// 256-bit unsigned domain.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	one = big.NewInt(1)
)

// MulDiv computes floor(a*b/denominator) with a full-precision intermediate
// product, so the result is exact even when a*b exceeds 256 bits.
// The result itself must fit in 256 bits.
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() <= 0 {
		return nil, ErrDivisionByZero
	}
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int), nil
	}

	result := new(big.Int).Mul(a, b)
	result.Div(result, denominator)
	if result.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator) under the same domain
// rules as MulDiv.
func MulDivRoundingUp(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() <= 0 {
		return nil, ErrDivisionByZero
	}
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int), nil
	}

	product := new(big.Int).Mul(a, b)
	result, rem := new(big.Int).DivMod(product, denominator, new(big.Int))
	if rem.Sign() > 0 {
		result.Add(result, one)
	}
	if result.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return result, nil
}

// Sqrt returns floor(sqrt(x)) for x in the 256-bit unsigned domain.
//
// The initial estimate 2^ceil(bitlen/2) bounds sqrt(x) from above; seven
// Newton-Raphson iterations are enough to pin down all 128 result bits,
// and the final min() pick guarantees the floor value is never overshot.
func Sqrt(x *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if x.Sign() == 0 {
		return new(big.Int), nil
	}
	if x.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}

	r := new(big.Int).Lsh(one, uint(x.BitLen()+1)/2)
	t := new(big.Int)
	for i := 0; i < 7; i++ {
		// r = (r + x/r) / 2
		t.Div(x, r)
		r.Add(r, t)
		r.Rsh(r, 1)
	}

	t.Div(x, r)
	if t.Cmp(r) < 0 {
		return t, nil
	}
	return r, nil
}
