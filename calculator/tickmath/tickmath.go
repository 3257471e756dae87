// Package tickmath maps between integer ticks and Q64.96 square-root
// prices. Price follows a geometric ladder: price = 1.0001^tick.
package tickmath

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

var (
	// MIN_TICK is the minimum tick that may be passed to GetSqrtRatioAtTick.
	MIN_TICK = int64(-887272)
	// MAX_TICK is the maximum tick that may be passed to GetSqrtRatioAtTick.
	MAX_TICK = int64(887272)

	// MIN_SQRT_RATIO is the sqrt price at MIN_TICK.
	MIN_SQRT_RATIO, _ = new(big.Int).SetString("4295128739", 10)
	// MAX_SQRT_RATIO is the sqrt price at MAX_TICK.
	MAX_SQRT_RATIO, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	one        = uint256.NewInt(1)
	maxUint256 = uint256.MustFromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

	// Constants for GetSqrtRatioAtTick, pre-parsed from hex.
	// These represent sqrt(1.0001^2^i) for i in 0..20 in UQ128.128, plus a
	// rounding mask. They are precomputed coefficients, not tunables.
	ratioConstants = [22]*uint256.Int{
		uint256.MustFromBig(fromHex("0xfffcb933bd6fad37aa2d162d1a594001")),  // sqrt(1.0001^1)
		uint256.MustFromBig(fromHex("0x100000000000000000000000000000000")), // 1 in UQ128.128
		uint256.MustFromBig(fromHex("0xfff97272373d413259a46990580e213a")),  // sqrt(1.0001^2)
		uint256.MustFromBig(fromHex("0xfff2e50f5f656932ef12357cf3c7fdcc")),  // sqrt(1.0001^4)
		uint256.MustFromBig(fromHex("0xffe5caca7e10e4e61c3624eaa0941cd0")),  // sqrt(1.0001^8)
		uint256.MustFromBig(fromHex("0xffcb9843d60f6159c9db58835c926644")),  // sqrt(1.0001^16)
		uint256.MustFromBig(fromHex("0xff973b41fa98c081472e6896dfb254c0")),  // sqrt(1.0001^32)
		uint256.MustFromBig(fromHex("0xff2ea16466c96a3843ec78b326b52861")),  // sqrt(1.0001^64)
		uint256.MustFromBig(fromHex("0xfe5dee046a99a2a811c461f1969c3053")),  // sqrt(1.0001^128)
		uint256.MustFromBig(fromHex("0xfcbe86c7900a88aedcffc83b479aa3a4")),  // sqrt(1.0001^256)
		uint256.MustFromBig(fromHex("0xf987a7253ac413176f2b074cf7815e54")),  // sqrt(1.0001^512)
		uint256.MustFromBig(fromHex("0xf3392b0822b70005940c7a398e4b70f3")),  // sqrt(1.0001^1024)
		uint256.MustFromBig(fromHex("0xe7159475a2c29b7443b29c7fa6e889d9")),  // sqrt(1.0001^2048)
		uint256.MustFromBig(fromHex("0xd097f3bdfd2022b8845ad8f792aa5825")),  // sqrt(1.0001^4096)
		uint256.MustFromBig(fromHex("0xa9f746462d870fdf8a65dc1f90e061e5")),  // sqrt(1.0001^8192)
		uint256.MustFromBig(fromHex("0x70d869a156d2a1b890bb3df62baf32f7")),  // sqrt(1.0001^16384)
		uint256.MustFromBig(fromHex("0x31be135f97d08fd981231505542fcfa6")),  // sqrt(1.0001^32768)
		uint256.MustFromBig(fromHex("0x9aa508b5b7a84e1c677de54f3e99bc9")),   // sqrt(1.0001^65536)
		uint256.MustFromBig(fromHex("0x5d6af8dedb81196699c329225ee604")),    // sqrt(1.0001^131072)
		uint256.MustFromBig(fromHex("0x2216e584f5fa1ea926041bedfe98")),      // sqrt(1.0001^262144)
		uint256.MustFromBig(fromHex("0x48a170391f7dc42444e8fa2")),           // sqrt(1.0001^524288)
		uint256.MustFromBig(fromHex("0xffffffff")),                          // mask for rounding
	}

	// Constants for GetTickAtSqrtRatio: the base conversion factor from
	// log2 to log_sqrt(1.0001), and the two bounds on the approximation
	// error of the 14-bit fractional log.
	logSqrt10001Factor, _ = new(big.Int).SetString("255738958999603826347141", 10)
	tickLowErrBound, _    = new(big.Int).SetString("3402992956809132418596140100660247210", 10)
	tickHighErrBound, _   = new(big.Int).SetString("291339464771989622907027621153398088495", 10)
)

// tickMath holds reusable scratch objects to avoid memory allocations.
type tickMath struct {
	ratio *uint256.Int
	rem   *uint256.Int
	temp  *big.Int
}

// pool manages a pool of tickMath objects for safe concurrent use.
var pool = sync.Pool{
	New: func() any {
		return &tickMath{
			ratio: new(uint256.Int),
			rem:   new(uint256.Int),
			temp:  new(big.Int),
		}
	},
}

// GetSqrtRatioAtTick calculates sqrt(1.0001^tick) * 2^96 into dest.
// The product over the bit-indexed constants evaluates the power in
// binary-exponentiation form; the final step rounds the UQ128.128
// intermediate up into Q64.96.
func GetSqrtRatioAtTick(dest *big.Int, tick int64) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return ErrTickOutOfBounds
	}

	tm := pool.Get().(*tickMath)
	defer pool.Put(tm)

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	if (absTick & 0x1) != 0 {
		tm.ratio.Set(ratioConstants[0])
	} else {
		tm.ratio.Set(ratioConstants[1])
	}

	for i := 2; i < 21; i++ {
		if (absTick & (1 << (i - 1))) != 0 {
			tm.ratio.Mul(tm.ratio, ratioConstants[i]).Rsh(tm.ratio, 128)
		}
	}

	// The table encodes negative powers; positive ticks take the reciprocal.
	if tick > 0 {
		tm.ratio.Div(maxUint256, tm.ratio)
	}

	// Divide by 2^32 rounding up.
	tm.rem.And(tm.ratio, ratioConstants[21])
	tm.ratio.Rsh(tm.ratio, 32)
	if tm.rem.Sign() > 0 {
		tm.ratio.Add(tm.ratio, one)
	}

	tm.ratio.IntoBig(&dest)
	return nil
}

// GetTickAtSqrtRatio calculates the greatest tick whose sqrt ratio does not
// exceed the given one (floor semantics on the price-to-tick direction).
//
// It extracts the most significant bit for the integer part of log2, then
// squares the normalized mantissa fourteen times to pull out fractional
// log bits, converts the result into the sqrt(1.0001) base and checks the
// two candidate ticks bounding the approximation error against the input.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int64, error) {
	if sqrtPriceX96.Cmp(MIN_SQRT_RATIO) < 0 || sqrtPriceX96.Cmp(MAX_SQRT_RATIO) >= 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}

	ratio := new(big.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	// Normalize the mantissa into [2^127, 2^128).
	r := new(big.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	// Signed Q64.64 integer part of log2(ratio in Q128).
	log2 := big.NewInt(int64(msb) - 128)
	log2.Lsh(log2, 64)

	bit := new(big.Int)
	for i := 0; i < 14; i++ {
		r.Mul(r, r)
		r.Rsh(r, 127)
		// The squared mantissa crossed 2^128 iff the next fractional
		// log bit is set.
		bit.Rsh(r, 128)
		if bit.Sign() != 0 {
			log2.Add(log2, new(big.Int).Lsh(bit, uint(63-i)))
			r.Rsh(r, 1)
		}
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Factor)

	tickLow := new(big.Int).Sub(logSqrt10001, tickLowErrBound)
	tickLow.Rsh(tickLow, 128)
	tickHigh := new(big.Int).Add(logSqrt10001, tickHighErrBound)
	tickHigh.Rsh(tickHigh, 128)

	low, high := tickLow.Int64(), tickHigh.Int64()
	if low == high {
		return low, nil
	}

	// The approximation alone cannot pick between the candidates; check
	// whether the higher one's forward-mapped price still fits.
	tm := pool.Get().(*tickMath)
	defer pool.Put(tm)
	if err := GetSqrtRatioAtTick(tm.temp, high); err != nil {
		return 0, err
	}
	if tm.temp.Cmp(sqrtPriceX96) <= 0 {
		return high, nil
	}
	return low, nil
}

// Helper to create a big.Int from a hex string.
func fromHex(s string) *big.Int {
	n, _ := new(big.Int).SetString(s[2:], 16)
	return n
}
