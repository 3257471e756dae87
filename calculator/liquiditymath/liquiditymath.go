// Package liquiditymath converts between the pool's abstract liquidity
// magnitude and concrete token amounts for a given price and price range.
package liquiditymath

import (
	"errors"
	"math/big"

	"github.com/defistate/rangepool-go/calculator/fullmath"
)

var (
	// Q96 is the UQ64.96 fixed-point number representing 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	// maxUint128 is the maximum value liquidity may take (2^128 - 1).
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
	ErrSqrtPriceZero      = errors.New("sqrt price must be greater than zero")
)

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// returning an error if the operation leaves the uint128 domain.
func AddDelta(x, y *big.Int) (*big.Int, error) {
	result := new(big.Int).Add(x, y)
	if result.Sign() < 0 {
		return nil, ErrLiquidityUnderflow
	}
	if result.Cmp(maxUint128) > 0 {
		return nil, ErrLiquidityOverflow
	}
	return result, nil
}

// Amount0ForLiquidity returns the amount of token0 backing the given
// liquidity between two sqrt prices:
//
//	amount0 = L * 2^96 * (sqrtB - sqrtA) / sqrtB / sqrtA
func Amount0ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	term, err := fullmath.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return term.Div(term, sqrtRatioAX96), nil
}

// Amount1ForLiquidity returns the amount of token1 backing the given
// liquidity between two sqrt prices:
//
//	amount1 = L * (sqrtB - sqrtA) / 2^96
func Amount1ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	numerator := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	return fullmath.MulDiv(liquidity, numerator, Q96)
}

// AmountsForLiquidity returns the amounts of both tokens backing the given
// liquidity, using the three-region policy: below the range only token0 is
// required, above it only token1, and inside it the current price splits
// the range in two.
func AmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) (amount0, amount1 *big.Int, err error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	amount0, amount1 = new(big.Int), new(big.Int)
	switch {
	case sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0:
		amount0, err = Amount0ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity)
	case sqrtRatioX96.Cmp(sqrtRatioBX96) < 0:
		amount0, err = Amount0ForLiquidity(sqrtRatioX96, sqrtRatioBX96, liquidity)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1ForLiquidity(sqrtRatioAX96, sqrtRatioX96, liquidity)
	default:
		amount1, err = Amount1ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// LiquidityForAmount0 returns the liquidity a token0 amount provides
// between two sqrt prices. Two chained MulDivs keep the intermediate
// product within range:
//
//	L = amount0 * (sqrtA * sqrtB / 2^96) / (sqrtB - sqrtA)
func LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	intermediate, err := fullmath.MulDiv(sqrtRatioAX96, sqrtRatioBX96, Q96)
	if err != nil {
		return nil, err
	}
	return fullmath.MulDiv(amount0, intermediate, new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmount1 returns the liquidity a token1 amount provides
// between two sqrt prices:
//
//	L = amount1 * 2^96 / (sqrtB - sqrtA)
func LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	return fullmath.MulDiv(amount1, Q96, new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmounts selects the applicable single-sided formula by
// comparing the current price to the range bounds; strictly inside the
// range both are computed and the smaller one is the binding constraint.
func LiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *big.Int) (*big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	switch {
	case sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0:
		return LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	case sqrtRatioX96.Cmp(sqrtRatioBX96) < 0:
		liquidity0, err := LiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := LiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Cmp(liquidity1) < 0 {
			return liquidity0, nil
		}
		return liquidity1, nil
	default:
		return LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
	}
}
