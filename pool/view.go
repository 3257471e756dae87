package pool

import (
	"math"
	"math/big"
)

var (
	q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	q96F = new(big.Float).SetInt(q96)
)

// VirtualReserves calculates the price-implied reserves backing the pool's
// current liquidity. These are the amounts the linear pricing model treats
// as being on each side of the book, not the pool's actual token balances.
func (p *Pool) VirtualReserves() (reserve0, reserve1 *big.Int, err error) {
	if p.sqrtPriceX96.Sign() == 0 {
		return nil, nil, ErrNotInitialized
	}

	// Not on a hot path, so a few allocations are acceptable for clarity.
	reserve0 = new(big.Int).Div(new(big.Int).Lsh(p.liquidity, 96), p.sqrtPriceX96)
	reserve1 = new(big.Int).Div(new(big.Int).Mul(p.liquidity, p.sqrtPriceX96), q96)
	return reserve0, reserve1, nil
}

// SpotPrice calculates the spot price of token0 in terms of token1,
// adjusted for token decimals. The returned big.Int carries the price with
// precision matching decimals1. For example, with a 6-decimal token1 a
// return value of 3045123456 represents a price of 3045.123456.
func (p *Pool) SpotPrice(decimals0, decimals1 uint8) (*big.Int, error) {
	if p.sqrtPriceX96.Sign() == 0 {
		return nil, ErrNotInitialized
	}

	decimals0F := big.NewFloat(math.Pow(10, float64(decimals0)))
	decimals1F := big.NewFloat(math.Pow(10, float64(decimals1)))

	sqrtPriceF := new(big.Float).SetInt(p.sqrtPriceX96)
	intermediate := sqrtPriceF.Quo(sqrtPriceF, q96F)
	price := new(big.Float).Mul(intermediate, intermediate)

	spotPrice := new(big.Float).Quo(price, new(big.Float).Quo(decimals1F, decimals0F))
	spotPrice.Mul(spotPrice, decimals1F)
	result, _ := spotPrice.Int(nil)
	return result, nil
}
