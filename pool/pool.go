// Package pool implements a single-range liquidity pool: one price, one
// pool-wide liquidity figure, per-owner shares and withdrawal credits.
// Operations that pull tokens in update state first, invoke a caller
// callback, then verify the pool's balances actually grew; a reentrancy
// flag rejects nested mutating calls.
package pool

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/rangepool-go/calculator/fullmath"
	"github.com/defistate/rangepool-go/calculator/liquiditymath"
	"github.com/defistate/rangepool-go/calculator/swapmath"
	"github.com/defistate/rangepool-go/calculator/tickmath"
	"github.com/defistate/rangepool-go/token"
)

var (
	ErrAlreadyInitialized          = errors.New("pool: already initialized")
	ErrNotInitialized              = errors.New("pool: not initialized")
	ErrInvalidPrice                = errors.New("pool: invalid price")
	ErrPriceOutOfRange             = errors.New("pool: price outside pool tick range")
	ErrInvalidAmount               = errors.New("pool: amount must be nonzero")
	ErrInsufficientLiquidity       = errors.New("pool: insufficient owner liquidity")
	ErrInsufficientLiquidityMinted = errors.New("pool: mint produced no token amounts")
	ErrInsufficientLiquidityBurned = errors.New("pool: burn produced no token amounts")
	ErrInsufficientToken0          = errors.New("pool: callback did not deliver token0")
	ErrInsufficientToken1          = errors.New("pool: callback did not deliver token1")
	ErrInsufficientToken0Paid      = errors.New("pool: swap callback did not pay token0")
	ErrInsufficientToken1Paid      = errors.New("pool: swap callback did not pay token1")
	ErrInvalidPriceLimit           = errors.New("pool: price limit violates direction rule")
	ErrLocked                      = errors.New("pool: locked")
)

// MintPayer is implemented by mint callers. OnMintTokensNeeded must result
// in at least amount0/amount1 of each token arriving at the pool's address
// before it returns.
type MintPayer interface {
	OnMintTokensNeeded(amount0, amount1 *big.Int, data []byte) error
}

// SwapPayer is implemented by swap callers. Positive deltas are owed to
// the pool and must arrive before OnSwapTokensNeeded returns.
type SwapPayer interface {
	OnSwapTokensNeeded(amount0, amount1 *big.Int, data []byte) error
}

// Config holds the immutable parameters and dependencies of a pool.
type Config struct {
	Token0, Token1 common.Address // canonical order guaranteed by the creator
	Fee            uint64         // parts-per-million
	TickLower      int64
	TickUpper      int64
	Address        common.Address // the pool's own token-holding identity

	Tokens   token.Transferer
	Logger   Logger                // optional
	Registry prometheus.Registerer // optional
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *Config) validate() error {
	if c.Tokens == nil {
		return errors.New("config: Tokens cannot be nil")
	}
	if c.Token0 == c.Token1 {
		return errors.New("config: Token0 and Token1 must differ")
	}
	if c.Fee == 0 || c.Fee >= 1_000_000 {
		return errors.New("config: Fee must be in (0, 1000000) ppm")
	}
	if c.TickLower >= c.TickUpper {
		return errors.New("config: TickLower must be below TickUpper")
	}
	if c.TickLower < tickmath.MIN_TICK || c.TickUpper > tickmath.MAX_TICK {
		return errors.New("config: tick range outside valid tick bounds")
	}
	return nil
}

// Pool is the stateful pricing and accounting engine for one token pair,
// fee tier and price range. It is designed for serial use: each operation
// runs to completion before the next; the only concurrency hazard it
// defends against is reentrancy through its own callbacks.
type Pool struct {
	token0, token1 common.Address
	fee            uint64
	tickLower      int64
	tickUpper      int64
	address        common.Address

	tokens  token.Transferer
	logger  Logger
	metrics *Metrics

	sqrtRatioLowerX96 *big.Int
	sqrtRatioUpperX96 *big.Int

	sqrtPriceX96 *big.Int // zero until Initialize
	tick         int64
	liquidity    *big.Int
	liquidityOf  map[common.Address]*big.Int
	tokensOwed0  map[common.Address]*big.Int
	tokensOwed1  map[common.Address]*big.Int
	unlocked     bool
}

// New constructs an uninitialized pool from a configuration, returning an
// error if the config is invalid.
func New(cfg *Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	lower, upper := new(big.Int), new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(lower, cfg.TickLower); err != nil {
		return nil, err
	}
	if err := tickmath.GetSqrtRatioAtTick(upper, cfg.TickUpper); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &Pool{
		token0:            cfg.Token0,
		token1:            cfg.Token1,
		fee:               cfg.Fee,
		tickLower:         cfg.TickLower,
		tickUpper:         cfg.TickUpper,
		address:           cfg.Address,
		tokens:            cfg.Tokens,
		logger:            logger,
		metrics:           NewMetrics(cfg.Registry, cfg.Address.Hex()),
		sqrtRatioLowerX96: lower,
		sqrtRatioUpperX96: upper,
		sqrtPriceX96:      new(big.Int),
		liquidity:         new(big.Int),
		liquidityOf:       make(map[common.Address]*big.Int),
		tokensOwed0:       make(map[common.Address]*big.Int),
		tokensOwed1:       make(map[common.Address]*big.Int),
		unlocked:          true,
	}, nil
}

// Initialize sets the pool's starting price exactly once. The derived tick
// must fall inside the pool's configured range.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) error {
	if p.sqrtPriceX96.Sign() != 0 {
		return ErrAlreadyInitialized
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return ErrInvalidPrice
	}

	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	if tick < p.tickLower || tick > p.tickUpper {
		return ErrPriceOutOfRange
	}

	p.sqrtPriceX96.Set(sqrtPriceX96)
	p.tick = tick

	p.logger.Info("pool initialized",
		"pool", p.address, "sqrtPriceX96", p.sqrtPriceX96.String(), "tick", tick)
	p.metrics.observe("initialize", nil)
	return nil
}

// Mint adds liquidity for recipient. The token amounts the deposit
// requires are computed first, the liquidity accounting is updated, and
// only then is the payer asked to push tokens; if the pool's balances did
// not grow by the required amounts the whole mint is undone.
func (p *Pool) Mint(sender, recipient common.Address, amount *big.Int, payer MintPayer, data []byte) (amount0, amount1 *big.Int, err error) {
	if !p.unlocked {
		return nil, nil, ErrLocked
	}
	p.unlocked = false
	defer func() {
		p.unlocked = true
		p.metrics.observe("mint", err)
	}()

	if p.sqrtPriceX96.Sign() == 0 {
		return nil, nil, ErrNotInitialized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	amount0, amount1, err = p.amountsForMint(amount)
	if err != nil {
		return nil, nil, err
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityMinted
	}

	balance0 := p.tokens.BalanceOf(p.token0, p.address)
	balance1 := p.tokens.BalanceOf(p.token1, p.address)

	// Effects before interaction. The balance assertion below is what
	// makes this ordering safe.
	newTotal, err := liquiditymath.AddDelta(p.liquidity, amount)
	if err != nil {
		return nil, nil, err
	}
	prevTotal := new(big.Int).Set(p.liquidity)
	p.liquidity.Set(newTotal)
	addTo(p.liquidityOf, recipient, amount)

	undo := func() {
		p.liquidity.Set(prevTotal)
		subFrom(p.liquidityOf, recipient, amount)
	}

	if err = payer.OnMintTokensNeeded(amount0, amount1, data); err != nil {
		undo()
		return nil, nil, err
	}

	if !balanceGrewBy(p.tokens.BalanceOf(p.token0, p.address), balance0, amount0) {
		undo()
		return nil, nil, ErrInsufficientToken0
	}
	if !balanceGrewBy(p.tokens.BalanceOf(p.token1, p.address), balance1, amount1) {
		undo()
		return nil, nil, ErrInsufficientToken1
	}

	p.logger.Info("mint",
		"pool", p.address, "sender", sender, "recipient", recipient,
		"liquidity", amount.String(), "amount0", amount0.String(), "amount1", amount1.String())
	return amount0, amount1, nil
}

// amountsForMint returns the token amounts a liquidity deposit requires.
// The first deposit prices itself off the current sqrt price; later
// deposits follow the pool's prevailing implied ratio so they cannot shift
// it.
func (p *Pool) amountsForMint(amount *big.Int) (*big.Int, *big.Int, error) {
	if p.liquidity.Sign() == 0 {
		return liquiditymath.AmountsForLiquidity(p.sqrtPriceX96, p.sqrtRatioLowerX96, p.sqrtRatioUpperX96, amount)
	}

	total0, total1, err := liquiditymath.AmountsForLiquidity(p.sqrtPriceX96, p.sqrtRatioLowerX96, p.sqrtRatioUpperX96, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	amount0, err := fullmath.MulDiv(amount, total0, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := fullmath.MulDiv(amount, total1, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from owner, crediting the proportional share of
// the pool's actual reserves to the owner's withdrawal balances. No tokens
// move until Collect.
func (p *Pool) Burn(owner common.Address, amount *big.Int) (amount0, amount1 *big.Int, err error) {
	if !p.unlocked {
		return nil, nil, ErrLocked
	}
	p.unlocked = false
	defer func() {
		p.unlocked = true
		p.metrics.observe("burn", err)
	}()

	if p.sqrtPriceX96.Sign() == 0 {
		return nil, nil, ErrNotInitialized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	owned, ok := p.liquidityOf[owner]
	if !ok || owned.Cmp(amount) < 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	balance0 := p.tokens.BalanceOf(p.token0, p.address)
	balance1 := p.tokens.BalanceOf(p.token1, p.address)
	amount0, err = fullmath.MulDiv(amount, balance0, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	amount1, err = fullmath.MulDiv(amount, balance1, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	p.liquidity.Sub(p.liquidity, amount)
	subFrom(p.liquidityOf, owner, amount)
	addTo(p.tokensOwed0, owner, amount0)
	addTo(p.tokensOwed1, owner, amount1)

	p.logger.Info("burn",
		"pool", p.address, "owner", owner,
		"liquidity", amount.String(), "amount0", amount0.String(), "amount1", amount1.String())
	return amount0, amount1, nil
}

// Collect transfers everything owed to owner out to recipient. Each owed
// entry is zeroed before its transfer, so a reentrant observer sees
// nothing left to withdraw. Collect does not take the reentrancy flag;
// the zero-then-transfer ordering is its only guard.
func (p *Pool) Collect(owner, recipient common.Address) (amount0, amount1 *big.Int, err error) {
	defer func() { p.metrics.observe("collect", err) }()

	amount0, amount1 = new(big.Int), new(big.Int)
	if owed, ok := p.tokensOwed0[owner]; ok && owed.Sign() > 0 {
		amount0.Set(owed)
		owed.SetInt64(0)
		if err = p.tokens.Transfer(p.token0, p.address, recipient, amount0); err != nil {
			owed.Set(amount0)
			return nil, nil, err
		}
	}
	if owed, ok := p.tokensOwed1[owner]; ok && owed.Sign() > 0 {
		amount1.Set(owed)
		owed.SetInt64(0)
		if err = p.tokens.Transfer(p.token1, p.address, recipient, amount1); err != nil {
			owed.Set(amount1)
			// Claw back the token0 payout so the whole collect reverts.
			if amount0.Sign() > 0 {
				if undoErr := p.tokens.Transfer(p.token0, recipient, p.address, amount0); undoErr != nil {
					p.logger.Error("collect rollback failed", "pool", p.address, "err", undoErr)
				}
				addTo(p.tokensOwed0, owner, amount0)
			}
			return nil, nil, err
		}
	}

	if amount0.Sign() > 0 || amount1.Sign() > 0 {
		p.logger.Info("collect",
			"pool", p.address, "owner", owner, "recipient", recipient,
			"amount0", amount0.String(), "amount1", amount1.String())
	}
	return amount0, amount1, nil
}

// Swap trades against the pool's liquidity in a single step. amountSpecified
// is signed: positive fixes the input, negative fixes the output. The
// returned deltas are signed the same way, positive flowing into the pool.
// The outgoing side is paid to recipient before the payer callback runs;
// the incoming side is verified by balance difference afterwards.
func (p *Pool) Swap(
	sender, recipient common.Address,
	zeroForOne bool,
	amountSpecified, sqrtPriceLimitX96 *big.Int,
	payer SwapPayer,
	data []byte,
) (amount0, amount1 *big.Int, err error) {
	if !p.unlocked {
		return nil, nil, ErrLocked
	}
	p.unlocked = false
	defer func() {
		p.unlocked = true
		p.metrics.observe("swap", err)
	}()

	if p.sqrtPriceX96.Sign() == 0 {
		return nil, nil, ErrNotInitialized
	}
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, ErrInvalidAmount
	}
	if err = p.checkPriceLimit(sqrtPriceLimitX96, zeroForOne); err != nil {
		return nil, nil, err
	}

	target := p.clampTargetToRange(sqrtPriceLimitX96, zeroForOne)

	step, err := swapmath.ComputeSwapStep(p.sqrtPriceX96, target, p.liquidity, amountSpecified, p.fee, zeroForOne)
	if err != nil {
		return nil, nil, err
	}

	if zeroForOne {
		amount0 = step.AmountIn
		amount1 = new(big.Int).Neg(step.AmountOut)
	} else {
		amount1 = step.AmountIn
		amount0 = new(big.Int).Neg(step.AmountOut)
	}

	prevPrice := new(big.Int).Set(p.sqrtPriceX96)
	prevTick := p.tick

	tick, err := tickmath.GetTickAtSqrtRatio(step.SqrtPriceNextX96)
	if err != nil {
		return nil, nil, err
	}
	p.sqrtPriceX96.Set(step.SqrtPriceNextX96)
	p.tick = tick

	undo := func() {
		p.sqrtPriceX96.Set(prevPrice)
		p.tick = prevTick
	}

	// Pay the outgoing side before asking for the incoming one.
	outToken, inToken := p.token1, p.token0
	if !zeroForOne {
		outToken, inToken = p.token0, p.token1
	}
	if step.AmountOut.Sign() > 0 {
		if err = p.tokens.Transfer(outToken, p.address, recipient, step.AmountOut); err != nil {
			undo()
			return nil, nil, err
		}
	}

	inBefore := p.tokens.BalanceOf(inToken, p.address)

	undoWithPayout := func() {
		if step.AmountOut.Sign() > 0 {
			if undoErr := p.tokens.Transfer(outToken, recipient, p.address, step.AmountOut); undoErr != nil {
				p.logger.Error("swap rollback failed", "pool", p.address, "err", undoErr)
			}
		}
		undo()
	}

	if err = payer.OnSwapTokensNeeded(amount0, amount1, data); err != nil {
		undoWithPayout()
		return nil, nil, err
	}

	if !balanceGrewBy(p.tokens.BalanceOf(inToken, p.address), inBefore, step.AmountIn) {
		undoWithPayout()
		if zeroForOne {
			return nil, nil, ErrInsufficientToken0Paid
		}
		return nil, nil, ErrInsufficientToken1Paid
	}

	p.logger.Info("swap",
		"pool", p.address, "sender", sender, "recipient", recipient,
		"zeroForOne", zeroForOne, "amount0", amount0.String(), "amount1", amount1.String(),
		"sqrtPriceX96", p.sqrtPriceX96.String(), "liquidity", p.liquidity.String(), "tick", p.tick)
	return amount0, amount1, nil
}

// checkPriceLimit enforces the direction rule: selling token0 drives the
// price down, so the limit must sit strictly between the global minimum
// and the current price; the mirror rule applies in the other direction.
func (p *Pool) checkPriceLimit(limit *big.Int, zeroForOne bool) error {
	if limit == nil {
		return ErrInvalidPriceLimit
	}
	if zeroForOne {
		if limit.Cmp(p.sqrtPriceX96) >= 0 || limit.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			return ErrInvalidPriceLimit
		}
	} else {
		if limit.Cmp(p.sqrtPriceX96) <= 0 || limit.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
			return ErrInvalidPriceLimit
		}
	}
	return nil
}

// clampTargetToRange tightens the caller's limit to the pool's own price
// range so the tick always stays inside [tickLower, tickUpper].
func (p *Pool) clampTargetToRange(limit *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		if limit.Cmp(p.sqrtRatioLowerX96) < 0 {
			return p.sqrtRatioLowerX96
		}
	} else {
		if limit.Cmp(p.sqrtRatioUpperX96) > 0 {
			return p.sqrtRatioUpperX96
		}
	}
	return limit
}

// --- Accessors ---

// SqrtPriceX96 returns a copy of the current price, zero if uninitialized.
func (p *Pool) SqrtPriceX96() *big.Int { return new(big.Int).Set(p.sqrtPriceX96) }

// Tick returns the tick matching the current price.
func (p *Pool) Tick() int64 { return p.tick }

// Liquidity returns a copy of the pool-wide liquidity.
func (p *Pool) Liquidity() *big.Int { return new(big.Int).Set(p.liquidity) }

// LiquidityOf returns a copy of the owner's liquidity share.
func (p *Pool) LiquidityOf(owner common.Address) *big.Int {
	if owned, ok := p.liquidityOf[owner]; ok {
		return new(big.Int).Set(owned)
	}
	return new(big.Int)
}

// TokensOwed returns copies of the owner's withdrawable credits.
func (p *Pool) TokensOwed(owner common.Address) (owed0, owed1 *big.Int) {
	owed0, owed1 = new(big.Int), new(big.Int)
	if o, ok := p.tokensOwed0[owner]; ok {
		owed0.Set(o)
	}
	if o, ok := p.tokensOwed1[owner]; ok {
		owed1.Set(o)
	}
	return owed0, owed1
}

// Token0 returns the pool's first token.
func (p *Pool) Token0() common.Address { return p.token0 }

// Token1 returns the pool's second token.
func (p *Pool) Token1() common.Address { return p.token1 }

// Address returns the pool's token-holding identity.
func (p *Pool) Address() common.Address { return p.address }

// --- map helpers ---

func addTo(m map[common.Address]*big.Int, key common.Address, delta *big.Int) {
	if existing, ok := m[key]; ok {
		existing.Add(existing, delta)
		return
	}
	m[key] = new(big.Int).Set(delta)
}

func subFrom(m map[common.Address]*big.Int, key common.Address, delta *big.Int) {
	existing, ok := m[key]
	if !ok {
		return
	}
	existing.Sub(existing, delta)
	if existing.Sign() == 0 {
		delete(m, key)
	}
}

// balanceGrewBy reports whether after is at least before + required.
func balanceGrewBy(after, before, required *big.Int) bool {
	grown := new(big.Int).Sub(after, before)
	return grown.Cmp(required) >= 0
}
