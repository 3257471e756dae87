// poolsim exercises a single pool end to end: create, initialize, mint,
// swap in both directions, burn and collect, logging every event.
package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/defistate/rangepool-go/calculator/tickmath"
	"github.com/defistate/rangepool-go/pool"
	"github.com/defistate/rangepool-go/registry"
	"github.com/defistate/rangepool-go/token"
)

var (
	simToken0 = common.HexToAddress("0x0000000000000000000000000000000000001000")
	simToken1 = common.HexToAddress("0x0000000000000000000000000000000000002000")
	lpAddr    = common.HexToAddress("0x000000000000000000000000000000000000a100")
	trader    = common.HexToAddress("0x000000000000000000000000000000000000b200")
)

func main() {
	root := &cobra.Command{
		Use:          "poolsim",
		Short:        "Range pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a mint/swap/burn/collect cycle against one pool",
		RunE:  runSim,
	}

	runCmd.Flags().Uint64("fee", 3000, "fee in parts per million")
	runCmd.Flags().Int64("tick-lower", -887220, "lower tick bound")
	runCmd.Flags().Int64("tick-upper", 887220, "upper tick bound")
	runCmd.Flags().Int64("initial-tick", 0, "tick of the starting price")
	runCmd.Flags().Int64("mint-amount", 1_000_000_000, "liquidity to mint")
	runCmd.Flags().IntSlice("swap-amount", []int{10_000, 25_000, 50_000}, "exact-input swap sizes (comma-separated)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSim(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	poolLogger := zapAdapter{sugar: logger.Sugar()}

	ledger := token.NewLedger()
	funding := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	for _, holder := range []common.Address{lpAddr, trader} {
		ledger.Mint(simToken0, holder, funding)
		ledger.Mint(simToken1, holder, funding)
	}

	reg, err := registry.New(&registry.Config{
		Tokens:  ledger,
		Logger:  poolLogger,
		Metrics: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}

	p, err := reg.Create(simToken0, simToken1, cfg.Fee, cfg.TickLower, cfg.TickUpper)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	startPrice := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(startPrice, cfg.InitialTick); err != nil {
		return fmt.Errorf("initial tick: %w", err)
	}
	if err := p.Initialize(startPrice); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	lp := &actor{ledger: ledger, addr: lpAddr, pool: p}
	if _, _, err := p.Mint(lpAddr, lpAddr, big.NewInt(cfg.MintAmount), lp, nil); err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	swapper := &actor{ledger: ledger, addr: trader, pool: p}
	for i, amount := range cfg.SwapAmounts {
		zeroForOne := i%2 == 0
		limit := swapLimit(p.SqrtPriceX96(), zeroForOne)
		if _, _, err := p.Swap(trader, trader, zeroForOne, big.NewInt(amount), limit, swapper, nil); err != nil {
			return fmt.Errorf("swap %d: %w", i, err)
		}
	}

	if _, _, err := p.Burn(lpAddr, p.LiquidityOf(lpAddr)); err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	collected0, collected1, err := p.Collect(lpAddr, lpAddr)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	poolLogger.Info("simulation finished",
		"collected0", collected0.String(), "collected1", collected1.String(),
		"finalSqrtPriceX96", p.SqrtPriceX96().String(), "finalTick", p.Tick())
	return nil
}

// swapLimit picks a permissive price limit one octave away from the
// current price, kept inside the global price bounds.
func swapLimit(current *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		limit := new(big.Int).Rsh(current, 1)
		if limit.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			limit = new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
		}
		return limit
	}
	limit := new(big.Int).Lsh(current, 1)
	if limit.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
		limit = new(big.Int).Sub(tickmath.MAX_SQRT_RATIO, big.NewInt(1))
	}
	return limit
}

// actor settles pool callbacks straight out of its ledger account.
type actor struct {
	ledger *token.Ledger
	addr   common.Address
	pool   *pool.Pool
}

func (a *actor) OnMintTokensNeeded(amount0, amount1 *big.Int, _ []byte) error {
	return a.pay(amount0, amount1)
}

func (a *actor) OnSwapTokensNeeded(amount0, amount1 *big.Int, _ []byte) error {
	return a.pay(amount0, amount1)
}

func (a *actor) pay(amount0, amount1 *big.Int) error {
	if amount0.Sign() > 0 {
		if err := a.ledger.Transfer(a.pool.Token0(), a.addr, a.pool.Address(), amount0); err != nil {
			return err
		}
	}
	if amount1.Sign() > 0 {
		return a.ledger.Transfer(a.pool.Token1(), a.addr, a.pool.Address(), amount1)
	}
	return nil
}

// zapAdapter exposes a zap logger through the pool's Logger interface.
type zapAdapter struct {
	sugar *zap.SugaredLogger
}

func (z zapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z zapAdapter) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z zapAdapter) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z zapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
