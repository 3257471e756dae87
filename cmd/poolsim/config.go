package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// simConfig holds the simulation parameters loaded from flags, env, or
// config file.
type simConfig struct {
	Fee         uint64
	TickLower   int64
	TickUpper   int64
	InitialTick int64
	MintAmount  int64
	SwapAmounts []int64
	LogLevel    string
}

// loadConfig merges config file, environment variables, and flags.
func loadConfig(cfgFile string, flags *pflag.FlagSet) (simConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee", uint64(3000))
	v.SetDefault("tick-lower", int64(-887220))
	v.SetDefault("tick-upper", int64(887220))
	v.SetDefault("initial-tick", int64(0))
	v.SetDefault("mint-amount", int64(1_000_000_000))
	v.SetDefault("swap-amount", []int64{10_000, 25_000, 50_000})
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return simConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return simConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("poolsim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return simConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	swapAmounts := make([]int64, 0)
	for _, raw := range v.GetIntSlice("swap-amount") {
		swapAmounts = append(swapAmounts, int64(raw))
	}

	cfg := simConfig{
		Fee:         v.GetUint64("fee"),
		TickLower:   v.GetInt64("tick-lower"),
		TickUpper:   v.GetInt64("tick-upper"),
		InitialTick: v.GetInt64("initial-tick"),
		MintAmount:  v.GetInt64("mint-amount"),
		SwapAmounts: swapAmounts,
		LogLevel:    v.GetString("log-level"),
	}

	if cfg.MintAmount <= 0 {
		return simConfig{}, fmt.Errorf("mint-amount must be positive")
	}
	for _, amount := range cfg.SwapAmounts {
		if amount == 0 {
			return simConfig{}, fmt.Errorf("swap amounts must be nonzero")
		}
	}
	return cfg, nil
}
