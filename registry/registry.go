// Package registry creates and indexes pools. It owns parameter
// validation at creation time; pools trust what it hands them.
package registry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/blake3"

	"github.com/defistate/rangepool-go/calculator/tickmath"
	"github.com/defistate/rangepool-go/pool"
	"github.com/defistate/rangepool-go/token"
)

const maxFeePips = 1_000_000

var (
	ErrPoolExists       = errors.New("registry: pool already exists")
	ErrIdenticalTokens  = errors.New("registry: tokens must differ")
	ErrTokenOrder       = errors.New("registry: tokens must be in canonical order")
	ErrInvalidTickRange = errors.New("registry: invalid tick range")
	ErrInvalidFee       = errors.New("registry: invalid fee")
)

// Config holds the dependencies handed to every pool the registry creates.
type Config struct {
	Tokens  token.Transferer
	Logger  pool.Logger           // optional
	Metrics prometheus.Registerer // optional
}

func (c *Config) validate() error {
	if c.Tokens == nil {
		return errors.New("config: Tokens cannot be nil")
	}
	return nil
}

// Registry indexes pools by their derived ID.
type Registry struct {
	tokens  token.Transferer
	logger  pool.Logger
	metrics prometheus.Registerer
	pools   map[common.Hash]*pool.Pool
}

// New constructs an empty registry, returning an error if the config is invalid.
func New(cfg *Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Registry{
		tokens:  cfg.Tokens,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		pools:   make(map[common.Hash]*pool.Pool),
	}, nil
}

// PoolID derives the unique identifier of a pool from its five immutable
// parameters.
func PoolID(token0, token1 common.Address, fee uint64, tickLower, tickUpper int64) common.Hash {
	h := blake3.New()
	h.Write(token0[:])
	h.Write(token1[:])

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], fee)
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(tickLower))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(tickUpper))
	h.Write(scratch[:])

	var id common.Hash
	h.Digest().Read(id[:])
	return id
}

// Create validates the parameters, derives the pool's identity and
// constructs the pool. The returned pool still needs Initialize before it
// can trade.
func (r *Registry) Create(token0, token1 common.Address, fee uint64, tickLower, tickUpper int64) (*pool.Pool, error) {
	if token0 == token1 {
		return nil, ErrIdenticalTokens
	}
	if bytes.Compare(token0[:], token1[:]) > 0 {
		return nil, ErrTokenOrder
	}
	if fee == 0 || fee >= maxFeePips {
		return nil, ErrInvalidFee
	}
	if tickLower >= tickUpper || tickLower < tickmath.MIN_TICK || tickUpper > tickmath.MAX_TICK {
		return nil, ErrInvalidTickRange
	}

	id := PoolID(token0, token1, fee, tickLower, tickUpper)
	if _, exists := r.pools[id]; exists {
		return nil, ErrPoolExists
	}

	p, err := pool.New(&pool.Config{
		Token0:    token0,
		Token1:    token1,
		Fee:       fee,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Address:   common.BytesToAddress(id[:20]),
		Tokens:    r.tokens,
		Logger:    r.logger,
		Registry:  r.metrics,
	})
	if err != nil {
		return nil, err
	}

	r.pools[id] = p
	if r.logger != nil {
		r.logger.Info("pool created",
			"id", id, "token0", token0, "token1", token1,
			"fee", fee, "tickLower", tickLower, "tickUpper", tickUpper)
	}
	return p, nil
}

// Get returns the pool with the given ID, if it exists.
func (r *Registry) Get(id common.Hash) (*pool.Pool, bool) {
	p, ok := r.pools[id]
	return p, ok
}

// Pools returns every registered pool in a stable order.
func (r *Registry) Pools() []*pool.Pool {
	ids := make([]common.Hash, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	pools := make([]*pool.Pool, len(ids))
	for i, id := range ids {
		pools[i] = r.pools[id]
	}
	return pools
}
