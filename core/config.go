// Package core implements the two symmetric protocol engines, block_send
// and block_receive, plus their CAR-streaming variants, on top of the dag,
// verify, bloom, car, and messages packages.
package core

import "math"

// Config holds the byte and round limits that bound one side of a protocol
// run, plus the false-positive-rate curve used to size the have-set bloom.
type Config struct {
	// ReceiveMaximum is the largest CAR file (in bytes) the non-streaming
	// receive path will accept in one round.
	ReceiveMaximum int
	// MaxBlockSize is the largest single block the receiving side will
	// accept; it is checked before the block's digest is verified, so it
	// bounds how many bytes a malicious or broken sender can make the
	// receiver hash per block.
	MaxBlockSize int
	// MaxRootsPerRound caps how many missing subgraph roots a receiver will
	// report back in one round.
	MaxRootsPerRound int
	// BloomFPR computes the target false-positive rate for a have-set
	// bloom sized for n elements.
	BloomFPR func(n uint64) float64
}

// DefaultConfig returns the spec's default limits: 2MB receive maximum, 1MB
// max block size, 1000 roots per round, and an FPR curve of 0.1/n for n
// elements, capped at 0.1%.
func DefaultConfig() Config {
	return Config{
		ReceiveMaximum:   2_000_000,
		MaxBlockSize:     1_000_000,
		MaxRootsPerRound: 1_000,
		BloomFPR: func(n uint64) float64 {
			return math.Min(0.001, 0.1/float64(n))
		},
	}
}

// Option mutates a Config; used with NewConfig to override only some
// defaults.
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithReceiveMaximum(n int) Option    { return func(c *Config) { c.ReceiveMaximum = n } }
func WithMaxBlockSize(n int) Option      { return func(c *Config) { c.MaxBlockSize = n } }
func WithMaxRootsPerRound(n int) Option  { return func(c *Config) { c.MaxRootsPerRound = n } }
func WithBloomFPR(f func(uint64) float64) Option {
	return func(c *Config) { c.BloomFPR = f }
}
