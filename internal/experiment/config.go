package experiment

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/modem"
)

var (
	// ErrInvalidConfig indicates a sweep configuration that cannot run.
	ErrInvalidConfig = errors.New("experiment: invalid configuration")

	// ErrEmptyMessage indicates a message with no bits to transmit.
	ErrEmptyMessage = errors.New("experiment: empty message")

	// ErrLengthMismatch indicates original and recovered bit sequences of
	// different lengths.
	ErrLengthMismatch = errors.New("experiment: bit sequence length mismatch")
)

// Config describes one Monte-Carlo sweep over modulation orders and SNR.
type Config struct {
	SNR      []float64 `json:"snr"`      // Eb/N0 values in dB
	Orders   []int     `json:"orders"`   // modulation orders M
	Trials   int       `json:"trials"`   // trials averaged per point
	Workers  int       `json:"workers"`  // concurrent points, 0 = NumCPU
	Seed     int64     `json:"seed"`     // base noise seed, 0 = time-seeded
	Decision string    `json:"decision"` // "nearest" or "grid"
}

// DefaultConfig returns the reference sweep: Eb/N0 -2 and 0..10 dB over
// QPSK, 16-QAM and 64-QAM with 100 trials per point.
func DefaultConfig() Config {
	return Config{
		SNR:      []float64{-2, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		Orders:   []int{4, 16, 64},
		Trials:   100,
		Workers:  runtime.NumCPU(),
		Decision: modem.DecisionNearest.String(),
	}
}

// Validate checks the configuration and returns the parsed decision policy.
func (c Config) Validate() (modem.Decision, error) {
	if len(c.SNR) == 0 {
		return 0, fmt.Errorf("%w: no SNR values", ErrInvalidConfig)
	}
	for i, snr := range c.SNR {
		if err := channel.CheckSNR(snr); err != nil {
			return 0, fmt.Errorf("%w: SNR[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	if len(c.Orders) == 0 {
		return 0, fmt.Errorf("%w: no modulation orders", ErrInvalidConfig)
	}
	for i, m := range c.Orders {
		if err := modem.Order(m).Validate(); err != nil {
			return 0, fmt.Errorf("%w: Orders[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	if c.Trials < 1 {
		return 0, fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, c.Trials)
	}
	if c.Workers < 0 {
		return 0, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	d, err := modem.ParseDecision(c.Decision)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return d, nil
}

// Points returns the number of (order, SNR) points in the sweep.
func (c Config) Points() int {
	return len(c.Orders) * len(c.SNR)
}
