package channel

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jeongseonghan/qam-channel/internal/modem"
)

var (
	// ErrLengthMismatch indicates symbol sequences of different lengths.
	ErrLengthMismatch = errors.New("channel: sequence length mismatch")

	// ErrInvalidSNR indicates a NaN or infinite Eb/N0.
	ErrInvalidSNR = errors.New("channel: non-finite Eb/N0")
)

// CheckSNR reports whether snrDb is a usable Eb/N0 value.
func CheckSNR(snrDb float64) error {
	if math.IsNaN(snrDb) || math.IsInf(snrDb, 0) {
		return fmt.Errorf("%w: %v dB", ErrInvalidSNR, snrDb)
	}
	return nil
}

// NoiseSource draws standard normal variates. *rand.Rand satisfies it.
// A source is not safe for concurrent use; each worker needs its own.
type NoiseSource interface {
	NormFloat64() float64
}

type silentSource struct{}

func (silentSource) NormFloat64() float64 { return 0 }

// Silent is a NoiseSource that never perturbs symbols.
var Silent NoiseSource = silentSource{}

// NewSource returns a seeded normal source. A zero seed selects a
// time-based seed.
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// BitEnergy returns the average energy per bit Eb = (M-1) / (3 log2 M) of
// a square constellation built by modem.BuildConstellation. It is tied to
// the spacing-2 grid and must be re-derived if points are rescaled.
func BitEnergy(m modem.Order) float64 {
	return (float64(m) - 1) / (3 * float64(m.BitsPerSymbol()))
}

// NoiseDensity returns N0 = Eb / 10^(snrDb/10).
func NoiseDensity(m modem.Order, snrDb float64) float64 {
	return BitEnergy(m) / math.Pow(10, snrDb/10)
}

// AWGN adds white Gaussian noise at a given Eb/N0 to symbols of one
// modulation order.
type AWGN struct {
	order modem.Order
	src   NoiseSource
}

// NewAWGN creates a channel for order m drawing from src. A nil src
// selects a time-seeded source.
func NewAWGN(m modem.Order, src NoiseSource) (*AWGN, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("awgn channel: %w", err)
	}
	if src == nil {
		src = NewSource(0)
	}
	return &AWGN{order: m, src: src}, nil
}

// Order returns the modulation order the channel was built for.
func (c *AWGN) Order() modem.Order {
	return c.order
}

// Sigma returns the per-component noise standard deviation sqrt(N0/2).
func (c *AWGN) Sigma(snrDb float64) float64 {
	return math.Sqrt(NoiseDensity(c.order, snrDb) / 2)
}

// AddNoise returns a copy of symbols with independent zero-mean Gaussian
// noise of variance N0/2 added to each component. snrDb must pass CheckSNR.
func (c *AWGN) AddNoise(symbols []complex128, snrDb float64) []complex128 {
	sigma := c.Sigma(snrDb)
	out := make([]complex128, len(symbols))
	for i, s := range symbols {
		re := c.src.NormFloat64() * sigma
		im := c.src.NormFloat64() * sigma
		out[i] = s + complex(re, im)
	}
	return out
}

// AddNoisePoints promotes integer points to complex values and adds noise.
func (c *AWGN) AddNoisePoints(points []modem.Point, snrDb float64) []complex128 {
	return c.AddNoise(modem.ToComplex(points), snrDb)
}
