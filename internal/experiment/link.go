package experiment

import (
	"fmt"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/modem"
)

// ComputeBER returns the fraction of positions where a and b differ.
// Both sequences must have the same length; empty sequences yield 0.
func ComputeBER(a, b []byte) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	errs := 0
	for i := range a {
		if a[i] != b[i] {
			errs++
		}
	}
	return float64(errs) / float64(len(a)), nil
}

// Link is the modulator and demodulator pair for one modulation order,
// sharing a single constellation.
type Link struct {
	order       modem.Order
	modulator   *modem.Modulator
	demodulator *modem.Demodulator
}

// NewLink builds the constellation for order m once and wires both ends.
func NewLink(m modem.Order, d modem.Decision) (*Link, error) {
	c, err := modem.NewConstellation(m)
	if err != nil {
		return nil, err
	}
	return &Link{
		order:       m,
		modulator:   modem.NewModulator(c),
		demodulator: modem.NewDemodulator(c, d),
	}, nil
}

// Order returns the link's modulation order.
func (l *Link) Order() modem.Order {
	return l.order
}

// Frame is a message modulated once and reused across trials.
type Frame struct {
	Bits    []byte       // original message bits
	Padding int          // zero bits appended to align with the symbol size
	Symbols []complex128 // modulated symbols
}

// Frame pads bits with zeros to a whole number of symbols and modulates
// them.
func (l *Link) Frame(bits []byte) (*Frame, error) {
	k := l.order.BitsPerSymbol()
	padding := 0
	if rem := len(bits) % k; rem != 0 {
		padding = k - rem
	}

	padded := make([]byte, len(bits)+padding)
	copy(padded, bits)

	points, err := l.modulator.Modulate(padded)
	if err != nil {
		return nil, fmt.Errorf("modulate %v: %w", l.order, err)
	}
	return &Frame{
		Bits:    bits,
		Padding: padding,
		Symbols: modem.ToComplex(points),
	}, nil
}

// Recover demodulates received symbols of f and strips the padding.
func (l *Link) Recover(f *Frame, received []complex128) ([]byte, error) {
	bits, err := l.demodulator.Demodulate(received)
	if err != nil {
		return nil, fmt.Errorf("demodulate %v: %w", l.order, err)
	}
	if want := len(f.Bits) + f.Padding; len(bits) != want {
		return nil, fmt.Errorf("%w: recovered %d bits, sent %d", ErrLengthMismatch, len(bits), want)
	}
	return bits[:len(f.Bits)], nil
}

// Transmit sends bits through one noisy channel use at snrDb and returns
// the recovered bits.
func (l *Link) Transmit(bits []byte, snrDb float64, src channel.NoiseSource) ([]byte, error) {
	if err := channel.CheckSNR(snrDb); err != nil {
		return nil, err
	}
	f, err := l.Frame(bits)
	if err != nil {
		return nil, err
	}
	ch, err := channel.NewAWGN(l.order, src)
	if err != nil {
		return nil, err
	}
	return l.Recover(f, ch.AddNoise(f.Symbols, snrDb))
}
