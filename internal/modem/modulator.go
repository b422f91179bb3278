package modem

import "fmt"

// Modulator maps bit sequences onto constellation symbols.
type Modulator struct {
	constellation *Constellation
}

// NewModulator creates a modulator over a shared constellation.
func NewModulator(c *Constellation) *Modulator {
	return &Modulator{constellation: c}
}

// Constellation returns the constellation the modulator maps onto.
func (m *Modulator) Constellation() *Constellation {
	return m.constellation
}

// Modulate groups bits into BitsPerSymbol chunks, MSB first, and emits the
// point whose Gray code equals each chunk value.
// len(bits) must be a multiple of BitsPerSymbol.
func (m *Modulator) Modulate(bits []byte) ([]Point, error) {
	k := m.constellation.BitsPerSymbol()
	if len(bits)%k != 0 {
		return nil, fmt.Errorf("%w: %d bits is not a multiple of %d", ErrBitCount, len(bits), k)
	}

	numSymbols := len(bits) / k
	symbols := make([]Point, numSymbols)
	for i := 0; i < numSymbols; i++ {
		p, err := m.constellation.Map(bits[i*k : (i+1)*k])
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		symbols[i] = p
	}
	return symbols, nil
}

// Demodulator maps received symbols back to bits.
type Demodulator struct {
	constellation *Constellation
	decision      Decision
}

// NewDemodulator creates a demodulator over a shared constellation.
func NewDemodulator(c *Constellation, d Decision) *Demodulator {
	return &Demodulator{
		constellation: c,
		decision:      d,
	}
}

// Decision returns the demodulator's decision policy.
func (d *Demodulator) Decision() Decision {
	return d.decision
}

// Demodulate resolves every symbol to a constellation point and expands its
// Gray code value to BitsPerSymbol bits, MSB first.
func (d *Demodulator) Demodulate(symbols []complex128) ([]byte, error) {
	k := d.constellation.BitsPerSymbol()
	bits := make([]byte, 0, len(symbols)*k)

	for i, s := range symbols {
		group, err := d.constellation.Demap(s, d.decision)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		bits = append(bits, group...)
	}
	return bits, nil
}

// Modulate is a convenience wrapper building the constellation for order m.
func Modulate(bits []byte, m Order) ([]Point, error) {
	c, err := NewConstellation(m)
	if err != nil {
		return nil, err
	}
	return NewModulator(c).Modulate(bits)
}

// Demodulate is a convenience wrapper building the constellation for order m.
func Demodulate(symbols []complex128, m Order, d Decision) ([]byte, error) {
	c, err := NewConstellation(m)
	if err != nil {
		return nil, err
	}
	return NewDemodulator(c, d).Demodulate(symbols)
}
