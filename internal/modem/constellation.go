package modem

import (
	"fmt"
	"math"
	"math/bits"
)

// Order is a square QAM modulation order M, the number of constellation
// points. Valid orders are powers of four: 4, 16, 64, 256, ...
type Order int

const (
	ModQPSK   Order = 4   // 2 bits per symbol
	Mod16QAM  Order = 16  // 4 bits per symbol
	Mod64QAM  Order = 64  // 6 bits per symbol
	Mod256QAM Order = 256 // 8 bits per symbol

	// MaxOrder bounds the constellation size kept in memory.
	MaxOrder Order = 1 << 20
)

// Validate reports whether m is a supported square constellation order.
func (m Order) Validate() error {
	if m < ModQPSK || m > MaxOrder {
		return fmt.Errorf("%w: %d is outside [%d, %d]", ErrInvalidOrder, int(m), int(ModQPSK), int(MaxOrder))
	}
	if m&(m-1) != 0 {
		return fmt.Errorf("%w: %d is not a power of two", ErrInvalidOrder, int(m))
	}
	if bits.TrailingZeros(uint(m))%2 != 0 {
		return fmt.Errorf("%w: %d is not a perfect square", ErrInvalidOrder, int(m))
	}
	return nil
}

// BitsPerSymbol returns k = log2(M). The result is meaningful only for
// orders that pass Validate.
func (m Order) BitsPerSymbol() int {
	return bits.TrailingZeros(uint(m))
}

// String returns the modulation name.
func (m Order) String() string {
	switch m {
	case ModQPSK:
		return "QPSK"
	default:
		return fmt.Sprintf("%d-QAM", int(m))
	}
}

// Point is an integer-valued constellation point.
type Point struct {
	I int // in-phase (real) component
	Q int // quadrature (imaginary) component
}

// Complex promotes the point to a complex value.
func (p Point) Complex() complex128 {
	return complex(float64(p.I), float64(p.Q))
}

// ToComplex promotes a sequence of integer points to complex values.
func ToComplex(points []Point) []complex128 {
	out := make([]complex128, len(points))
	for i, p := range points {
		out[i] = p.Complex()
	}
	return out
}

// BuildConstellation returns the 2^bitsPerSymbol points of a square
// constellation with spacing 2 between adjacent levels. Points are
// enumerated with the quadrature axis as the outer loop and the in-phase
// axis as the inner loop, both descending. Gray codes are assigned by index
// in this order, so it must not change.
func BuildConstellation(bitsPerSymbol int) ([]Point, error) {
	if bitsPerSymbol < 2 || bitsPerSymbol%2 != 0 {
		return nil, fmt.Errorf("%w: %d bits per symbol", ErrInvalidOrder, bitsPerSymbol)
	}
	if bitsPerSymbol > MaxOrder.BitsPerSymbol() {
		return nil, fmt.Errorf("%w: %d bits per symbol", ErrInvalidOrder, bitsPerSymbol)
	}

	n := 1 << (bitsPerSymbol / 2)
	levels := make([]int, 0, n)
	for v := n - 1; v >= -n; v -= 2 {
		levels = append(levels, v)
	}

	points := make([]Point, 0, n*n)
	for _, q := range levels {
		for _, i := range levels {
			points = append(points, Point{I: i, Q: q})
		}
	}
	return points, nil
}

// BuildGrayCodes returns the binary-reflected Gray code of 0..n-1.
func BuildGrayCodes(n int) []int {
	codes := make([]int, n)
	for i := range codes {
		codes[i] = i ^ (i >> 1)
	}
	return codes
}

// Constellation holds the points and Gray mapping for one modulation order.
// It is immutable after construction and safe for concurrent use.
type Constellation struct {
	Order   Order
	points  []Point
	gray    []int   // constellation index -> symbol value
	index   []int   // symbol value -> constellation index
	spacing float64 // grid decision width
}

// NewConstellation builds the constellation and Gray tables for order m.
func NewConstellation(m Order) (*Constellation, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	points, err := BuildConstellation(m.BitsPerSymbol())
	if err != nil {
		return nil, err
	}

	c := &Constellation{
		Order:  m,
		points: points,
		gray:   BuildGrayCodes(len(points)),
		index:  make([]int, len(points)),
	}
	for i := range c.index {
		c.index[i] = -1
	}
	for j, g := range c.gray {
		if g < 0 || g >= len(c.index) || c.index[g] != -1 {
			return nil, fmt.Errorf("%w: code %d at index %d", ErrGrayLookup, g, j)
		}
		c.index[g] = j
	}
	c.spacing = math.Abs(float64(points[1].I - points[2].I))
	return c, nil
}

// BitsPerSymbol returns the number of bits carried by one symbol.
func (c *Constellation) BitsPerSymbol() int {
	return c.Order.BitsPerSymbol()
}

// Points returns a copy of the constellation points in construction order.
func (c *Constellation) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// GrayCodes returns a copy of the Gray code table.
func (c *Constellation) GrayCodes() []int {
	out := make([]int, len(c.gray))
	copy(out, c.gray)
	return out
}

// Spacing returns the width of a grid decision region.
func (c *Constellation) Spacing() float64 {
	return c.spacing
}

// Map maps one group of BitsPerSymbol bits (MSB first) to its point.
func (c *Constellation) Map(group []byte) (Point, error) {
	if len(group) != c.BitsPerSymbol() {
		return Point{}, fmt.Errorf("%w: group of %d bits, want %d", ErrBitCount, len(group), c.BitsPerSymbol())
	}
	value, err := bitsToIndex(group)
	if err != nil {
		return Point{}, err
	}
	j, err := c.lookup(value)
	if err != nil {
		return Point{}, err
	}
	return c.points[j], nil
}

// Demap resolves a received symbol to a constellation index using the
// given policy and returns its bit group.
func (c *Constellation) Demap(symbol complex128, d Decision) ([]byte, error) {
	j, err := c.Decide(symbol, d)
	if err != nil {
		return nil, err
	}
	return indexToBits(c.gray[j], c.BitsPerSymbol()), nil
}

func (c *Constellation) lookup(value int) (int, error) {
	if value < 0 || value >= len(c.index) || c.index[value] < 0 {
		return 0, fmt.Errorf("%w: symbol value %d", ErrGrayLookup, value)
	}
	return c.index[value], nil
}
