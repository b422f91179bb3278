package modem

import (
	"fmt"
	"math"
	"strings"
)

// Decision selects how a received symbol is resolved to a constellation
// point.
type Decision int

const (
	// DecisionNearest picks the point at minimum Euclidean distance. It is
	// defined for every finite input.
	DecisionNearest Decision = iota

	// DecisionGrid reproduces fixed square regions of half-width Spacing/2
	// around every point, checked in construction order. Symbols outside
	// all regions yield ErrDecisionMiss.
	DecisionGrid
)

// ParseDecision parses a policy name: "nearest" (alias "euclidean") or
// "grid". Case and surrounding space are ignored, and the empty string
// selects DecisionNearest.
func ParseDecision(name string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nearest", "euclidean":
		return DecisionNearest, nil
	case "grid":
		return DecisionGrid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDecision, name)
	}
}

// String returns the policy name accepted by ParseDecision.
func (d Decision) String() string {
	switch d {
	case DecisionNearest:
		return "nearest"
	case DecisionGrid:
		return "grid"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Decide returns the constellation index chosen for symbol. Symbols with a
// NaN or infinite component yield ErrInvalidSymbol under every policy.
func (c *Constellation) Decide(symbol complex128, d Decision) (int, error) {
	if !isFinite(real(symbol)) || !isFinite(imag(symbol)) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSymbol, symbol)
	}
	switch d {
	case DecisionNearest:
		return c.nearest(symbol), nil
	case DecisionGrid:
		return c.grid(symbol)
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownDecision, d)
	}
}

func (c *Constellation) nearest(symbol complex128) int {
	minDist := math.MaxFloat64
	minIdx := 0

	re, im := real(symbol), imag(symbol)
	for i, p := range c.points {
		dx := re - float64(p.I)
		dy := im - float64(p.Q)
		if d := dx*dx + dy*dy; d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return minIdx
}

func (c *Constellation) grid(symbol complex128) (int, error) {
	half := c.spacing / 2
	re, im := real(symbol), imag(symbol)
	for i, p := range c.points {
		x, y := float64(p.I), float64(p.Q)
		if re >= x-half && re <= x+half && im >= y-half && im <= y+half {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrDecisionMiss, symbol)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
