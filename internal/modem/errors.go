package modem

import "errors"

// Sentinel errors returned by the modem package. Callers should branch on
// them with errors.Is; returned errors carry extra context via %w.
var (
	// ErrInvalidOrder indicates a modulation order that is not a power of
	// four greater than or equal to 4.
	ErrInvalidOrder = errors.New("modem: invalid modulation order")

	// ErrBitCount indicates a bit sequence whose length is not a multiple of
	// the group size (bits per symbol, or 8 for text).
	ErrBitCount = errors.New("modem: bit count not aligned")

	// ErrInvalidBit indicates a bit sequence element other than 0 or 1.
	ErrInvalidBit = errors.New("modem: bit value out of range")

	// ErrGrayLookup indicates a symbol value with no Gray code entry.
	// It can only be produced by an inconsistent constellation.
	ErrGrayLookup = errors.New("modem: gray code lookup failed")

	// ErrDecisionMiss indicates a received symbol that falls outside every
	// decision region of the grid policy.
	ErrDecisionMiss = errors.New("modem: symbol outside decision regions")

	// ErrInvalidSymbol indicates a received symbol with a NaN or infinite
	// component.
	ErrInvalidSymbol = errors.New("modem: non-finite symbol")

	// ErrUnknownDecision indicates an unsupported decision policy name.
	ErrUnknownDecision = errors.New("modem: unknown decision policy")
)
