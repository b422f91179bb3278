package channel

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/qam-channel/internal/modem"
)

// NoiseVariance returns the mean squared deviation per quadrature component
// between received symbols and the reference symbols they were sent as.
func NoiseVariance(received, reference []complex128) (float64, error) {
	if len(received) != len(reference) {
		return 0, fmt.Errorf("%w: %d received, %d reference", ErrLengthMismatch, len(received), len(reference))
	}
	if len(received) == 0 {
		return 0, nil
	}

	var sumSq float64
	for i := range received {
		d := received[i] - reference[i]
		sumSq += real(d)*real(d) + imag(d)*imag(d)
	}
	return sumSq / float64(2*len(received)), nil
}

// EstimateEbN0 converts a measured per-component noise variance into Eb/N0
// in dB for order m. Zero variance reports +Inf.
func EstimateEbN0(m modem.Order, variance float64) float64 {
	if variance <= 1e-300 {
		return math.Inf(1)
	}
	return 10 * math.Log10(BitEnergy(m)/(2*variance))
}
