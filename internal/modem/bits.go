package modem

import "fmt"

// Bits are carried one per byte with value 0 or 1, most significant first.

// BytesToBits expands data into 8 bits per byte, MSB first.
func BytesToBits(data []byte) []byte {
	bits := make([]byte, len(data)*8)
	for i, b := range data {
		for j := 7; j >= 0; j-- {
			bits[i*8+(7-j)] = (b >> uint(j)) & 1
		}
	}
	return bits
}

// BitsToBytes packs bits back into bytes. len(bits) must be a multiple of 8.
func BitsToBytes(bits []byte) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits is not a multiple of 8", ErrBitCount, len(bits))
	}
	data := make([]byte, len(bits)/8)
	for i := range data {
		var b byte
		for j := 0; j < 8; j++ {
			bit := bits[i*8+j]
			if bit > 1 {
				return nil, fmt.Errorf("%w: bit %d = %d", ErrInvalidBit, i*8+j, bit)
			}
			b = (b << 1) | bit
		}
		data[i] = b
	}
	return data, nil
}

// StringToBits converts text to bits, 8 per byte, MSB first.
func StringToBits(s string) []byte {
	return BytesToBits([]byte(s))
}

// BitsToString is the inverse of StringToBits.
func BitsToString(bits []byte) (string, error) {
	data, err := BitsToBytes(bits)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func bitsToIndex(bits []byte) (int, error) {
	idx := 0
	for i, b := range bits {
		if b > 1 {
			return 0, fmt.Errorf("%w: bit %d = %d", ErrInvalidBit, i, b)
		}
		idx = (idx << 1) | int(b)
	}
	return idx, nil
}

func indexToBits(idx, numBits int) []byte {
	bits := make([]byte, numBits)
	for i := numBits - 1; i >= 0; i-- {
		bits[i] = byte(idx & 1)
		idx >>= 1
	}
	return bits
}
