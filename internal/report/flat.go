package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jeongseonghan/qam-channel/internal/experiment"
)

var (
	// ErrMalformed indicates a flat BER file that cannot be parsed.
	ErrMalformed = errors.New("report: malformed BER file")

	// ErrSentinelCollision indicates a sweep value equal to the section
	// sentinel, which would make the flat layout ambiguous.
	ErrSentinelCollision = errors.New("report: sweep value collides with sentinel")
)

// FormatValue renders v with six significant digits, switching to exponent
// form for very small or large magnitudes.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteFlat writes res one value per line: SNR values, -1, orders, -1,
// then BER values with order as the outer index.
func WriteFlat(w io.Writer, res *experiment.Result) error {
	for _, snr := range res.SNR {
		if snr == experiment.Sentinel {
			return fmt.Errorf("%w: SNR %g", ErrSentinelCollision, snr)
		}
	}
	if len(res.BER) != len(res.Orders) {
		return fmt.Errorf("%w: %d BER rows for %d orders", ErrMalformed, len(res.BER), len(res.Orders))
	}
	for i, row := range res.BER {
		if len(row) != len(res.SNR) {
			return fmt.Errorf("%w: BER row %d has %d values for %d SNR points", ErrMalformed, i, len(row), len(res.SNR))
		}
	}

	bw := bufio.NewWriter(w)
	for _, v := range res.Flat() {
		if _, err := bw.WriteString(FormatValue(v) + "\n"); err != nil {
			return fmt.Errorf("write value: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// WriteFile creates or truncates path and writes res in flat layout.
func WriteFile(path string, res *experiment.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if err := WriteFlat(f, res); err != nil {
		f.Close()
		return fmt.Errorf("write result file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close result file: %w", err)
	}
	return nil
}

// ParseFlat reads a flat BER file written by WriteFlat.
func ParseFlat(r io.Reader) (*experiment.Result, error) {
	var (
		sections [3][]float64
		section  int
		line     int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if v == experiment.Sentinel && section < 2 {
			section++
			continue
		}
		sections[section] = append(sections[section], v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read BER file: %w", err)
	}
	if section != 2 {
		return nil, fmt.Errorf("%w: found %d of 2 sentinels", ErrMalformed, section)
	}

	snr, orders, ber := sections[0], sections[1], sections[2]
	if len(snr) == 0 || len(orders) == 0 {
		return nil, fmt.Errorf("%w: empty sweep section", ErrMalformed)
	}
	if len(ber) != len(snr)*len(orders) {
		return nil, fmt.Errorf("%w: %d BER values for %d x %d points", ErrMalformed, len(ber), len(orders), len(snr))
	}

	res := &experiment.Result{
		SNR:    snr,
		Orders: make([]int, len(orders)),
		BER:    make([][]float64, len(orders)),
	}
	for i, m := range orders {
		if m != math.Trunc(m) {
			return nil, fmt.Errorf("%w: order %g is not an integer", ErrMalformed, m)
		}
		res.Orders[i] = int(m)
		res.BER[i] = ber[i*len(snr) : (i+1)*len(snr)]
	}
	return res, nil
}

// ReadFile parses the flat BER file at path.
func ReadFile(path string) (*experiment.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()
	return ParseFlat(f)
}
