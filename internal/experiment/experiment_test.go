package experiment

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/modem"
)

func silent(int) channel.NoiseSource { return channel.Silent }

func TestComputeBER(t *testing.T) {
	a := []byte{0, 1, 1, 0, 1, 0, 0, 1}
	complement := make([]byte, len(a))
	for i, b := range a {
		complement[i] = 1 - b
	}

	ber, err := ComputeBER(a, a)
	require.NoError(t, err)
	assert.Zero(t, ber)

	ber, err = ComputeBER(a, complement)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ber)

	ber, err = ComputeBER([]byte{0, 0, 0, 0}, []byte{0, 1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.25, ber)

	ber, err = ComputeBER(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, ber)

	_, err = ComputeBER(a, a[:7])
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		err    error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"grid", func(c *Config) { c.Decision = "grid" }, nil},
		{"no snr", func(c *Config) { c.SNR = nil }, ErrInvalidConfig},
		{"nan snr", func(c *Config) { c.SNR = []float64{math.NaN()} }, ErrInvalidConfig},
		{"inf snr", func(c *Config) { c.SNR = []float64{0, math.Inf(-1)} }, channel.ErrInvalidSNR},
		{"no orders", func(c *Config) { c.Orders = nil }, ErrInvalidConfig},
		{"odd order", func(c *Config) { c.Orders = []int{4, 15} }, modem.ErrInvalidOrder},
		{"non-square order", func(c *Config) { c.Orders = []int{32} }, modem.ErrInvalidOrder},
		{"zero trials", func(c *Config) { c.Trials = 0 }, ErrInvalidConfig},
		{"negative workers", func(c *Config) { c.Workers = -1 }, ErrInvalidConfig},
		{"bad decision", func(c *Config) { c.Decision = "soft" }, modem.ErrUnknownDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []float64{-2, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, cfg.SNR)
	assert.Equal(t, []int{4, 16, 64}, cfg.Orders)
	assert.Equal(t, 100, cfg.Trials)
	assert.Equal(t, 36, cfg.Points())

	// each call returns fresh slices
	cfg.SNR[0] = 99
	assert.Equal(t, -2.0, DefaultConfig().SNR[0])
}

func TestLink_PadsToSymbolBoundary(t *testing.T) {
	link, err := NewLink(modem.Mod64QAM, modem.DecisionNearest)
	require.NoError(t, err)

	bits := modem.StringToBits("A")
	f, err := link.Frame(bits)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Padding)
	assert.Len(t, f.Symbols, 2)

	recovered, err := link.Recover(f, f.Symbols)
	require.NoError(t, err)
	assert.Equal(t, bits, recovered)

	_, err = link.Recover(f, f.Symbols[:1])
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLink_TransmitSilent(t *testing.T) {
	for _, m := range []modem.Order{modem.ModQPSK, modem.Mod16QAM, modem.Mod64QAM} {
		link, err := NewLink(m, modem.DecisionGrid)
		require.NoError(t, err)
		assert.Equal(t, m, link.Order())

		bits := modem.StringToBits("Hello, QAM!")
		recovered, err := link.Transmit(bits, 20, channel.Silent)
		require.NoError(t, err)

		text, err := modem.BitsToString(recovered)
		require.NoError(t, err)
		assert.Equal(t, "Hello, QAM!", text)
	}
}

func TestLink_TransmitRejectsNonFiniteSNR(t *testing.T) {
	link, err := NewLink(modem.Mod16QAM, modem.DecisionNearest)
	require.NoError(t, err)

	for _, snr := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		bits, err := link.Transmit(modem.StringToBits("Hello"), snr, rand.New(rand.NewSource(1)))
		assert.ErrorIs(t, err, channel.ErrInvalidSNR, "snr %v", snr)
		assert.Nil(t, bits)
	}
}

func TestLink_RecoverRejectsNonFiniteSymbols(t *testing.T) {
	link, err := NewLink(modem.ModQPSK, modem.DecisionNearest)
	require.NoError(t, err)

	f, err := link.Frame(modem.StringToBits("A"))
	require.NoError(t, err)

	received := append([]complex128(nil), f.Symbols...)
	received[2] = complex(math.NaN(), 1)
	_, err = link.Recover(f, received)
	assert.ErrorIs(t, err, modem.ErrInvalidSymbol)
}

func TestRunner_LetterAScenario(t *testing.T) {
	cfg := Config{SNR: []float64{20}, Orders: []int{4}, Trials: 1, Workers: 1}
	r, err := NewRunner(cfg, WithSourceFactory(silent))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), modem.StringToBits("A"))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}}, res.BER)
	assert.Equal(t, []float64{20, -1, 4, -1, 0}, res.Flat())
}

func TestRunner_FlatLayout(t *testing.T) {
	cfg := Config{SNR: []float64{0, 5}, Orders: []int{4, 16, 64}, Trials: 2}
	r, err := NewRunner(cfg, WithSourceFactory(silent))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), modem.StringToBits("abc"))
	require.NoError(t, err)

	want := []float64{0, 5, -1, 4, 16, 64, -1, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, want, res.Flat())
}

func TestRunner_BERDecreasesWithSNR(t *testing.T) {
	cfg := Config{
		SNR:     []float64{0, 4, 8, 12},
		Orders:  []int{4, 16},
		Trials:  40,
		Workers: 4,
		Seed:    1,
	}
	r, err := NewRunner(cfg)
	require.NoError(t, err)

	msg := modem.StringToBits(strings.Repeat("The quick brown fox. ", 20))
	res, err := r.Run(context.Background(), msg)
	require.NoError(t, err)

	for oi, row := range res.BER {
		t.Logf("M=%d BER=%v", cfg.Orders[oi], row)
		assert.Greater(t, row[0], row[1], "M=%d: BER must fall from 0 to 4 dB", cfg.Orders[oi])
		for i := 1; i < len(row); i++ {
			assert.LessOrEqual(t, row[i], row[i-1], "M=%d: BER rose at %g dB", cfg.Orders[oi], cfg.SNR[i])
		}
		assert.Less(t, row[len(row)-1], 1e-3)
	}

	// higher order is worse at equal Eb/N0
	assert.Greater(t, res.BER[1][0], res.BER[0][0])
}

func TestRunner_SeedIsReproducibleAcrossWorkers(t *testing.T) {
	msg := modem.StringToBits("reproducible")
	run := func(workers int) *Result {
		cfg := Config{SNR: []float64{-2, 2, 6}, Orders: []int{4, 16, 64}, Trials: 5, Workers: workers, Seed: 99}
		r, err := NewRunner(cfg)
		require.NoError(t, err)
		res, err := r.Run(context.Background(), msg)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, run(1).BER, run(8).BER)
}

func TestRunner_Progress(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Progress
	)
	cfg := Config{SNR: []float64{0, 10}, Orders: []int{4, 16}, Trials: 3, Workers: 2, Seed: 3}
	r, err := NewRunner(cfg, WithProgress(func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), modem.StringToBits("progress"))
	require.NoError(t, err)

	require.Len(t, events, 4)
	last := events[len(events)-1]
	assert.Equal(t, 4, last.Done)
	assert.Equal(t, 4, last.Total)
	for _, e := range events {
		assert.Greater(t, e.NoiseVariance, 0.0)
	}
}

func TestRunner_GridMissAbortsRun(t *testing.T) {
	cfg := Config{SNR: []float64{-10}, Orders: []int{4}, Trials: 5, Seed: 5, Decision: "grid"}
	r, err := NewRunner(cfg)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), modem.StringToBits(strings.Repeat("x", 200)))
	assert.ErrorIs(t, err, modem.ErrDecisionMiss)
}

func TestRunner_Errors(t *testing.T) {
	_, err := NewRunner(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	r, err := NewRunner(Config{SNR: []float64{0}, Orders: []int{4}, Trials: 1})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, modem.StringToBits("cancelled"))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
