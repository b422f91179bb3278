package experiment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/modem"
)

// Result holds averaged BER values for every (order, SNR) point.
type Result struct {
	SNR    []float64   `json:"snr"`
	Orders []int       `json:"orders"`
	BER    [][]float64 `json:"ber"` // BER[order][snr]
}

// Sentinel separates the sections of a flattened result.
const Sentinel = -1

// Flat returns the SNR values, a sentinel, the orders, a sentinel and the
// BER values with order as the outer index.
func (r *Result) Flat() []float64 {
	out := make([]float64, 0, len(r.SNR)+len(r.Orders)+len(r.SNR)*len(r.Orders)+2)
	out = append(out, r.SNR...)
	out = append(out, Sentinel)
	for _, m := range r.Orders {
		out = append(out, float64(m))
	}
	out = append(out, Sentinel)
	for _, row := range r.BER {
		out = append(out, row...)
	}
	return out
}

// Progress reports one finished sweep point.
type Progress struct {
	Order         int     `json:"order"`
	SNR           float64 `json:"snr"`
	BER           float64 `json:"ber"`
	NoiseVariance float64 `json:"noiseVariance"` // measured per component
	Done          int     `json:"done"`
	Total         int     `json:"total"`
}

// ProgressFunc is called once per finished point. Calls are serialized.
type ProgressFunc func(p Progress)

// SourceFactory returns the noise source owned by one sweep point.
type SourceFactory func(point int) channel.NoiseSource

// Option configures a Runner.
type Option func(*Runner)

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithSourceFactory replaces the seeded per-point noise sources.
func WithSourceFactory(fn SourceFactory) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sources = fn
		}
	}
}

// Runner executes Monte-Carlo BER sweeps.
type Runner struct {
	cfg      Config
	decision modem.Decision
	workers  int
	sources  SourceFactory
	progress ProgressFunc
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	d, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		decision: d,
		workers:  cfg.Workers,
	}
	if r.workers == 0 {
		r.workers = runtime.NumCPU()
	}

	base := cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}
	r.sources = func(point int) channel.NoiseSource {
		return rand.New(rand.NewSource(base + int64(point)))
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

type job struct {
	point    int
	orderIdx int
	snrIdx   int
	link     *Link
	frame    *Frame
}

// Run transmits message bits through every (order, SNR) point, averaging
// BER over the configured number of trials. Each point owns its noise
// source, so results for a fixed seed do not depend on scheduling.
func (r *Runner) Run(ctx context.Context, bits []byte) (*Result, error) {
	if len(bits) == 0 {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	log.Printf("Sweep started: %d orders x %d SNR points, %d trials, %d bits, decision=%s",
		len(r.cfg.Orders), len(r.cfg.SNR), r.cfg.Trials, len(bits), r.decision)

	res := &Result{
		SNR:    append([]float64(nil), r.cfg.SNR...),
		Orders: append([]int(nil), r.cfg.Orders...),
		BER:    make([][]float64, len(r.cfg.Orders)),
	}

	var jobs []job
	for oi, m := range r.cfg.Orders {
		link, err := NewLink(modem.Order(m), r.decision)
		if err != nil {
			return nil, err
		}
		frame, err := link.Frame(bits)
		if err != nil {
			return nil, err
		}
		res.BER[oi] = make([]float64, len(r.cfg.SNR))
		for si := range r.cfg.SNR {
			jobs = append(jobs, job{
				point:    oi*len(r.cfg.SNR) + si,
				orderIdx: oi,
				snrIdx:   si,
				link:     link,
				frame:    frame,
			})
		}
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			snr := r.cfg.SNR[j.snrIdx]
			ber, variance, err := r.runPoint(gctx, j, snr)
			if err != nil {
				return fmt.Errorf("order %d, snr %g dB: %w", r.cfg.Orders[j.orderIdx], snr, err)
			}
			res.BER[j.orderIdx][j.snrIdx] = ber

			mu.Lock()
			defer mu.Unlock()
			done++
			if r.progress != nil {
				r.progress(Progress{
					Order:         r.cfg.Orders[j.orderIdx],
					SNR:           snr,
					BER:           ber,
					NoiseVariance: variance,
					Done:          done,
					Total:         len(jobs),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("Sweep finished: %d points in %s", len(jobs), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (r *Runner) runPoint(ctx context.Context, j job, snr float64) (float64, float64, error) {
	ch, err := channel.NewAWGN(j.link.Order(), r.sources(j.point))
	if err != nil {
		return 0, 0, err
	}

	var sumBER, sumVar float64
	for t := 0; t < r.cfg.Trials; t++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		noisy := ch.AddNoise(j.frame.Symbols, snr)
		recovered, err := j.link.Recover(j.frame, noisy)
		if err != nil {
			return 0, 0, fmt.Errorf("trial %d: %w", t, err)
		}
		ber, err := ComputeBER(j.frame.Bits, recovered)
		if err != nil {
			return 0, 0, fmt.Errorf("trial %d: %w", t, err)
		}
		variance, err := channel.NoiseVariance(noisy, j.frame.Symbols)
		if err != nil {
			return 0, 0, fmt.Errorf("trial %d: %w", t, err)
		}
		sumBER += ber
		sumVar += variance
	}

	n := float64(r.cfg.Trials)
	return sumBER / n, sumVar / n, nil
}
