package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeongseonghan/qam-channel/internal/experiment"
	"github.com/jeongseonghan/qam-channel/internal/modem"
	"github.com/jeongseonghan/qam-channel/internal/report"
)

// Run states reported by the API and over WebSocket.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Per-request limits of the sweep API.
const (
	MaxRequestBytes = 1 << 20
	MaxTrials       = 100000
	MaxWorkers      = 256
)

// SweepRun is the state of one submitted sweep.
type SweepRun struct {
	ID       string             `json:"id"`
	Status   string             `json:"status"`
	Error    string             `json:"error,omitempty"`
	Message  string             `json:"message"`
	Config   experiment.Config  `json:"experiment"`
	Result   *experiment.Result `json:"result,omitempty"`
	Started  time.Time          `json:"started"`
	Finished time.Time          `json:"finished,omitempty"`
}

// SweepRequest is the body of POST /api/sweep. Experiment fields left out
// keep the server defaults.
type SweepRequest struct {
	Message    string          `json:"message"`
	Experiment json.RawMessage `json:"experiment,omitempty"`
}

// Handlers holds the HTTP API handlers.
type Handlers struct {
	wsHub    *WSHub
	defaults experiment.Config
	opts     []experiment.Option

	runs map[string]*SweepRun
	mu   sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandlers creates API handlers running sweeps with the given default
// configuration. opts are passed to every runner.
func NewHandlers(defaults experiment.Config, opts ...experiment.Option) *Handlers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		wsHub:    NewWSHub(),
		defaults: defaults,
		opts:     opts,
		runs:     make(map[string]*SweepRun),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Hub returns the WebSocket hub.
func (h *Handlers) Hub() *WSHub {
	return h.wsHub
}

// Close cancels running sweeps and waits for them to stop.
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	// Drain client messages until the connection closes
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Handlers) requestConfig(raw json.RawMessage) (experiment.Config, error) {
	cfg := h.defaults
	cfg.SNR = slices.Clone(cfg.SNR)
	cfg.Orders = slices.Clone(cfg.Orders)
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse experiment: %w", err)
	}
	return cfg, nil
}

// HandleSweep validates a sweep request and starts it in the background.
func (h *Handlers) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, experiment.ErrEmptyMessage.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := h.requestConfig(req.Experiment)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Trials > MaxTrials {
		http.Error(w, fmt.Sprintf("trials must not exceed %d, got %d", MaxTrials, cfg.Trials), http.StatusBadRequest)
		return
	}
	if cfg.Workers > MaxWorkers {
		http.Error(w, fmt.Sprintf("workers must not exceed %d, got %d", MaxWorkers, cfg.Workers), http.StatusBadRequest)
		return
	}

	run := &SweepRun{
		ID:      uuid.New().String(),
		Status:  StatusRunning,
		Message: req.Message,
		Config:  cfg,
		Started: time.Now(),
	}

	opts := append([]experiment.Option{
		experiment.WithProgress(func(p experiment.Progress) {
			h.wsHub.BroadcastProgress(run.ID, p)
		}),
	}, h.opts...)
	runner, err := experiment.NewRunner(cfg, opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.runs[run.ID] = run
	h.mu.Unlock()

	log.Printf("Sweep %s submitted: %d points", run.ID, cfg.Points())
	h.wsHub.BroadcastStatus(run.ID, StatusRunning, fmt.Sprintf("Sweeping %d points...", cfg.Points()))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		res, err := runner.Run(h.ctx, modem.StringToBits(req.Message))

		h.mu.Lock()
		run.Finished = time.Now()
		if err != nil {
			run.Status = StatusError
			run.Error = err.Error()
		} else {
			run.Status = StatusCompleted
			run.Result = res
		}
		h.mu.Unlock()

		if err != nil {
			log.Printf("Sweep %s failed: %v", run.ID, err)
			h.wsHub.BroadcastLog("error", fmt.Sprintf("Sweep %s: %v", run.ID, err))
			h.wsHub.BroadcastStatus(run.ID, StatusError, err.Error())
			return
		}
		h.wsHub.BroadcastStatus(run.ID, StatusCompleted, "Sweep finished")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"id":     run.ID,
		"status": StatusRunning,
	})
}

var errRunNotFound = errors.New("run not found")

// lookup returns a snapshot of run id.
func (h *Handlers) lookup(id string) (SweepRun, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	run, ok := h.runs[id]
	if !ok {
		return SweepRun{}, errRunNotFound
	}
	return *run, nil
}

// HandleRun serves GET /api/sweep/{id} and GET /api/sweep/{id}/ber.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sweep/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	run, err := h.lookup(id)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	switch sub {
	case "":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(run)
	case "ber":
		if run.Status != StatusCompleted {
			http.Error(w, fmt.Sprintf("Run is %s", run.Status), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="BERdata.csv"`)
		if err := report.WriteFlat(w, run.Result); err != nil {
			log.Printf("Sweep %s: write BER file: %v", id, err)
		}
	default:
		http.NotFound(w, r)
	}
}

// HandleStatus returns run counts and connected clients.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusError:     0,
	}
	h.mu.RLock()
	for _, run := range h.runs {
		counts[run.Status]++
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":    counts,
		"clients": h.wsHub.ClientCount(),
	})
}
