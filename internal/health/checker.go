// Package health watches an account server through canary lookups. A canary
// is an account id whose lookup should always get a definitive answer; when
// it stops doing so the server, the certificate or the device credentials
// have a problem.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/pkg/client"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Prober performs one existence lookup. *client.Client satisfies it.
type Prober interface {
	DoesUserExist(ctx context.Context, username string) client.LookupResult
}

// Status is the health of one canary.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// TransitionFunc is called when a canary changes status. last is the lookup
// that caused the change.
type TransitionFunc func(canary string, from, to Status, last client.LookupResult)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// HealthChecker runs periodic canary lookups.
type HealthChecker struct {
	prober   Prober
	canaries []string

	mu         sync.Mutex
	failCounts map[string]int
	statuses   map[string]Status

	cfg          Config
	onTransition TransitionFunc
	onMetrics    MetricsRecordFunc
	onRound      func()
	logger       *zap.Logger
}

// New creates a HealthChecker for canaries.
func New(prober Prober, canaries []string, cfg Config, logger *zap.Logger) *HealthChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	statuses := make(map[string]Status, len(canaries))
	for _, c := range canaries {
		statuses[c] = StatusUnknown
	}
	return &HealthChecker{
		prober:     prober,
		canaries:   append([]string(nil), canaries...),
		failCounts: make(map[string]int),
		statuses:   statuses,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetTransition configures the status change callback.
func (h *HealthChecker) SetTransition(fn TransitionFunc) {
	h.onTransition = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *HealthChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// SetRoundDone configures a callback run after every CheckAll in Run.
func (h *HealthChecker) SetRoundDone(fn func()) {
	h.onRound = fn
}

// Run checks immediately and then every CheckInterval until ctx is done.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		h.CheckAll(ctx)
		if h.onRound != nil {
			h.onRound()
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll probes every canary with bounded concurrency.
func (h *HealthChecker) CheckAll(ctx context.Context) {
	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, canary := range h.canaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			res := h.prober.DoesUserExist(probeCtx, canary)
			cancel()
			// Lookups cut short by shutdown say nothing about the server.
			if ctx.Err() != nil {
				return
			}

			// Any definitive answer means the server accepted our identity.
			success := res.Definitive()
			if h.onMetrics != nil {
				h.onMetrics(success)
			}
			h.record(canary, success, res)
		}()
	}

	wg.Wait()
}

func (h *HealthChecker) record(canary string, success bool, res client.LookupResult) {
	h.mu.Lock()
	from := h.statuses[canary]
	if success {
		h.failCounts[canary] = 0
	} else {
		h.failCounts[canary]++
	}
	count := h.failCounts[canary]

	to := from
	switch {
	case success:
		to = StatusHealthy
	case count == h.cfg.FailThreshold:
		// Exactly at threshold, so a long outage reports once.
		to = StatusDegraded
	}
	h.statuses[canary] = to
	h.mu.Unlock()

	if !success {
		h.logger.Debug("health: probe failed",
			zap.String("canary", canary),
			zap.Int("fail_count", count),
			zap.Error(res.Err),
		)
	}
	if to == from {
		return
	}
	switch to {
	case StatusDegraded:
		h.logger.Warn("health: degraded",
			zap.String("canary", canary),
			zap.Int("fail_count", count),
			zap.Error(res.Err),
		)
	case StatusHealthy:
		h.logger.Info("health: healthy", zap.String("canary", canary), zap.String("previous", string(from)))
	}
	if h.onTransition != nil {
		h.onTransition(canary, from, to, res)
	}
}

// Status returns the current status of canary.
func (h *HealthChecker) Status(canary string) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.statuses[canary]; ok {
		return s
	}
	return StatusUnknown
}
