package scheduler

import (
	"context"
	"sync"
	"time"

	"OptPull/internal/adaptive"
	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/usecase"
	"OptPull/pkg/config"
	applogger "OptPull/pkg/logger"
)

// Alert types derived from cycle outcomes.
const (
	AlertInterpolationHigh = "interpolation_high"
	AlertRiskDeltaDrift    = "risk_delta_drift"
	AlertBucketUtilLow     = "bucket_util_low"
)

type task struct {
	index string
	rule  string
}

// CycleSummary is the last completed cycle, exposed over the status API.
type CycleSummary struct {
	Cycle     int64          `json:"cycle"`
	Started   time.Time      `json:"started"`
	Elapsed   float64        `json:"elapsed_seconds"`
	Units     int            `json:"units"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	TimedOut  int            `json:"timed_out"`
	Retried   int            `json:"retried"`
	Breached  bool           `json:"sla_breached"`
	Alerts    []models.Alert `json:"alerts"`
}

// Scheduler drives the ingestion loop: every interval it fans the configured
// (index, rule) units out over a bounded worker pool under a cycle deadline,
// runs a bounded serial retry pass, then feeds the cycle's outcomes through
// the severity classifier and the adaptive controllers.
type Scheduler struct {
	cfg     *config.Config
	runner  *usecase.UnitRunner
	sev     *adaptive.Classifier
	detail  *adaptive.DetailController
	scale   *adaptive.ScaleController // nil when strike scaling is disabled
	guard   *adaptive.Guard
	signals *adaptive.CycleSignals
	metrics drepo.Metrics
	log     *applogger.Logger

	cycle       int64
	lastAvgPCR  *float64
	lastRefresh time.Time

	mu      sync.RWMutex
	recent  []models.UnitOutcome
	summary CycleSummary
}

// New creates a new Scheduler instance.
func New(
	cfg *config.Config,
	runner *usecase.UnitRunner,
	sev *adaptive.Classifier,
	detail *adaptive.DetailController,
	scale *adaptive.ScaleController,
	guard *adaptive.Guard,
	signals *adaptive.CycleSignals,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		sev:     sev,
		detail:  detail,
		scale:   scale,
		guard:   guard,
		signals: signals,
		metrics: metrics,
		log:     log,
	}
}

// Run blocks until ctx is cancelled, executing one cycle immediately and then
// one per configured interval. A slow cycle never overlaps the next: ticks
// that fire mid-cycle coalesce.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.cfg.Scheduler.Interval
	s.log.Info("scheduler started",
		applogger.Duration("interval", interval),
		applogger.Int("workers", s.cfg.Scheduler.Workers),
		applogger.Bool("parallel", s.cfg.Scheduler.Parallel))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped", applogger.Int64("cycles", s.cycle))
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Cycle returns the number of completed cycles.
func (s *Scheduler) Cycle() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle
}

// Summary returns the last completed cycle summary.
func (s *Scheduler) Summary() CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Outcomes returns the last cycle's unit outcomes.
func (s *Scheduler) Outcomes() []models.UnitOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UnitOutcome, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.cycle++
	cycle := s.cycle
	s.mu.Unlock()

	start := time.Now()
	interval := s.cfg.Scheduler.Interval
	budget := time.Duration(float64(interval) * s.cfg.Scheduler.BudgetFraction)
	cycleCtx, cancel := context.WithDeadline(ctx, start.Add(budget))
	defer cancel()

	tasks := s.tasks()
	var outcomes []models.UnitOutcome
	if s.cfg.Scheduler.Parallel && s.cfg.Scheduler.Workers > 1 {
		outcomes = s.fanOut(cycleCtx, cycle, tasks)
	} else {
		outcomes = make([]models.UnitOutcome, 0, len(tasks))
		for _, t := range tasks {
			outcomes = append(outcomes, s.runTask(cycleCtx, cycle, t))
		}
	}
	retried := s.retryPass(cycleCtx, cycle, outcomes)

	elapsed := time.Since(start)
	breached := elapsed > budget
	if breached {
		s.signals.RecordBreach()
		s.metrics.RecordError("sla_breach")
		s.log.Warn("cycle exceeded budget",
			applogger.Int64("cycle", cycle),
			applogger.Duration("elapsed", elapsed),
			applogger.Duration("budget", budget))
	}

	alerts := s.buildAlerts(outcomes)
	s.evaluate(ctx, cycle, alerts, elapsed, interval)
	s.metrics.RecordLatency("cycle", elapsed.Seconds())

	summary := CycleSummary{
		Cycle:    cycle,
		Started:  start,
		Elapsed:  elapsed.Seconds(),
		Units:    len(outcomes),
		Retried:  retried,
		Breached: breached,
		Alerts:   alerts,
	}
	for _, o := range outcomes {
		switch {
		case o.Success:
			summary.Succeeded++
		case o.TimedOut:
			summary.TimedOut++
		default:
			summary.Failed++
		}
	}

	s.mu.Lock()
	s.recent = outcomes
	s.summary = summary
	s.mu.Unlock()

	s.log.Info("cycle finished",
		applogger.Int64("cycle", cycle),
		applogger.Int("units", summary.Units),
		applogger.Int("succeeded", summary.Succeeded),
		applogger.Int("failed", summary.Failed),
		applogger.Int("timed_out", summary.TimedOut),
		applogger.Duration("elapsed", elapsed))
}

// tasks expands the enabled index configuration into the cycle's work list.
func (s *Scheduler) tasks() []task {
	var out []task
	for _, idx := range s.cfg.EnabledIndices() {
		for _, rule := range idx.Rules {
			out = append(out, task{index: idx.Name, rule: rule})
		}
	}
	return out
}

// fanOut runs tasks over a bounded worker pool, staggering submissions so the
// provider is not hit by a burst at cycle start.
func (s *Scheduler) fanOut(ctx context.Context, cycle int64, tasks []task) []models.UnitOutcome {
	workers := s.cfg.Scheduler.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	in := make(chan task)
	results := make(chan models.UnitOutcome, len(tasks))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range in {
				results <- s.runTask(ctx, cycle, t)
			}
		}()
	}

	stagger := s.cfg.Scheduler.Stagger
	for i, t := range tasks {
		if i > 0 && stagger > 0 {
			time.Sleep(stagger)
		}
		in <- t
	}
	close(in)
	wg.Wait()
	close(results)

	out := make([]models.UnitOutcome, 0, len(tasks))
	for o := range results {
		out = append(out, o)
	}
	return out
}

// runTask executes one unit under the per-task timeout.
func (s *Scheduler) runTask(ctx context.Context, cycle int64, t task) models.UnitOutcome {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TaskTimeout)
	defer cancel()
	return s.runner.RunUnit(taskCtx, t.index, t.rule, cycle)
}

// retryPass serially re-runs failed units within the remaining cycle budget.
// Timed-out units are excluded: re-running them would blow the budget again.
// Returns the number of retries attempted.
func (s *Scheduler) retryPass(ctx context.Context, cycle int64, outcomes []models.UnitOutcome) int {
	limit := s.cfg.Scheduler.RetryLimit
	retried := 0
	for i := range outcomes {
		if retried >= limit || ctx.Err() != nil {
			break
		}
		o := outcomes[i]
		if o.Success || o.TimedOut {
			continue
		}
		retried++
		s.log.Info("retrying unit",
			applogger.String("index", o.Index),
			applogger.String("rule", o.Rule),
			applogger.Int64("cycle", cycle))
		outcomes[i] = s.runTask(ctx, cycle, task{index: o.Index, rule: o.Rule})
	}
	return retried
}

// buildAlerts derives the cycle's anomaly signals from unit outcomes:
// the salvaged fraction, the cross-cycle PCR drift, and the average strike
// coverage.
func (s *Scheduler) buildAlerts(outcomes []models.UnitOutcome) []models.Alert {
	var alerts []models.Alert

	succeeded := 0
	salvaged := 0
	pcrSum := 0.0
	pcrN := 0
	covSum := 0.0
	covN := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
			if o.SalvageApplied {
				salvaged++
			}
			pcrSum += o.PCR
			pcrN++
		}
		if o.StrikeCoverage != nil {
			covSum += *o.StrikeCoverage
			covN++
		}
	}

	if succeeded > 0 {
		alerts = append(alerts, models.Alert{
			Type:  AlertInterpolationHigh,
			Value: float64(salvaged) / float64(succeeded),
		})
	}
	if pcrN > 0 {
		avg := pcrSum / float64(pcrN)
		if s.lastAvgPCR != nil {
			alerts = append(alerts, models.Alert{
				Type:  AlertRiskDeltaDrift,
				Value: avg - *s.lastAvgPCR,
			})
		}
		s.lastAvgPCR = &avg
	}
	if covN > 0 {
		alerts = append(alerts, models.Alert{
			Type:  AlertBucketUtilLow,
			Value: covSum / float64(covN),
		})
	}
	return alerts
}

// evaluate runs the post-fan-out adaptive step: severity rules refresh,
// observe/decay/snapshot, cardinality guard, detail mode and strike scale.
func (s *Scheduler) evaluate(ctx context.Context, cycle int64, alerts []models.Alert, elapsed, interval time.Duration) {
	if refresh := s.cfg.Severity.RuleRefresh; refresh > 0 && time.Since(s.lastRefresh) >= refresh {
		s.lastRefresh = time.Now()
		if err := s.sev.RefreshRules(ctx); err != nil {
			s.metrics.RecordError("rule_refresh")
			s.log.Warn("severity rule refresh failed", applogger.Error(err))
		}
	}

	s.sev.Observe(cycle, alerts)
	s.sev.Decay(cycle)
	s.sev.Snapshot(cycle)

	s.guard.EvaluateNow()
	s.detail.Evaluate(cycle, s.signals, s.sev.CriticalSmoothed(), s.sev.WarnSmoothed())
	if s.scale != nil {
		s.scale.Evaluate(elapsed, interval)
	}
}
