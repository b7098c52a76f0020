// Package drift measures extraction accuracy against a gold reference set
// over a rolling window, and raises an alert signal when the window's
// macro-F1 degrades past a configured threshold.
package drift

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/metrics"

	"sync"
)

// Config carries the drift-monitoring knobs.
type Config struct {
	WindowSize         int
	AlertThreshold     float64
	MinWindowOccupancy int
	Tolerance          float64
	RelativeTolerance  bool
}

// FieldScore is one field's precision/recall/F1 over the current window.
type FieldScore struct {
	Precision float64
	Recall    float64
	F1        float64
	TP        int
	FP        int
	FN        int
}

// Snapshot is the monitor's current state, safe to hand to pollers.
type Snapshot struct {
	PerField    map[string]FieldScore
	MacroF1     float64
	WindowSize  int
	Occupancy   int
	AlertActive bool
}

// Alert is the AccuracyDriftDetected signal delivered to collaborators.
type Alert struct {
	MacroF1   float64
	Threshold float64
	Occupancy int
	At        time.Time
}

type counts struct{ tp, fp, fn int }

// observation holds one job's per-field count deltas so eviction can
// subtract exactly what was added.
type observation map[string]counts

// Monitor owns the gold set and the rolling window. Every mutation is an
// atomic append-and-evict under one lock, so concurrent workers never lose
// updates. Memory is bounded by the window size, not by jobs processed.
type Monitor struct {
	mu          sync.Mutex
	cfg         Config
	cmp         Comparator
	gold        map[string]entity.GoldSample
	window      []observation // ring buffer
	head        int
	count       int
	totals      map[string]counts
	alertActive bool
	alerts      chan Alert
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewMonitor(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.MinWindowOccupancy <= 0 {
		cfg.MinWindowOccupancy = 1
	}
	return &Monitor{
		cfg:     cfg,
		cmp:     Comparator{Tolerance: cfg.Tolerance, Relative: cfg.RelativeTolerance},
		gold:    make(map[string]entity.GoldSample),
		window:  make([]observation, cfg.WindowSize),
		totals:  make(map[string]counts),
		alerts:  make(chan Alert, 16),
		logger:  logger,
		metrics: m,
	}
}

// Alerts delivers AccuracyDriftDetected signals. The channel is buffered;
// if no collaborator drains it, further signals are dropped (the counter
// metric still records them).
func (m *Monitor) Alerts() <-chan Alert { return m.alerts }

// LoadGold installs reference samples. With replace, the existing set is
// discarded first. Identifiers must be unique within the incoming set.
func (m *Monitor) LoadGold(samples []entity.GoldSample, replace bool) error {
	seen := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		if s.ID == "" {
			return fmt.Errorf("gold sample with empty id")
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate gold sample id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if replace {
		m.gold = make(map[string]entity.GoldSample, len(samples))
	}
	for _, s := range samples {
		m.gold[s.ID] = s
	}
	m.logger.Info("drift.gold_loaded", "samples", len(samples), "replace", replace, "total", len(m.gold))
	return nil
}

// GoldSize reports the number of loaded reference samples.
func (m *Monitor) GoldSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gold)
}

// Observe scores a completed extraction against its gold counterpart,
// matched by document identifier. Inputs without a gold sample are ignored.
func (m *Monitor) Observe(docID string, fields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sample, ok := m.gold[docID]
	if !ok {
		return
	}
	if len(sample.Fields) == 0 {
		// Malformed reference record: log and exclude rather than abort.
		m.logger.Warn("drift.malformed_gold_sample", "doc_id", docID)
		return
	}

	obs := m.score(sample, fields)
	m.append(obs)

	if m.metrics != nil {
		m.metrics.DriftSamples.Inc()
	}
	m.evaluateLocked()
}

// score computes per-field TP/FP/FN deltas for one (gold, predicted) pair.
// A wrong value counts as both a false positive and a false negative.
func (m *Monitor) score(sample entity.GoldSample, fields map[string]string) observation {
	obs := make(observation, len(sample.Fields))
	for field, expected := range sample.Fields {
		predicted := fields[field]
		var c counts
		switch {
		case expected != "" && predicted != "":
			if m.cmp.Match(expected, predicted) {
				c.tp = 1
			} else {
				c.fp = 1
				c.fn = 1
			}
		case expected != "":
			c.fn = 1
		case predicted != "":
			c.fp = 1
		}
		obs[field] = c
	}
	return obs
}

// append is the atomic append-and-evict on the ring buffer.
func (m *Monitor) append(obs observation) {
	if m.count == len(m.window) {
		evicted := m.window[m.head]
		for field, c := range evicted {
			t := m.totals[field]
			t.tp -= c.tp
			t.fp -= c.fp
			t.fn -= c.fn
			if t.tp == 0 && t.fp == 0 && t.fn == 0 {
				delete(m.totals, field)
			} else {
				m.totals[field] = t
			}
		}
		m.window[m.head] = obs
		m.head = (m.head + 1) % len(m.window)
	} else {
		m.window[(m.head+m.count)%len(m.window)] = obs
		m.count++
	}
	for field, c := range obs {
		t := m.totals[field]
		t.tp += c.tp
		t.fp += c.fp
		t.fn += c.fn
		m.totals[field] = t
	}
}

func (m *Monitor) evaluateLocked() {
	macro := m.macroF1Locked()
	if m.metrics != nil {
		m.metrics.DriftMacroF1.Set(macro)
	}

	breach := m.count >= m.cfg.MinWindowOccupancy && macro < m.cfg.AlertThreshold
	if breach && !m.alertActive {
		alert := Alert{
			MacroF1:   macro,
			Threshold: m.cfg.AlertThreshold,
			Occupancy: m.count,
			At:        time.Now().UTC(),
		}
		m.logger.Warn("drift.accuracy_drift_detected",
			"macro_f1", macro,
			"threshold", m.cfg.AlertThreshold,
			"occupancy", m.count,
		)
		if m.metrics != nil {
			m.metrics.DriftAlerts.Inc()
		}
		select {
		case m.alerts <- alert:
		default:
		}
	}
	m.alertActive = breach
}

func (m *Monitor) macroF1Locked() float64 {
	if len(m.totals) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.totals {
		sum += score(t).F1
	}
	return sum / float64(len(m.totals))
}

// Snapshot returns the current metric state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	perField := make(map[string]FieldScore, len(m.totals))
	for field, t := range m.totals {
		perField[field] = score(t)
	}
	return Snapshot{
		PerField:    perField,
		MacroF1:     m.macroF1Locked(),
		WindowSize:  len(m.window),
		Occupancy:   m.count,
		AlertActive: m.alertActive,
	}
}

// Fields returns the monitored field names seen in the current window.
func (s Snapshot) Fields() []string {
	out := make([]string, 0, len(s.PerField))
	for f := range s.PerField {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// score applies the standard definitions; every ratio is zero when its
// denominator is zero.
func score(t counts) FieldScore {
	fs := FieldScore{TP: t.tp, FP: t.fp, FN: t.fn}
	if t.tp+t.fp > 0 {
		fs.Precision = float64(t.tp) / float64(t.tp+t.fp)
	}
	if t.tp+t.fn > 0 {
		fs.Recall = float64(t.tp) / float64(t.tp+t.fn)
	}
	if fs.Precision+fs.Recall > 0 {
		fs.F1 = 2 * fs.Precision * fs.Recall / (fs.Precision + fs.Recall)
	}
	return fs
}
