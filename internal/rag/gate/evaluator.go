package gate

import (
	"sync"
	"time"
)

const defaultEvaluatorWindow = 200

// Outcome captures one diagnosis: which path was taken, how close the best
// passage was and how long synthesis took.
type Outcome struct {
	Mode            Mode
	BestScore       *float64
	RetrievedChunks int
	MissingSections int
	Latency         time.Duration
}

// ModeSummary aggregates metrics for a specific Mode.
type ModeSummary struct {
	Count                  int           `json:"count"`
	AverageBestScore       float64       `json:"average_best_score"`
	AverageRetrievedChunks float64       `json:"average_retrieved_chunks"`
	IncompleteReportRate   float64       `json:"incomplete_report_rate"`
	AverageLatency         time.Duration `json:"average_latency"`
}

// Summary describes the rolling grounding behaviour of the assistant.
type Summary struct {
	TotalOutcomes          int                  `json:"total_outcomes"`
	RollingWindow          int                  `json:"rolling_window"`
	GroundedRate           float64              `json:"grounded_rate"`
	AverageBestScore       float64              `json:"average_best_score"`
	AverageRetrievedChunks float64              `json:"average_retrieved_chunks"`
	IncompleteReportRate   float64              `json:"incomplete_report_rate"`
	AverageLatency         time.Duration        `json:"average_latency"`
	Modes                  map[Mode]ModeSummary `json:"modes"`
}

// Evaluator keeps a rolling window of Outcomes and exposes aggregated metrics
// that can be used to tune the relevance threshold.
type Evaluator struct {
	mu       sync.Mutex
	window   int
	outcomes []Outcome
	next     int
	count    int
}

// NewEvaluator creates an Evaluator that stores at most window outcomes. When
// window is not positive a safe default is applied.
func NewEvaluator(window int) *Evaluator {
	if window <= 0 {
		window = defaultEvaluatorWindow
	}
	return &Evaluator{
		window:   window,
		outcomes: make([]Outcome, window),
	}
}

// RecordOutcome registers an observed Outcome. Once the evaluator reaches its
// configured window size older entries are overwritten in FIFO order.
func (e *Evaluator) RecordOutcome(outcome Outcome) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.outcomes[e.next] = outcome
	e.next = (e.next + 1) % e.window
	if e.count < e.window {
		e.count++
	}
}

// Reset clears all stored outcomes while preserving the configured window.
func (e *Evaluator) Reset() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next = 0
	e.count = 0
	for i := range e.outcomes {
		e.outcomes[i] = Outcome{}
	}
}

type accumulator struct {
	count      int
	scored     int
	scoreSum   float64
	chunks     float64
	incomplete float64
	latency    time.Duration
}

func (a *accumulator) add(o Outcome) {
	a.count++
	if o.BestScore != nil {
		a.scored++
		a.scoreSum += *o.BestScore
	}
	a.chunks += float64(o.RetrievedChunks)
	if o.MissingSections > 0 {
		a.incomplete++
	}
	a.latency += o.Latency
}

func (a accumulator) averageScore() float64 {
	if a.scored == 0 {
		return 0
	}
	return a.scoreSum / float64(a.scored)
}

// Snapshot computes a Summary of the currently stored outcomes.
func (e *Evaluator) Snapshot() Summary {
	if e == nil {
		return Summary{Modes: map[Mode]ModeSummary{}}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := Summary{
		RollingWindow: e.window,
		Modes:         make(map[Mode]ModeSummary),
	}
	if e.count == 0 {
		return summary
	}

	var total accumulator
	perMode := make(map[Mode]*accumulator)

	start := 0
	if e.count == e.window {
		start = e.next
	}
	for i := 0; i < e.count; i++ {
		outcome := e.outcomes[(start+i)%e.window]
		total.add(outcome)
		acc, ok := perMode[outcome.Mode]
		if !ok {
			acc = &accumulator{}
			perMode[outcome.Mode] = acc
		}
		acc.add(outcome)
	}

	n := float64(total.count)
	summary.TotalOutcomes = total.count
	summary.AverageBestScore = total.averageScore()
	summary.AverageRetrievedChunks = total.chunks / n
	summary.IncompleteReportRate = total.incomplete / n
	summary.AverageLatency = time.Duration(int64(total.latency) / int64(total.count))
	if grounded, ok := perMode[ModeGrounded]; ok {
		summary.GroundedRate = float64(grounded.count) / n
	}

	for mode, acc := range perMode {
		count := float64(acc.count)
		summary.Modes[mode] = ModeSummary{
			Count:                  acc.count,
			AverageBestScore:       acc.averageScore(),
			AverageRetrievedChunks: acc.chunks / count,
			IncompleteReportRate:   acc.incomplete / count,
			AverageLatency:         time.Duration(int64(acc.latency) / int64(acc.count)),
		}
	}

	return summary
}
