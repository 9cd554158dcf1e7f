package gate

import (
	"testing"
	"time"
)

func score(v float64) *float64 { return &v }

func TestPolicyDecide(t *testing.T) {
	policy, err := NewPolicy(DefaultThreshold)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	t.Run("no results falls back without a score", func(t *testing.T) {
		d := policy.Decide(nil)
		if d.Grounded() || d.BestScore != nil || d.Reason != ReasonFallback {
			t.Fatalf("unexpected decision %+v", d)
		}
	})

	t.Run("score above threshold falls back", func(t *testing.T) {
		d := policy.Decide([]float64{0.71, 0.9})
		if d.Grounded() {
			t.Fatalf("expected fallback, got %+v", d)
		}
		if d.BestScore == nil || *d.BestScore != 0.71 {
			t.Fatalf("expected best score 0.71, got %v", d.BestScore)
		}
	})

	t.Run("score at threshold is grounded", func(t *testing.T) {
		d := policy.Decide([]float64{0.7})
		if !d.Grounded() || d.Reason != ReasonGrounded {
			t.Fatalf("expected grounded, got %+v", d)
		}
	})
}

func TestNewPolicyRejectsNegative(t *testing.T) {
	if _, err := NewPolicy(-0.1); err == nil {
		t.Fatalf("expected error for negative threshold")
	}
}

func TestEvaluatorRecordsAndSummarisesOutcomes(t *testing.T) {
	evaluator := NewEvaluator(5)

	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded, BestScore: score(0.2), RetrievedChunks: 5, Latency: 100 * time.Millisecond})
	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded, BestScore: score(0.4), RetrievedChunks: 5, MissingSections: 1, Latency: 300 * time.Millisecond})
	evaluator.RecordOutcome(Outcome{Mode: ModeFallback, RetrievedChunks: 0, Latency: 200 * time.Millisecond})

	summary := evaluator.Snapshot()

	if summary.TotalOutcomes != 3 {
		t.Fatalf("expected 3 outcomes, got %d", summary.TotalOutcomes)
	}
	if summary.RollingWindow != 5 {
		t.Fatalf("expected window 5, got %d", summary.RollingWindow)
	}
	if summary.GroundedRate <= 0.66 || summary.GroundedRate > 0.67 {
		t.Fatalf("unexpected grounded rate %.4f", summary.GroundedRate)
	}
	if summary.AverageBestScore < 0.299 || summary.AverageBestScore > 0.301 {
		t.Fatalf("unexpected average best score %.4f", summary.AverageBestScore)
	}
	if summary.AverageRetrievedChunks != 10.0/3.0 {
		t.Fatalf("unexpected average chunks %.4f", summary.AverageRetrievedChunks)
	}
	if summary.AverageLatency != 200*time.Millisecond {
		t.Fatalf("unexpected average latency %s", summary.AverageLatency)
	}

	grounded := summary.Modes[ModeGrounded]
	if grounded.Count != 2 || grounded.IncompleteReportRate != 0.5 {
		t.Fatalf("unexpected grounded summary %+v", grounded)
	}
	fallback := summary.Modes[ModeFallback]
	if fallback.Count != 1 || fallback.AverageBestScore != 0 {
		t.Fatalf("unexpected fallback summary %+v", fallback)
	}
}

func TestEvaluatorRespectsWindow(t *testing.T) {
	evaluator := NewEvaluator(3)
	evaluator.RecordOutcome(Outcome{Mode: ModeFallback})
	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded})
	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded})
	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded})

	summary := evaluator.Snapshot()
	if summary.TotalOutcomes != 3 {
		t.Fatalf("expected windowed total 3, got %d", summary.TotalOutcomes)
	}
	if _, ok := summary.Modes[ModeFallback]; ok {
		t.Fatalf("oldest outcome should have been evicted")
	}
	if summary.GroundedRate != 1 {
		t.Fatalf("expected grounded rate 1, got %.2f", summary.GroundedRate)
	}
}

func TestEvaluatorReset(t *testing.T) {
	evaluator := NewEvaluator(2)
	evaluator.RecordOutcome(Outcome{Mode: ModeGrounded})
	evaluator.Reset()
	summary := evaluator.Snapshot()
	if summary.TotalOutcomes != 0 {
		t.Fatalf("expected no outcomes after reset, got %d", summary.TotalOutcomes)
	}
	if len(summary.Modes) != 0 {
		t.Fatalf("expected mode map to be empty")
	}
}
