package costtrack

import (
	"errors"
	"testing"
)

func TestTrackPricesCall(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	rec, err := calc.Track("gpt-4o", 1_000_000, 500_000)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	if rec.InputCost != 2.50 {
		t.Fatalf("input cost = %v", rec.InputCost)
	}
	if rec.OutputCost != 5.00 {
		t.Fatalf("output cost = %v", rec.OutputCost)
	}
	if rec.TotalCost != 7.50 {
		t.Fatalf("total cost = %v", rec.TotalCost)
	}
}

func TestTrackRoundsToSixDecimals(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	rec, err := calc.Track("gpt-4o-mini", 123, 456)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if rec.InputCost != 0.000018 {
		t.Fatalf("input cost = %v", rec.InputCost)
	}
	if rec.OutputCost != 0.000274 {
		t.Fatalf("output cost = %v", rec.OutputCost)
	}
}

func TestTrackStripsRouterNamespace(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	rec, err := calc.Track("openai/gpt-4o", 1_000_000, 500_000)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if rec.TotalCost != 7.50 {
		t.Fatalf("total cost = %v, want 7.50", rec.TotalCost)
	}
}

func TestTrackUnknownModel(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	if _, err := calc.Track("mystery-model", 10, 10); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestTrackRejectsNegativeTokens(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	if _, err := calc.Track("gpt-4o", -1, 10); err == nil {
		t.Fatal("expected error for negative tokens")
	}
}

func TestSummaryAggregates(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	if _, err := calc.Track("gpt-4o", 1000, 2000); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if _, err := calc.Track("gpt-3.5-turbo", 3000, 4000); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	s := calc.Summary()
	if s.TotalCalls != 2 {
		t.Fatalf("total calls = %d", s.TotalCalls)
	}
	if s.TotalInputTokens != 4000 || s.TotalOutputTokens != 6000 {
		t.Fatalf("token totals = %d/%d", s.TotalInputTokens, s.TotalOutputTokens)
	}
	if len(s.Calls) != 2 {
		t.Fatalf("calls = %d", len(s.Calls))
	}
}

func TestEmptySummary(t *testing.T) {
	t.Parallel()

	s := NewCalculator().Summary()
	if s.TotalCalls != 0 || s.TotalCost != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
