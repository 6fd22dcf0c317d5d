// Package costtrack accumulates per-call token usage and estimated spend
// for the chat models used in a session.
package costtrack

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// pricing is USD per one million tokens.
type pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

var modelPricing = map[string]pricing{
	"gpt-4o":        {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":   {InputPer1M: 0.150, OutputPer1M: 0.600},
	"gpt-4-turbo":   {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-4":         {InputPer1M: 30.00, OutputPer1M: 60.00},
	"gpt-3.5-turbo": {InputPer1M: 0.50, OutputPer1M: 1.50},
}

var ErrUnknownModel = errors.New("model not in pricing table")

// normalizeModel strips a router namespace prefix, so "openai/gpt-4o" and
// "gpt-4o" price identically.
func normalizeModel(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}

// Record is one priced model call.
type Record struct {
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	InputCost    float64   `json:"input_cost"`
	OutputCost   float64   `json:"output_cost"`
	TotalCost    float64   `json:"total_cost"`
	At           time.Time `json:"at"`
}

// Summary aggregates all records taken so far.
type Summary struct {
	TotalCalls        int      `json:"total_calls"`
	TotalInputTokens  int      `json:"total_input_tokens"`
	TotalOutputTokens int      `json:"total_output_tokens"`
	TotalCost         float64  `json:"total_cost"`
	Calls             []Record `json:"individual_calls"`
}

// Calculator prices model calls and keeps a session log. Safe for
// concurrent use.
type Calculator struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// Track prices one call and appends it to the session log. Unknown models
// are rejected rather than silently priced at zero.
func (c *Calculator) Track(model string, inputTokens, outputTokens int) (Record, error) {
	p, ok := modelPricing[normalizeModel(model)]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if inputTokens < 0 || outputTokens < 0 {
		return Record{}, fmt.Errorf("token counts must be non-negative: input=%d output=%d", inputTokens, outputTokens)
	}

	inputCost := float64(inputTokens) / 1_000_000 * p.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * p.OutputPer1M

	rec := Record{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    round6(inputCost),
		OutputCost:   round6(outputCost),
		TotalCost:    round6(inputCost + outputCost),
		At:           c.now().UTC(),
	}

	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()

	log.Info().
		Str("model", model).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Float64("cost_usd", rec.TotalCost).
		Msg("llm call priced")
	return rec, nil
}

func (c *Calculator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{Calls: append([]Record(nil), c.records...)}
	for _, r := range c.records {
		s.TotalCalls++
		s.TotalInputTokens += r.InputTokens
		s.TotalOutputTokens += r.OutputTokens
		s.TotalCost += r.TotalCost
	}
	s.TotalCost = round6(s.TotalCost)
	return s
}

// LogSummary emits the session totals; called once at shutdown.
func (c *Calculator) LogSummary() {
	s := c.Summary()
	if s.TotalCalls == 0 {
		log.Info().Msg("no priced llm calls this session")
		return
	}
	log.Info().
		Int("total_calls", s.TotalCalls).
		Int("total_input_tokens", s.TotalInputTokens).
		Int("total_output_tokens", s.TotalOutputTokens).
		Float64("total_cost_usd", s.TotalCost).
		Msg("llm usage summary")
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
