package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricing_EstimateCost(t *testing.T) {
	p := NewPricing(nil)

	cost, known := p.EstimateCost("gpt-4.1-mini", 1_000_000, 1_000_000)
	assert.True(t, known)
	assert.InDelta(t, 0.75, cost, 1e-9)

	cost, known = p.EstimateCost("GPT-4o", 2000, 500)
	assert.True(t, known)
	assert.InDelta(t, 0.01+0.0075, cost, 1e-12)

	cost, known = p.EstimateCost("llama3.1:8b", 1000, 1000)
	assert.False(t, known)
	assert.Zero(t, cost)
}

func TestPricing_Overrides(t *testing.T) {
	p := NewPricing(map[string]Price{"claude-sonnet-4-5": {Input: 3, Output: 15}})

	cost, known := p.EstimateCost("claude-sonnet-4-5", 1_000_000, 0)
	assert.True(t, known)
	assert.InDelta(t, 3.0, cost, 1e-9)

	_, known = p.EstimateCost("gpt-5.1", 1, 1)
	assert.True(t, known)
}

func TestPricing_DatedSnapshotUsesFamilyPrice(t *testing.T) {
	p := NewPricing(nil)

	cost, known := p.EstimateCost("gpt-4o-2024-08-06", 1_000_000, 0)
	assert.True(t, known)
	assert.InDelta(t, 5.0, cost, 1e-9)

	// "gpt-4.1-mini" must not be priced as a snapshot of some shorter key.
	cost, _ = p.EstimateCost("gpt-4.1-mini-2025-04-14", 1_000_000, 0)
	assert.InDelta(t, 0.15, cost, 1e-9)
}
