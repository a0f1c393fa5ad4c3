package summary

import "strings"

// Price is USD per one million tokens.
type Price struct {
	Input  float64 `json:"input" mapstructure:"input"`
	Output float64 `json:"output" mapstructure:"output"`
}

// DefaultPricing covers the generator models the benchmark is usually run with.
var DefaultPricing = map[string]Price{
	"gpt-4.1-mini": {Input: 0.15, Output: 0.60},
	"gpt-4o":       {Input: 5.00, Output: 15.00},
	"gpt-5.1":      {Input: 10.00, Output: 30.00},
}

// Pricing looks up per-model token prices.
type Pricing struct {
	table map[string]Price
}

// NewPricing builds a pricing table. Overrides replace or extend DefaultPricing.
func NewPricing(overrides map[string]Price) *Pricing {
	table := make(map[string]Price, len(DefaultPricing)+len(overrides))
	for k, v := range DefaultPricing {
		table[k] = v
	}
	for k, v := range overrides {
		table[strings.ToLower(k)] = v
	}
	return &Pricing{table: table}
}

// EstimateCost returns the USD cost of a call. known is false for models missing
// from the table, whose cost is reported as 0.
func (p *Pricing) EstimateCost(model string, promptTokens, completionTokens int) (cost float64, known bool) {
	price, ok := p.lookup(strings.ToLower(model))
	if !ok {
		return 0, false
	}
	return float64(promptTokens)/1e6*price.Input + float64(completionTokens)/1e6*price.Output, true
}

// lookup matches exactly, then falls back to the longest table key that prefixes
// model, so dated snapshots like "gpt-4o-2024-08-06" price as their family.
func (p *Pricing) lookup(model string) (Price, bool) {
	if price, ok := p.table[model]; ok {
		return price, true
	}
	var best string
	for k := range p.table {
		if strings.HasPrefix(model, k+"-") && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return Price{}, false
	}
	return p.table[best], true
}
