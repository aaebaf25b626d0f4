package llm

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var pricingYAML []byte

// PricingTable maps a provider to its blended cost per one million tokens.
// Providers absent from the table cost zero.
type PricingTable map[Provider]float64

// LoadPricingTable parses the embedded per-provider pricing document.
func LoadPricingTable() (PricingTable, error) {
	var doc struct {
		CostPerMillionTokens map[string]float64 `yaml:"cost_per_million_tokens"`
	}
	if err := yaml.Unmarshal(pricingYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse pricing table: %w", err)
	}

	table := make(PricingTable, len(doc.CostPerMillionTokens))
	for provider, cost := range doc.CostPerMillionTokens {
		table[Provider(provider)] = cost
	}
	return table, nil
}

// EstimateCost converts a token count to an estimated dollar cost for the
// provider.
func (t PricingTable) EstimateCost(provider Provider, tokens int) float64 {
	return float64(tokens) / 1_000_000 * t[provider]
}
