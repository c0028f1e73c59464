package selector

import "github.com/llmhub/llmhub/pkg/types"

// DefaultCostPer1K is assumed for backends with no configured price.
// Set high so unpriced backends lose to any priced one.
const DefaultCostPer1K = 5.0

// CostOptimized picks the candidate with the lowest estimated request
// cost: estimated input tokens priced at the backend's input rate plus
// estimated output tokens at its output rate. Ties break by lexical id
// order so selection stays deterministic.
type CostOptimized struct{}

// NewCostOptimized creates a cost-optimized strategy.
func NewCostOptimized() *CostOptimized { return &CostOptimized{} }

func (s *CostOptimized) Name() string { return "cost_optimized" }

func (s *CostOptimized) Select(candidates []string, req *types.Request, stats Stats) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	inputTokens := float64(estimateInputTokens(req))
	outputTokens := float64(estimateOutputTokens(req))

	best := ""
	bestCost := 0.0

	for _, id := range candidates {
		bs := stats[id]

		inputPrice := bs.InputCostPer1K
		if inputPrice == 0 {
			inputPrice = DefaultCostPer1K
		}
		outputPrice := bs.OutputCostPer1K
		if outputPrice == 0 {
			outputPrice = DefaultCostPer1K
		}

		cost := inputTokens/1000*inputPrice + outputTokens/1000*outputPrice

		if best == "" || cost < bestCost || (cost == bestCost && id < best) {
			best = id
			bestCost = cost
		}
	}

	return best, true
}
