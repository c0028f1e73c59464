package selector

import "github.com/llmhub/llmhub/pkg/types"

// LowLatency picks the candidate with the lowest tracked p50 latency.
// Unmeasured backends report zero latency and therefore win, which gives
// fresh backends one request to establish a measurement. Ties break by
// lexical id order.
type LowLatency struct{}

// NewLowLatency creates a latency-optimized strategy.
func NewLowLatency() *LowLatency { return &LowLatency{} }

func (s *LowLatency) Name() string { return "low_latency" }

func (s *LowLatency) Select(candidates []string, req *types.Request, stats Stats) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	best := ""
	bestLatency := int64(0)

	for _, id := range candidates {
		latency := int64(stats[id].P50Latency)

		if best == "" || latency < bestLatency || (latency == bestLatency && id < best) {
			best = id
			bestLatency = latency
		}
	}

	return best, true
}
