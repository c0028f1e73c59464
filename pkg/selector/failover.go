package selector

import "github.com/llmhub/llmhub/pkg/types"

// Failover treats the candidate list as a priority order and returns the
// first candidate whose circuit breaker is not open. With every circuit
// open there is nothing worth dispatching to, so it reports no selection.
type Failover struct{}

// NewFailover creates a failover strategy.
func NewFailover() *Failover { return &Failover{} }

func (s *Failover) Name() string { return "failover" }

func (s *Failover) Select(candidates []string, req *types.Request, stats Stats) (string, bool) {
	for _, id := range candidates {
		if !stats[id].CircuitOpen {
			return id, true
		}
	}
	return "", false
}
