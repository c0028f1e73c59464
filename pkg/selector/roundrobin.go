package selector

import (
	"sync/atomic"

	"github.com/llmhub/llmhub/pkg/types"
)

// RoundRobin cycles deterministically through the candidate list using a
// shared atomic counter, wrapping modulo the candidate count. Concurrent
// callers each get a distinct cursor value, so distribution stays even
// under load.
type RoundRobin struct {
	cursor atomic.Uint64
}

// NewRoundRobin creates a round-robin strategy.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (s *RoundRobin) Name() string { return "round_robin" }

func (s *RoundRobin) Select(candidates []string, req *types.Request, stats Stats) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	n := s.cursor.Add(1) - 1
	return candidates[n%uint64(len(candidates))], true
}
