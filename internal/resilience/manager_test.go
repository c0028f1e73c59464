package resilience

import (
	"sync"
	"testing"
	"time"
)

func TestManager_PartitionsStatePerBackend(t *testing.T) {
	m := NewManager(DefaultManagerConfig())

	if m.Breaker("a") == m.Breaker("b") {
		t.Error("breakers for different backends should be distinct")
	}
	if m.Limiter("a") == m.Limiter("b") {
		t.Error("limiters for different backends should be distinct")
	}
	if m.Breaker("a") != m.Breaker("a") {
		t.Error("repeated lookups should return the same breaker")
	}
}

func TestManager_SetLimits(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	m.SetLimits("slow", Limits{RefillRate: 0, Capacity: 1})

	ok, open, _ := m.Admit("slow")
	if !ok || open {
		t.Fatalf("Admit = (%v, %v), want first request admitted", ok, open)
	}

	ok, open, _ = m.Admit("slow")
	if ok {
		t.Error("second request should be rate limited with capacity 1")
	}
	if open {
		t.Error("rejection should be attributed to the limiter, not the breaker")
	}
}

func TestManager_AdmitReportsCircuitOpen(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.CircuitBreaker = CircuitBreakerConfig{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		OpenDuration:        time.Hour,
		HalfOpenMaxRequests: 1,
	}
	m := NewManager(cfg)

	m.RecordFailure("x")
	m.RecordFailure("x")

	ok, open, _ := m.Admit("x")
	if ok {
		t.Error("request should be blocked while circuit is open")
	}
	if !open {
		t.Error("rejection should be attributed to the breaker")
	}
	if !m.CircuitOpen("x") {
		t.Error("CircuitOpen should report true")
	}
	if m.CircuitOpen("y") {
		t.Error("CircuitOpen for an untouched backend should be false")
	}
}

func TestManager_LimiterRejectionReturnsTrialSlot(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	m.SetLimits("x", Limits{
		RefillRate: 0,
		Capacity:   0,
		Breaker: &CircuitBreakerConfig{
			FailureThreshold:    1,
			SuccessThreshold:    1,
			OpenDuration:        10 * time.Millisecond,
			HalfOpenMaxRequests: 1,
		},
	})

	m.RecordFailure("x")
	time.Sleep(20 * time.Millisecond)

	// The breaker gate admits each attempt, the empty bucket refuses it.
	// The single trial slot must come back every time.
	for i := 0; i < 3; i++ {
		ok, open, _ := m.Admit("x")
		if ok {
			t.Fatal("empty bucket should reject")
		}
		if open {
			t.Fatalf("attempt %d: rejection should stay attributed to the limiter", i)
		}
	}
}

func TestManager_ConsumeUsage(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	m.SetLimits("x", Limits{RefillRate: 0, Capacity: 10})

	m.ConsumeUsage("x", 10)
	if got := m.Limiter("x").Tokens(); got != 0 {
		t.Errorf("tokens = %v, want 0 after usage debit", got)
	}
}

func TestManager_ConcurrentSameBackend(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	m.SetLimits("x", Limits{RefillRate: 0, Capacity: 25})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := m.Admit("x"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 25 {
		t.Errorf("admitted = %d, want exactly 25", admitted)
	}
}
