package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FailedLatency is the sentinel reported when a probe errored, panicked or
// timed out and no meaningful round-trip time exists.
const FailedLatency int64 = -1

// ProbeResult is the outcome of one probe invocation. Results are produced
// fresh on every call and never cached.
type ProbeResult struct {
	Name          string
	Healthy       bool
	LatencyMillis int64
	Detail        string
}

// Probe is one named dependency check. Implementations report reachability as
// an error; latency measurement and failure containment belong to the Set.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	name string
	fn   func(context.Context) error
}

// NewProbeFunc wraps fn as a named probe.
func NewProbeFunc(name string, fn func(context.Context) error) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

func (p *ProbeFunc) Name() string { return p.name }

func (p *ProbeFunc) Check(ctx context.Context) error { return p.fn(ctx) }

// Set is the fixed registry of dependency probes. Registration happens once in
// the composition root; Run may then be called concurrently by any number of
// health requests.
type Set struct {
	mu      sync.RWMutex
	probes  []Probe
	timeout time.Duration
}

// NewSet creates an empty probe registry. Each Run is bounded by timeout.
func NewSet(timeout time.Duration) *Set {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Set{timeout: timeout}
}

// Register appends a probe. A probe re-registered under an existing name
// replaces the previous one so the output keys stay stable.
func (s *Set) Register(p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.probes {
		if existing.Name() == p.Name() {
			s.probes[i] = p
			return
		}
	}
	s.probes = append(s.probes, p)
}

// Names returns the registered probe names in registration order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.probes))
	for _, p := range s.probes {
		names = append(names, p.Name())
	}
	return names
}

// Run executes every probe in parallel under a shared deadline and returns one
// result per registered name. No probe failure mode escapes as an error or
// panic; everything converts to Healthy=false with the -1 latency sentinel.
func (s *Set) Run(ctx context.Context) map[string]ProbeResult {
	s.mu.RLock()
	probes := make([]Probe, len(s.probes))
	copy(probes, s.probes)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make(map[string]ProbeResult, len(probes))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, p := range probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			res := runProbe(ctx, p)
			mu.Lock()
			results[res.Name] = res
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return results
}

// runProbe is the containment boundary: it times the check, converts errors
// and timeouts to an unhealthy result and turns panics into the same signal.
func runProbe(ctx context.Context, p Probe) (res ProbeResult) {
	res = ProbeResult{Name: p.Name()}
	defer func() {
		if rec := recover(); rec != nil {
			res.Healthy = false
			res.LatencyMillis = FailedLatency
			res.Detail = fmt.Sprintf("probe panicked: %v", rec)
		}
	}()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("probe panicked: %v", rec)
			}
		}()
		errCh <- p.Check(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			res.Healthy = false
			res.LatencyMillis = FailedLatency
			res.Detail = err.Error()
			return res
		}
		res.Healthy = true
		res.LatencyMillis = time.Since(start).Milliseconds()
		return res
	case <-ctx.Done():
		res.Healthy = false
		res.LatencyMillis = FailedLatency
		res.Detail = "probe timed out"
		return res
	}
}
