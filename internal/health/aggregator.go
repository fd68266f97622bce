package health

import (
	"context"
	"runtime"
	"time"
)

const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusReady    = "ready"
	StatusNotReady = "not-ready"
)

// MemoryStats is the process heap telemetry included in deep health.
type MemoryStats struct {
	Used       uint64
	Total      uint64
	Percentage float64
}

// Snapshot is the deep-health view: dependency results plus process telemetry.
type Snapshot struct {
	Status        string
	Timestamp     time.Time
	UptimeSeconds int64
	Memory        MemoryStats
	Checks        map[string]ProbeResult
	Version       string
	Environment   string
}

// Liveness is the process-alive view. It carries no dependency state.
type Liveness struct {
	Status    string
	Timestamp time.Time
}

// Readiness is the traffic-admission view: one boolean per dependency.
type Readiness struct {
	Status       string
	Timestamp    time.Time
	Dependencies map[string]bool
}

// Aggregator composes the probe set into the three outward health views. It is
// stateless across calls; every view is recomputed on demand.
type Aggregator struct {
	set         *Set
	version     string
	environment string
	startedAt   time.Time
	nowFn       func() time.Time
}

// NewAggregator binds the aggregator to a probe set and build metadata.
func NewAggregator(set *Set, version, environment string) *Aggregator {
	return &Aggregator{
		set:         set,
		version:     version,
		environment: environment,
		startedAt:   time.Now(),
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Check runs every probe and folds the results into a deep-health snapshot.
// Status is ok iff every dependency reported healthy.
func (a *Aggregator) Check(ctx context.Context) Snapshot {
	now := a.nowFn()
	results := a.set.Run(ctx)

	status := StatusOK
	for _, res := range results {
		if !res.Healthy {
			status = StatusError
			break
		}
	}

	return Snapshot{
		Status:        status,
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(a.startedAt.UTC()).Seconds()),
		Memory:        readMemory(),
		Checks:        results,
		Version:       a.version,
		Environment:   a.environment,
	}
}

// Live answers in constant time and never consults a dependency. Its only job
// is letting an orchestrator tell "process hung" from "dependency down".
func (a *Aggregator) Live() Liveness {
	return Liveness{Status: StatusOK, Timestamp: a.nowFn()}
}

// Ready re-runs the probe set and reduces each result to a boolean. Results
// are deliberately not shared with Check: readiness polls always observe the
// current dependency state.
func (a *Aggregator) Ready(ctx context.Context) Readiness {
	now := a.nowFn()
	results := a.set.Run(ctx)

	deps := make(map[string]bool, len(results))
	status := StatusReady
	for name, res := range results {
		deps[name] = res.Healthy
		if !res.Healthy {
			status = StatusNotReady
		}
	}

	return Readiness{Status: status, Timestamp: now, Dependencies: deps}
}

func readMemory() MemoryStats {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m := MemoryStats{Used: stats.Alloc, Total: stats.Sys}
	if m.Total > 0 {
		m.Percentage = float64(m.Used) / float64(m.Total) * 100
	}
	return m
}
