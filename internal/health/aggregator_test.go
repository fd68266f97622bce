package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSet(outcomes map[string]error) *Set {
	set := NewSet(time.Second)
	for name, err := range outcomes {
		err := err
		set.Register(NewProbeFunc(name, func(context.Context) error { return err }))
	}
	return set
}

func TestCheckOKIffAllHealthy(t *testing.T) {
	cases := []struct {
		name     string
		outcomes map[string]error
		want     string
	}{
		{"all up", map[string]error{"database": nil, "cache": nil}, StatusOK},
		{"database down", map[string]error{"database": errors.New("refused"), "cache": nil}, StatusError},
		{"all down", map[string]error{"database": errors.New("refused"), "cache": errors.New("refused")}, StatusError},
		{"no probes", map[string]error{}, StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator(newTestSet(tc.outcomes), "0.1.0", "test")
			snap := agg.Check(context.Background())
			if snap.Status != tc.want {
				t.Fatalf("expected status %q, got %q", tc.want, snap.Status)
			}

			allUp := true
			for _, res := range snap.Checks {
				if !res.Healthy {
					allUp = false
				}
			}
			if (snap.Status == StatusOK) != allUp {
				t.Fatalf("status %q inconsistent with checks %#v", snap.Status, snap.Checks)
			}
		})
	}
}

func TestCheckCarriesTelemetry(t *testing.T) {
	agg := NewAggregator(newTestSet(map[string]error{"database": nil}), "1.2.3", "staging")
	snap := agg.Check(context.Background())

	if snap.Version != "1.2.3" || snap.Environment != "staging" {
		t.Fatalf("expected build metadata, got %q/%q", snap.Version, snap.Environment)
	}
	if snap.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
	if snap.UptimeSeconds < 0 {
		t.Fatalf("expected non-negative uptime, got %d", snap.UptimeSeconds)
	}
	if snap.Memory.Total == 0 || snap.Memory.Used == 0 {
		t.Fatalf("expected memory stats, got %#v", snap.Memory)
	}
}

func TestReadyIffAllDependenciesTrue(t *testing.T) {
	agg := NewAggregator(newTestSet(map[string]error{
		"database": nil,
		"cache":    errors.New("refused"),
	}), "0.1.0", "test")

	ready := agg.Ready(context.Background())
	if ready.Status != StatusNotReady {
		t.Fatalf("expected not-ready, got %q", ready.Status)
	}
	if !ready.Dependencies["database"] || ready.Dependencies["cache"] {
		t.Fatalf("unexpected dependency booleans: %#v", ready.Dependencies)
	}

	agg = NewAggregator(newTestSet(map[string]error{"database": nil, "cache": nil}), "0.1.0", "test")
	ready = agg.Ready(context.Background())
	if ready.Status != StatusReady {
		t.Fatalf("expected ready, got %q", ready.Status)
	}
}

func TestLiveIgnoresDependencyState(t *testing.T) {
	agg := NewAggregator(newTestSet(map[string]error{
		"database": errors.New("refused"),
		"cache":    errors.New("refused"),
	}), "0.1.0", "test")

	live := agg.Live()
	if live.Status != StatusOK {
		t.Fatalf("liveness must not reflect dependencies, got %q", live.Status)
	}
	if live.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestCheckAndReadyAgreeOnDependencyState(t *testing.T) {
	agg := NewAggregator(newTestSet(map[string]error{
		"database": nil,
		"cache":    errors.New("refused"),
	}), "0.1.0", "test")

	snap := agg.Check(context.Background())
	ready := agg.Ready(context.Background())

	for name, res := range snap.Checks {
		if res.Healthy != ready.Dependencies[name] {
			t.Fatalf("views disagree for %q: deep=%v ready=%v", name, res.Healthy, ready.Dependencies[name])
		}
	}
}

func TestDatabaseProbeDelegatesToStore(t *testing.T) {
	set := NewSet(time.Second)
	set.Register(NewDatabaseProbe(stubPinger(true)))
	if res := set.Run(context.Background())["database"]; !res.Healthy {
		t.Fatalf("expected healthy database probe, got %#v", res)
	}

	set.Register(NewDatabaseProbe(stubPinger(false)))
	res := set.Run(context.Background())["database"]
	if res.Healthy || res.LatencyMillis != FailedLatency {
		t.Fatalf("expected unhealthy database probe with sentinel, got %#v", res)
	}
}

func TestCacheProbeWithoutClientStaysDeterministic(t *testing.T) {
	set := NewSet(time.Second)
	set.Register(NewCacheProbe(nil))

	res, ok := set.Run(context.Background())["cache"]
	if !ok {
		t.Fatalf("cache key must never be missing")
	}
	if res.Healthy {
		t.Fatalf("unwired cache client must report down")
	}
	if res.Detail == "" {
		t.Fatalf("expected detail explaining the unwired client")
	}
}

type stubPinger bool

func (p stubPinger) IsHealthy(context.Context) bool { return bool(p) }
