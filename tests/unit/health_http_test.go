package unit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/quantgrid/marketdata-service/internal/adapters/http"
	"github.com/quantgrid/marketdata-service/internal/adapters/security"
	"github.com/quantgrid/marketdata-service/internal/application"
	"github.com/quantgrid/marketdata-service/internal/health"
)

func newServer(t *testing.T, outcomes map[string]error) *httptest.Server {
	t.Helper()

	set := health.NewSet(time.Second)
	for name, err := range outcomes {
		err := err
		set.Register(health.NewProbeFunc(name, func(context.Context) error { return err }))
	}
	aggregator := health.NewAggregator(set, "0.1.0", "test")

	verifier, err := security.NewTokenVerifier("unit-test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	svc := application.NewService(application.Dependencies{})

	srv := httptest.NewServer(httpadapter.NewRouter(httpadapter.NewHandler(aggregator, verifier, svc)))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestHealthAllDependenciesUp(t *testing.T) {
	srv := newServer(t, map[string]error{"database": nil, "cache": nil})

	code, body := getJSON(t, srv.URL+"/health")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
	checks := body["checks"].(map[string]any)
	for _, name := range []string{"database", "cache"} {
		check := checks[name].(map[string]any)
		if check["status"] != "up" {
			t.Fatalf("expected %s up, got %v", name, check["status"])
		}
		if check["responseTime"].(float64) < 0 {
			t.Fatalf("expected non-negative responseTime for %s", name)
		}
	}
	for _, field := range []string{"timestamp", "uptime", "memory", "version", "environment"} {
		if _, ok := body[field]; !ok {
			t.Fatalf("missing %s in health body: %v", field, body)
		}
	}

	code, body = getJSON(t, srv.URL+"/health/ready")
	if code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("expected 200 ready, got %d %v", code, body["status"])
	}
	deps := body["dependencies"].(map[string]any)
	if deps["database"] != true || deps["cache"] != true {
		t.Fatalf("expected all dependencies true, got %v", deps)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	srv := newServer(t, map[string]error{
		"database": errors.New("connection refused"),
		"cache":    nil,
	})

	code, body := getJSON(t, srv.URL+"/health")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error status, got %v", body["status"])
	}
	database := body["checks"].(map[string]any)["database"].(map[string]any)
	if database["status"] != "down" {
		t.Fatalf("expected database down, got %v", database["status"])
	}
	if database["responseTime"].(float64) != -1 {
		t.Fatalf("expected -1 responseTime, got %v", database["responseTime"])
	}

	code, body = getJSON(t, srv.URL+"/health/ready")
	if code != http.StatusServiceUnavailable || body["status"] != "not-ready" {
		t.Fatalf("expected 503 not-ready, got %d %v", code, body["status"])
	}
	deps := body["dependencies"].(map[string]any)
	if deps["database"] != false {
		t.Fatalf("expected database false, got %v", deps)
	}

	code, body = getJSON(t, srv.URL+"/health/live")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness must stay ok while dependencies are down, got %d %v", code, body["status"])
	}
}

func TestLivenessHasNoDependencyKeys(t *testing.T) {
	srv := newServer(t, map[string]error{"database": errors.New("refused")})

	_, body := getJSON(t, srv.URL+"/health/live")
	if _, ok := body["checks"]; ok {
		t.Fatalf("liveness must not report dependency checks: %v", body)
	}
	if _, ok := body["timestamp"]; !ok {
		t.Fatalf("expected timestamp in liveness body: %v", body)
	}
}

func TestScaffoldEndpointsReportNotImplemented(t *testing.T) {
	srv := newServer(t, map[string]error{"database": nil})

	resp, err := http.Post(srv.URL+"/api/v1/auth/register", "application/json", nil)
	if err != nil {
		t.Fatalf("post register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501 for stub endpoint, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newServer(t, map[string]error{"database": nil})

	resp, err := http.Get(srv.URL + "/api/v1/orders")
	if err != nil {
		t.Fatalf("get orders: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	verifier, _ := security.NewTokenVerifier("unit-test-secret")
	token, err := verifier.Sign(security.Claims{UserID: "u-1", Role: "trader"}, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get orders with token: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501 behind valid token, got %d", authed.StatusCode)
	}
}
