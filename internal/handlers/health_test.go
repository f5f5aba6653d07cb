package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/machinehub/api/internal/domain"
	"github.com/machinehub/api/internal/services"
)

type stubSystemService struct {
	healthReportFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.healthReportFn == nil {
		return domain.SystemHealthReport{}, nil
	}
	return s.healthReportFn(ctx)
}

var _ services.SystemService = (*stubSystemService)(nil)

func TestHealthzReportsBuildInfo(t *testing.T) {
	started := time.Date(2025, time.March, 5, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.March, 5, 10, 30, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "staging",
			StartedAt:   started,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != domain.HealthStatusOK {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["version"] != "1.4.0" || payload["commitSha"] != "abc1234" {
		t.Fatalf("unexpected build info %v", payload)
	}
	if payload["uptime"] != "2h30m0s" {
		t.Fatalf("unexpected uptime %v", payload["uptime"])
	}
}

func TestReadyzHealthy(t *testing.T) {
	checked := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)
	system := &stubSystemService{
		healthReportFn: func(_ context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: checked},
				},
				GeneratedAt: checked,
				Environment: "staging",
			}, nil
		},
	}
	h := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload readyzPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != domain.HealthStatusOK {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	check, ok := payload.Checks["firestore"]
	if !ok {
		t.Fatalf("expected firestore check, got %v", payload.Checks)
	}
	if check.LatencyMS != 12 {
		t.Fatalf("unexpected latency %d", check.LatencyMS)
	}
	if len(payload.Details) != 0 {
		t.Fatalf("expected no details, got %v", payload.Details)
	}
}

func TestReadyzDegraded(t *testing.T) {
	system := &stubSystemService{
		healthReportFn: func(_ context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
					"gateway":   {Status: domain.HealthStatusOK},
				},
			}, nil
		},
	}
	h := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var payload readyzPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Details) != 1 || payload.Details[0] != "firestore: deadline exceeded" {
		t.Fatalf("unexpected details %v", payload.Details)
	}
}

func TestReadyzReportError(t *testing.T) {
	system := &stubSystemService{
		healthReportFn: func(_ context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("probe failed")
		},
	}
	h := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzWithoutSystemService(t *testing.T) {
	h := NewHealthHandlers()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
