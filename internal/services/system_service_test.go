package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/machinehub/api/internal/domain"
)

type stubHealthRepository struct {
	collectFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFn == nil {
		return domain.SystemHealthReport{}, errors.New("unexpected Collect call")
	}
	return s.collectFn(ctx)
}

func TestSystemServiceHealthReportFillsBuildMetadata(t *testing.T) {
	now := time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Minute)

	repo := &stubHealthRepository{
		collectFn: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Checks: map[string]domain.SystemHealthCheck{
					"store": {Status: domain.HealthStatusOK},
				},
			}, nil
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock(now),
		Build: BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "staging",
			StartedAt:   started,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc1234" || report.Environment != "staging" {
		t.Fatalf("build metadata not applied: %+v", report)
	}
	if report.Uptime != 90*time.Minute {
		t.Fatalf("expected uptime 90m, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportDerivesDegraded(t *testing.T) {
	repo := &stubHealthRepository{
		collectFn: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Checks: map[string]domain.SystemHealthCheck{
					"store":   {Status: domain.HealthStatusOK},
					"gateway": {Status: domain.HealthStatusDegraded},
				},
			}, nil
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport returned error: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
}
