package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/machinehub/api/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck probes one backend dependency during readiness collection.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout sets the timeout used by checks that omit their own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects the time source, primarily for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository builds a HealthRepository that runs every
// check concurrently on each Collect call. Checks are validated up front so a
// misconfigured probe fails at startup, not on the readiness path.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	outcomes := make([]domain.SystemHealthCheck, len(r.checks))
	var wg sync.WaitGroup
	wg.Add(len(r.checks))
	for i, check := range r.checks {
		go func(i int, check DependencyCheck) {
			defer wg.Done()
			outcomes[i] = r.runCheck(ctx, check)
		}(i, check)
	}
	wg.Wait()

	checks := make(map[string]domain.SystemHealthCheck, len(r.checks))
	for i, check := range r.checks {
		checks[check.Name] = outcomes[i]
	}

	return domain.SystemHealthReport{
		Status:      overallStatus(outcomes),
		Checks:      checks,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) runCheck(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(checkCtx)
	end := r.now()
	if err == nil && checkCtx.Err() != nil {
		// The probe returned after its deadline without reporting it.
		err = checkCtx.Err()
	}

	status, detail := classifyCheckError(err)
	result := domain.SystemHealthCheck{
		Status:    status,
		Detail:    detail,
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func classifyCheckError(err error) (string, string) {
	switch {
	case err == nil:
		return domain.HealthStatusOK, "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		return domain.HealthStatusError, "cancelled"
	default:
		return domain.HealthStatusDegraded, err.Error()
	}
}

func overallStatus(outcomes []domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, outcome := range outcomes {
		switch outcome.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusDegraded:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
