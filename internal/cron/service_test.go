package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func TestRunOnceRunsEveryJobEvenAfterFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &testJob{name: "cart-expiry"}
	bad := &testJob{name: "outbox-retention", err: errors.New("db down")}
	lock := &fakeLock{}
	service := newTestService(t, lock, reg, bad, ok)

	ran, err := service.RunOnce(t.Context())
	if !ran {
		t.Fatal("expected the cycle to run")
	}
	if err == nil {
		t.Fatal("expected the failed job to surface")
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected the lock to be released once, held=%v releases=%d", lock.held, lock.releases)
	}
	if got := counterValue(t, reg, "cron_job_failure_total", "outbox-retention"); got != 1 {
		t.Fatalf("expected one recorded failure, got %v", got)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "cart-expiry"}
	lock := &fakeLock{held: true}
	service := newTestService(t, lock, nil, job)

	ran, err := service.RunOnce(t.Context())
	if err != nil || ran {
		t.Fatalf("expected a skipped cycle, ran=%v err=%v", ran, err)
	}
	if job.runs != 0 || lock.releases != 0 {
		t.Fatalf("skipped cycle must not run jobs or release, runs=%d releases=%d", job.runs, lock.releases)
	}
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	service := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, nil, &testJob{name: "x"})
	if _, err := service.RunOnce(t.Context()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "cart-expiry"}
	service := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected lock error")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{job=%q} not found", name, job)
	return 0
}
