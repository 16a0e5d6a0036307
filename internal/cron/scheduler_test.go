package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/config"
)

type fakeCleaner struct {
	ttl     time.Duration
	removed []string
	err     error
}

func (f *fakeCleaner) CleanupStaging(ttl time.Duration) ([]string, error) {
	f.ttl = ttl
	return f.removed, f.err
}

func (f *fakeCleaner) Cleanup(ttl time.Duration) ([]string, error) {
	f.ttl = ttl
	return f.removed, f.err
}

type fakeReminders struct {
	calls int
}

func (f *fakeReminders) DispatchReminders(ctx context.Context) (*service.ReminderReport, error) {
	f.calls++
	return &service.ReminderReport{Due: 1, Sent: 1}, nil
}

var cronCfg = config.CronConfig{CleanupSpec: "0 3 * * *", ReminderSpec: "*/10 * * * *", FileTTL: 48 * time.Hour}

func TestMaintenanceJobs(t *testing.T) {
	staging := &fakeCleaner{removed: []string{"a.pdf"}}
	exports := &fakeCleaner{err: errors.New("disk")}
	reminders := &fakeReminders{}

	jobs := MaintenanceJobs(cronCfg, Maintenance{Staging: staging, Exports: exports, Reminders: reminders}, zap.NewNop())
	require.Len(t, jobs, 3)

	byName := map[string]Job{}
	for _, j := range jobs {
		byName[j.Name] = j
	}

	require.NoError(t, byName["cleanup-staging"].Run(context.Background()))
	assert.Equal(t, 48*time.Hour, staging.ttl)
	assert.Error(t, byName["cleanup-exports"].Run(context.Background()))
	require.NoError(t, byName["notification-reminders"].Run(context.Background()))
	assert.Equal(t, 1, reminders.calls)
	assert.Equal(t, "*/10 * * * *", byName["notification-reminders"].Spec)
}

func TestMaintenanceJobsSkipsMissingServices(t *testing.T) {
	jobs := MaintenanceJobs(cronCfg, Maintenance{Reminders: &fakeReminders{}}, nil)
	require.Len(t, jobs, 1)
	assert.Equal(t, "notification-reminders", jobs[0].Name)
}

func TestSchedulerRunNow(t *testing.T) {
	s, err := New(time.UTC, nil)
	require.NoError(t, err)

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	require.NoError(t, s.Add(context.Background(), Job{Name: "tick", Spec: "0 3 * * *", Run: func(ctx context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	}}))
	assert.Error(t, s.Add(context.Background(), Job{Name: "broken", Spec: "not a spec", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(context.Background(), Job{Name: "empty", Spec: "0 3 * * *"}))

	s.Start()
	defer func() { _ = s.Shutdown() }()

	require.NoError(t, s.RunNow("tick"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Equal(t, int32(1), runs.Load())
	assert.Error(t, s.RunNow("missing"))
	assert.Equal(t, []string{"tick"}, s.Names())
}
