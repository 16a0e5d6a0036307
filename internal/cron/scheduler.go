package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/config"
)

// Job is a named periodic task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	jobs      map[string]gocron.Job
}

// New builds a scheduler evaluating cron specs in loc.
func New(loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("init cron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger, jobs: map[string]gocron.Job{}}, nil
}

// Add registers job. Every run gets ctx and its outcome is logged.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if job.Run == nil {
		return fmt.Errorf("cron job %q has no task", job.Name)
	}
	run := job.Run
	name := job.Name
	j, err := s.scheduler.NewJob(
		gocron.CronJob(job.Spec, false),
		gocron.NewTask(func() error { return run(ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, jobName string, err error) {
				s.logger.Warn("cron job failed", zap.String("job", jobName), zap.Error(err))
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("schedule %s (%s): %w", name, job.Spec, err)
	}
	s.jobs[name] = j
	return nil
}

// Names lists the registered jobs.
func (s *Scheduler) Names() []string {
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

// RunNow triggers a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown cron job %q", name)
	}
	return j.RunNow()
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("cron scheduler started", zap.Strings("jobs", s.Names()))
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

type stagingCleaner interface {
	CleanupStaging(ttl time.Duration) ([]string, error)
}

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

type reminderDispatcher interface {
	DispatchReminders(ctx context.Context) (*service.ReminderReport, error)
}

// Maintenance holds the services periodic jobs act on. Nil members are skipped.
type Maintenance struct {
	Staging   stagingCleaner
	Exports   exportCleaner
	Reminders reminderDispatcher
}

// MaintenanceJobs returns the cleanup and reminder jobs.
func MaintenanceJobs(cfg config.CronConfig, m Maintenance, logger *zap.Logger) []Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out []Job
	if m.Staging != nil {
		out = append(out, Job{
			Name: "cleanup-staging",
			Spec: cfg.CleanupSpec,
			Run: func(ctx context.Context) error {
				removed, err := m.Staging.CleanupStaging(cfg.FileTTL)
				if err != nil {
					return err
				}
				logger.Info("staged uploads cleaned", zap.Int("removed", len(removed)))
				return nil
			},
		})
	}
	if m.Exports != nil {
		out = append(out, Job{
			Name: "cleanup-exports",
			Spec: cfg.CleanupSpec,
			Run: func(ctx context.Context) error {
				removed, err := m.Exports.Cleanup(cfg.FileTTL)
				if err != nil {
					return err
				}
				logger.Info("exports cleaned", zap.Int("removed", len(removed)))
				return nil
			},
		})
	}
	if m.Reminders != nil {
		out = append(out, Job{
			Name: "notification-reminders",
			Spec: cfg.ReminderSpec,
			Run: func(ctx context.Context) error {
				report, err := m.Reminders.DispatchReminders(ctx)
				if err != nil {
					return err
				}
				if report.Due > 0 {
					logger.Info("reminders dispatched",
						zap.Int("due", report.Due), zap.Int("sent", report.Sent), zap.Int("failed", report.Failed))
				}
				return nil
			},
		})
	}
	return out
}
