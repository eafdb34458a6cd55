package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/scheduler/jobs"
)

// Scheduler ticks every registered job at its own interval and hands it to a small pool of workers. A job is never
// queued twice, so a run that outlasts its interval delays the next one instead of piling up.
type Scheduler struct {
	jobs               map[string]jobs.Job
	cancel             context.CancelFunc
	crashTrackerClient crashtracker.CrashTrackerClient
	jobQueue           chan jobs.Job
	enqueuedJobs       sync.Map
	workers            sync.WaitGroup
}

type SchedulerOptions struct {
	SubscriptionSweepIntervalSeconds int
	StaleConversionTimeout           time.Duration
}

type SchedulerJobRegisterOption func(*Scheduler)

// SchedulerWorkerCount is the number of concurrent job executions.
const SchedulerWorkerCount = 2

// StartScheduler registers the jobs and runs them until ctx is done or the process receives a shutdown signal.
func StartScheduler(ctx context.Context, crashTrackerClient crashtracker.CrashTrackerClient, schedulerJobRegisters ...SchedulerJobRegisterOption) {
	defer crashTrackerClient.FlushEvents(2 * time.Second)
	defer crashTrackerClient.Recover()

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)

	s := newScheduler(cancel)
	s.crashTrackerClient = crashTrackerClient
	for _, register := range schedulerJobRegisters {
		register(s)
	}

	s.start(ctx)
	<-ctx.Done()
	s.stop()
}

func newScheduler(cancel context.CancelFunc) *Scheduler {
	return &Scheduler{
		jobs:     make(map[string]jobs.Job),
		cancel:   cancel,
		jobQueue: make(chan jobs.Job),
	}
}

// addJob only registers the job; tickers start in start.
func (s *Scheduler) addJob(job jobs.Job) {
	log.Infof("registering job to scheduler [name: %s], [interval: %s]", job.GetName(), job.GetInterval())
	s.jobs[job.GetName()] = job
}

func (s *Scheduler) start(ctx context.Context) {
	if len(s.jobs) == 0 {
		log.Ctx(ctx).Info("No jobs to start")
		s.stop()
		return
	}
	log.Ctx(ctx).Infof("Starting scheduler with %d workers and %d jobs", SchedulerWorkerCount, len(s.jobs))

	for id := 1; id <= SchedulerWorkerCount; id++ {
		s.workers.Add(1)
		go func(id int, tracker crashtracker.CrashTrackerClient) {
			defer s.workers.Done()
			s.work(ctx, id, tracker)
		}(id, s.crashTrackerClient.Clone())
	}

	for _, job := range s.jobs {
		go s.tick(ctx, job)
	}
}

// tick feeds one job into the queue on every interval.
func (s *Scheduler) tick(ctx context.Context, job jobs.Job) {
	if job.RunOnStart() {
		s.enqueue(ctx, job)
	}
	ticker := time.NewTicker(job.GetInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.enqueue(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, job jobs.Job) {
	name := job.GetName()
	if _, queued := s.enqueuedJobs.LoadOrStore(name, true); queued {
		log.Ctx(ctx).Debugf("Skipping job %s, already in queue", name)
		return
	}
	select {
	case s.jobQueue <- job:
	case <-ctx.Done():
		s.enqueuedJobs.Delete(name)
	}
}

// stop cancels the scheduler context and waits for running jobs to return.
func (s *Scheduler) stop() {
	log.Info("Stopping scheduler...")
	s.cancel()
	s.workers.Wait()
}

func (s *Scheduler) work(ctx context.Context, workerID int, crashTrackerClient crashtracker.CrashTrackerClient) {
	for {
		select {
		case job := <-s.jobQueue:
			executeJob(ctx, job, workerID, crashTrackerClient)
			s.enqueuedJobs.Delete(job.GetName())
		case <-ctx.Done():
			log.Ctx(ctx).Debugf("Worker %d stopping", workerID)
			return
		}
	}
}

// executeJob runs a job with its own run_id log field. Errors and panics are reported and never stop the worker.
func executeJob(ctx context.Context, job jobs.Job, workerID int, crashTrackerClient crashtracker.CrashTrackerClient) {
	ctx = log.Set(ctx, log.Ctx(ctx).WithFields(log.F{
		"job":    job.GetName(),
		"run_id": uuid.NewString(),
	}))
	msg := fmt.Sprintf("error processing job %s on worker %d", job.GetName(), workerID)

	defer func() {
		if r := recover(); r != nil {
			crashTrackerClient.LogAndReportErrors(ctx, fmt.Errorf("panic: %v", r), msg)
		}
	}()

	if err := job.Execute(ctx); err != nil {
		crashTrackerClient.LogAndReportErrors(ctx, err, msg)
	}
}

func WithSubscriptionSweepJobOption(sweeper jobs.SubscriptionSweeper, intervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j, err := jobs.NewSubscriptionSweepJob(sweeper, intervalSeconds)
		if err != nil {
			log.Errorf("error creating subscription sweep job: %v", err)
			return
		}
		s.addJob(j)
	}
}

func WithStaleConversionReaperJobOption(reaper jobs.StaleConversionReaper, olderThan time.Duration) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j, err := jobs.NewStaleConversionReaperJob(reaper, olderThan)
		if err != nil {
			log.Errorf("error creating stale conversion reaper job: %v", err)
			return
		}
		s.addJob(j)
	}
}
