package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a unit of scheduled background work
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobScheduler runs each registered job in its own goroutine, sleeping
// until the job's next run time and rescheduling after every run.
type JobScheduler struct {
	mu      sync.Mutex
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() *JobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job to the scheduler. Must be called before Start.
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
}

// Start launches the run loops for all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d jobs", len(s.jobs))
	for name, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(name, job)
	}
}

func (s *JobScheduler) loop(name string, job Job) {
	defer s.wg.Done()

	for {
		next := job.GetNextRunTime()
		wait := time.Until(next)
		log.Printf("⏰ [SCHEDULER] Job '%s' scheduled for %s (in %v)",
			name, next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			log.Printf("⏹️  [SCHEDULER] Stopped job: %s", name)
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
		} else {
			log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start).Round(time.Millisecond))
		}
	}
}

// RunNow immediately runs a specific job, outside its schedule
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		log.Printf("⚠️  [SCHEDULER] Job '%s' not found", name)
		return nil
	}
	return job.Run(s.ctx)
}

// Stop cancels all job loops and waits for in-flight runs
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Job scheduler stopped")
}
