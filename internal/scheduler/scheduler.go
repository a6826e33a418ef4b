package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"go-etl-scheduler/internal/model"
)

const maxNotes = 100

var (
	ErrInvalidInterval = errors.New("interval must be at least one second")
	ErrAlreadyRunning  = errors.New("scheduler already running")
)

// PipelineRunner runs one full pipeline pass and never fails outright.
type PipelineRunner interface {
	RunPipeline(ctx context.Context) model.RunResult
}

// Scheduler triggers the pipeline on a fixed interval and on demand. At most
// one run is in flight at any time.
type Scheduler struct {
	runner PipelineRunner
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	cron         *cron.Cron
	entry        cron.EntryID
	interval     time.Duration
	running      bool
	inFlight     bool
	currentStart time.Time
	lastRun      *model.RunResult
	skipped      int
	notes        []string

	wg sync.WaitGroup
}

func New(runner PipelineRunner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
		now:    time.Now,
		notes:  []string{},
	}
}

// Start begins ticking every interval. The first tick fires one interval
// after Start.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	c := cron.New()
	s.entry = c.Schedule(cron.Every(interval), cron.FuncJob(s.tick))
	s.cron = c
	s.interval = interval
	s.running = true
	c.Start()

	s.logger.Info("scheduler started", zap.Duration("interval", interval))
	return nil
}

// Stop stops the ticker and waits for an in-flight run to finish. No run
// starts afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	inFlight := s.inFlight
	s.mu.Unlock()

	if inFlight {
		s.logger.Info("scheduler stopping, waiting for in-flight run")
	}
	<-c.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// TriggerNow starts a run in the background. It returns false without
// waiting if a run is in flight or the scheduler is stopped.
func (s *Scheduler) TriggerNow() bool {
	if !s.acquire("manual trigger") {
		return false
	}
	go s.execute(context.Background())
	return true
}

// RunNow runs the pipeline synchronously under the same gate as TriggerNow.
// Cancelling ctx does not interrupt a started run.
func (s *Scheduler) RunNow(ctx context.Context) (model.RunResult, bool) {
	if !s.acquire("synchronous trigger") {
		return model.RunResult{}, false
	}
	return s.execute(context.WithoutCancel(ctx)), true
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() model.ScheduleState {
	s.mu.Lock()
	state := model.ScheduleState{
		Interval:     s.interval,
		Running:      s.running,
		RunInFlight:  s.inFlight,
		SkippedTicks: s.skipped,
		Notes:        append([]string{}, s.notes...),
	}
	if s.inFlight {
		started := s.currentStart
		state.CurrentRunStartedAt = &started
	}
	if s.lastRun != nil {
		last := s.lastRun.Clone()
		state.LastRun = &last
	}
	c, entry, running := s.cron, s.entry, s.running
	s.mu.Unlock()

	if running {
		state.NextRun = c.Entry(entry).Next
	}
	return state
}

// tick is the periodic trigger. A tick that finds a run in flight is
// skipped and noted; the previous run's status is never consulted.
func (s *Scheduler) tick() {
	if !s.acquire("scheduled tick") {
		return
	}
	s.execute(context.Background())
}

// acquire takes the run gate.
func (s *Scheduler) acquire(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	if s.inFlight {
		if trigger == "scheduled tick" {
			s.skipped++
			s.note(fmt.Sprintf("%s: tick skipped, run started at %s still in flight",
				s.now().UTC().Format(time.RFC3339), s.currentStart.UTC().Format(time.RFC3339)))
			s.logger.Info("tick skipped, previous run still in flight", zap.Int("skipped_ticks", s.skipped))
		}
		return false
	}

	s.inFlight = true
	s.currentStart = s.now()
	s.wg.Add(1)
	s.logger.Debug("run gate acquired", zap.String("trigger", trigger))
	return true
}

// execute runs the pipeline and releases the gate, even if the runner panics.
func (s *Scheduler) execute(ctx context.Context) (res model.RunResult) {
	defer func() {
		last := res.Clone()
		s.mu.Lock()
		s.inFlight = false
		s.currentStart = time.Time{}
		s.lastRun = &last
		s.mu.Unlock()
		s.wg.Done()
	}()

	return s.runner.RunPipeline(ctx)
}

func (s *Scheduler) note(msg string) {
	s.notes = append(s.notes, msg)
	if len(s.notes) > maxNotes {
		s.notes = s.notes[len(s.notes)-maxNotes:]
	}
}
