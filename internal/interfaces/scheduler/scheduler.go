package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// ScheduleTime is a time of day when a sync pass should start.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// Runner starts one full sync pass, returning how many account jobs it
// enqueued. Implemented by the sync orchestrator's SyncAll.
type Runner func(ctx context.Context) (int, error)

// Scheduler triggers sync passes at fixed times of day. The heavy
// lifting stays on the queues; a pass here only enqueues.
type Scheduler struct {
	times        []ScheduleTime
	runOnStartup bool
	run          Runner

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun string
	mu      sync.Mutex
}

type Config struct {
	Times        []string
	RunOnStartup bool
	Run          Runner
}

func New(cfg Config) (*Scheduler, error) {
	times := make([]ScheduleTime, 0, len(cfg.Times))
	for _, s := range cfg.Times {
		st, err := ParseScheduleTime(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", s, err)
		}
		times = append(times, st)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Printf("Scheduler initialized with %d schedule times: %v", len(times), cfg.Times)

	return &Scheduler{
		times:        times,
		runOnStartup: cfg.RunOnStartup,
		run:          cfg.Run,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (s *Scheduler) Start() {
	if s.runOnStartup {
		log.Println("Scheduler: running initial sync pass on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runPass()
		}()
	}

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
	log.Println("Scheduler: shutdown complete")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				log.Printf("Scheduler: triggered at %s", now.Format("15:04"))
				s.runPass()
			}
		}
	}
}

// shouldRun matches the current minute against the schedule, at most
// once per minute even if the ticker fires twice within it.
func (s *Scheduler) shouldRun(now time.Time) bool {
	key := now.Format("2006-01-02-15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}
	for _, st := range s.times {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}
	return false
}

func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	enqueued, err := s.run(ctx)
	if err != nil {
		log.Printf("Scheduler: sync pass failed: %v", err)
		return
	}
	log.Printf("Scheduler: sync pass enqueued %d account jobs", enqueued)
}
