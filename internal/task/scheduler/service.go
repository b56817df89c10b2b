package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "iddaemon/pkg/logx"
)

// Job is a scheduled unit of work. ctx is canceled when Stop gives up
// waiting for the run to finish.
type Job func(ctx context.Context)

type scheduleDef struct {
	name    string
	spec    string
	sched   cron.Schedule
	job     Job
	entryID cron.EntryID
}

// ScheduleInfo describes a registered schedule.
type ScheduleInfo struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   []*scheduleDef

	jobCtx    context.Context
	jobCancel context.CancelFunc
}

type Option func(*Service)

// WithLocation sets the timezone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log: log,
		loc: time.Local,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// everySchedule fires every d, measured from the previous activation. Unlike
// cron.Every it keeps sub-second precision.
type everySchedule struct{ d time.Duration }

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(e.d) }

// Add parses schedule and registers job under name.
func (s *Service) Add(name, schedule string, job Job) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	switch ps.Kind {
	case SpecInterval:
		return s.AddSchedule(name, fmt.Sprintf("@every %s", ps.Every), everySchedule{d: ps.Every}, job)
	case SpecCron:
		sched, err := s.parser.Parse(ps.Cron)
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", ps.Cron, err)
		}
		return s.AddSchedule(name, ps.Cron, sched, job)
	default:
		return fmt.Errorf("unsupported schedule kind %v", ps.Kind)
	}
}

// AddSchedule registers job with an already-built cron.Schedule. spec is only
// used for logging.
func (s *Service) AddSchedule(name, spec string, sched cron.Schedule, job Job) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if sched == nil || job == nil {
		return errors.New("schedule and job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.defs {
		if d.name == name {
			return fmt.Errorf("schedule %q already registered", name)
		}
	}
	d := &scheduleDef{name: name, spec: spec, sched: sched, job: job}
	s.defs = append(s.defs, d)
	if s.c != nil {
		s.registerLocked(d)
	}
	return nil
}

// Start begins triggering. Jobs receive a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	s.jobCtx, s.jobCancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, d := range s.defs {
		s.registerLocked(d)
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) registerLocked(d *scheduleDef) {
	job, name, ctx := d.job, d.name, s.jobCtx
	d.entryID = s.c.Schedule(d.sched, cron.FuncJob(func() {
		job(ctx)
	}))
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", d.spec))
}

// Stop halts triggering and waits for a running job. If ctx ends first the
// job's context is canceled and Stop waits for it to return.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.jobCancel
	s.c, s.jobCancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	defer cancel()

	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop deadline reached; canceling running job")
		cancel()
		<-done
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Schedules returns registered schedules sorted by name. Next/Prev are only
// set while the service is running.
func (s *Service) Schedules() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleInfo, 0, len(s.defs))
	for _, d := range s.defs {
		info := ScheduleInfo{Name: d.name, Spec: d.spec}
		if s.c != nil {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Next returns the next activation of name, or the zero time.
func (s *Service) Next(name string) time.Time {
	for _, info := range s.Schedules() {
		if info.Name == name {
			return info.Next
		}
	}
	return time.Time{}
}
