package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	logx "pollbot/pkg/logx"
)

func New(cfg Config, src Source, act Actions, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	s := &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		src:    src,
		act:    act,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		runCtx: context.Background(),
	}
	s.loc = s.loadLocationLocked()
	s.c = s.newCronLocked()
	return s
}

func (s *Service) newCronLocked() *cron.Cron {
	cl := cronLogger{log: s.log}
	return cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}

// Location is the timezone jobs fire in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Apply swaps the config. A timezone change recreates cron and re-registers
// every job.
func (s *Service) Apply(cfg Config) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	s.mu.Lock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if oldTZ == strings.TrimSpace(cfg.Timezone) {
		s.mu.Unlock()
		return
	}

	old := s.c
	s.loc = s.loadLocationLocked()
	s.c = s.newCronLocked()
	for i := range s.jobs {
		_ = s.addLocked(&s.jobs[i])
	}
	running := s.running
	if running {
		s.c.Start()
	}
	loc, n := s.loc, len(s.jobs)
	s.mu.Unlock()

	// Running jobs take s.mu, so the old cron is drained without holding it.
	if running {
		<-old.Stop().Done()
	}
	s.log.Info("timezone changed", logx.String("tz", loc.String()), logx.Int("jobs", n))
}

// Start registers jobs for the stored collection and starts firing them.
// ctx bounds the dispatch calls of fired jobs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.runCtx = ctx
	s.c.Start()
	s.mu.Unlock()

	n, err := s.Rebuild(ctx)
	if err != nil {
		return err
	}
	s.log.Info("service started", logx.String("tz", s.Location().String()), logx.Int("jobs", n))
	return nil
}

// Stop stops firing and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Rebuild removes every job and registers two per stored record. It returns
// the number of registered jobs.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	recs := s.src.Load(ctx)

	s.mu.Lock()
	for _, j := range s.jobs {
		if j.entryID != 0 {
			s.c.Remove(j.entryID)
		}
	}
	s.jobs = s.jobs[:0]

	var firstErr error
	for _, rec := range recs {
		rec := rec.Clone()
		for _, d := range []jobDef{
			{name: PollJobName(rec.ID), kind: KindPoll, rec: rec, spec: PollSpec(rec)},
			{name: ReminderJobName(rec.ID), kind: KindReminder, rec: rec, spec: ReminderSpec(rec)},
		} {
			s.jobs = append(s.jobs, d)
			if err := s.addLocked(&s.jobs[len(s.jobs)-1]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	n := 0
	for _, j := range s.jobs {
		if j.entryID != 0 {
			n++
		}
	}
	s.mu.Unlock()

	s.log.Info("jobs rebuilt", logx.Int("records", len(recs)), logx.Int("jobs", n))
	eventbus.Publish(s.bus, eventbus.SchedulerRebuilt, eventbus.RebuildInfo{Records: len(recs), Jobs: n})
	return n, firstErr
}

func (s *Service) addLocked(d *jobDef) error {
	d.entryID = 0
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(s.job(d.kind, d.rec)))
	if err != nil {
		s.log.Error("job register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return fmt.Errorf("register %s: %w", d.name, err)
	}
	d.entryID = eid
	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("job registered",
			logx.String("name", d.name),
			logx.String("spec", d.spec),
			logx.String("next", s.previewLocked(d.spec)),
		)
	}
	return nil
}

// job returns the cron callback for rec. The record is captured by value so a
// later rebuild cannot change what an already scheduled run sends.
func (s *Service) job(kind Kind, rec schedule.Record) func() {
	return func() {
		s.mu.Lock()
		base := s.runCtx
		timeout := s.cfg.JobTimeout
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		s.log.Debug("job fired", logx.String("kind", string(kind)), logx.String("id", rec.ID))
		switch kind {
		case KindPoll:
			_ = s.act.SendPoll(ctx, rec)
		case KindReminder:
			_ = s.act.SendReminder(ctx, rec)
		}
	}
}

// Jobs returns the registered jobs sorted by name, with the next fire time
// after now in the scheduler timezone.
func (s *Service) Jobs(now time.Time) []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.entryID == 0 {
			continue
		}
		it := JobInfo{Name: j.name, Kind: j.kind, RecordID: j.rec.ID, Spec: j.spec}
		if sched, err := s.parser.Parse(j.spec); err == nil {
			it.Next = sched.Next(now.In(s.loc))
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) previewLocked(spec string) string {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	t := time.Now().In(s.loc)
	parts := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		parts = append(parts, t.Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, ", ")
}

// cronLogger routes robfig/cron diagnostics into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
