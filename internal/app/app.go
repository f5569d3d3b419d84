package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pollbot/internal/bot"
	"pollbot/internal/config"
	"pollbot/internal/dialog"
	"pollbot/internal/dispatch"
	"pollbot/internal/eventbus"
	"pollbot/internal/observability/metrics"
	"pollbot/internal/observability/ops"
	"pollbot/internal/runtime/lifecycle"
	"pollbot/internal/runtime/supervisor"
	"pollbot/internal/schedule"
	"pollbot/internal/storage"
	"pollbot/internal/task/scheduler"
	kit "pollbot/internal/transport"
	telegram "pollbot/internal/transport/telegram/adapter"
	"pollbot/internal/transport/telegram/router"
	logx "pollbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     storage.Store
	schedules *schedule.Store

	adapter *telegram.Adapter
	disp    *dispatch.Dispatcher
	sched   *scheduler.Service
	dialogs *dialog.Manager
	router  *router.Router
	metrics *metrics.Metrics
	ops     *ops.Service
	sd      *lifecycle.Notifier

	startedAt time.Time
	updates   chan kit.Update
}

// NewApp loads the configuration and builds every component. Nothing runs
// until Start.
func NewApp(cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutDuration(),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink off, set its target, then apply the
	// final config so Apply does not warn about a missing target.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	if id, ok := logTarget(cfg); ok {
		logSvc.SetTelegramTarget(id, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc := mapStorageConfig(cfg)
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	schedules := schedule.NewStore(st, log.With(logx.String("comp", "schedule")))
	disp := dispatch.New(mapDispatchConfig(cfg), ad, log.With(logx.String("comp", "dispatch")), bus)
	sched := scheduler.New(mapSchedulerConfig(cfg), schedules, disp, log.With(logx.String("comp", "scheduler")), bus)
	schedules.OnChange(func(ctx context.Context) error {
		_, err := sched.Rebuild(ctx)
		return err
	})
	dialogs := dialog.NewManager(mapDialogConfig(cfg), schedules, ad, log.With(logx.String("comp", "dialog")), bus)

	m := metrics.New()
	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     st,
		schedules: schedules,
		adapter:   ad,
		disp:      disp,
		sched:     sched,
		dialogs:   dialogs,
		metrics:   m,
		sd:        lifecycle.NewNotifier(log.With(logx.String("comp", "systemd"))),
		updates:   make(chan kit.Update, 256),
	}
	a.ops = ops.New(mapOpsConfig(cfg), m.Registry(), a.health, log.With(logx.String("comp", "ops")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	cfg := a.cfgm.Get()
	a.router = router.New(a.log.With(logx.String("comp", "router")), a.adapter, cfg.Telegram.AllowedUserIDs,
		router.Options{AppSupervisor: a.sup})
	bot.New(bot.Deps{
		Schedules: a.schedules,
		Jobs:      a.sched,
		Dialogs:   a.dialogs,
		Log:       a.log.With(logx.String("comp", "bot")),
		Bus:       a.bus,
	}).Register(a.router)

	// Metrics subscribe before anything can publish.
	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("metrics.consume", func(c context.Context) {
		defer unsub()
		a.metrics.Run(c, events)
	})

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	a.ops.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sd.Ready()
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	a.log.Info("app started",
		logx.Int64("group_id", cfg.Telegram.GroupID),
		logx.String("tz", a.sched.Location().String()),
	)
	return nil
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	a.sd.Reloading()
	defer a.sd.Ready()

	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config change needs a restart to take effect", logx.Strs("sections", restart))
	}

	if id, ok := logTarget(next); ok {
		a.logs.SetTelegramTarget(id, next.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(next))

	a.router.SetAllowed(next.Telegram.AllowedUserIDs)
	a.disp.Apply(mapDispatchConfig(next))
	a.sched.Apply(mapSchedulerConfig(next))
	a.dialogs.Apply(mapDialogConfig(next))
	a.ops.Reconfigure(ctx, mapOpsConfig(next))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Health is the /healthz body.
type Health struct {
	Status      string                         `json:"status"`
	Uptime      string                         `json:"uptime"`
	Timezone    string                         `json:"timezone"`
	Jobs        int                            `json:"jobs"`
	Supervisors map[string]supervisor.Snapshot `json:"supervisors"`
}

func (a *App) health() any {
	h := Health{
		Status:      "ok",
		Uptime:      time.Since(a.startedAt).Round(time.Second).String(),
		Timezone:    a.sched.Location().String(),
		Jobs:        len(a.sched.Jobs(time.Now())),
		Supervisors: map[string]supervisor.Snapshot{},
	}
	add := func(name string, s *supervisor.Supervisor) {
		if s == nil {
			return
		}
		snap := s.Snapshot()
		if snap.FirstError != "" {
			h.Status = "degraded"
		}
		h.Supervisors[name] = snap
	}
	add("app", a.sup)
	add("telegram.adapter", a.adapter.Supervisor())
	if a.router != nil {
		add("telegram.router", a.router.Supervisor())
	}
	return h
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped, deadline reached", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(stepCtx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}
