package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	kit "pollbot/internal/transport"
	logx "pollbot/pkg/logx"
	"pollbot/pkg/tgui"
)

// DeniedText is the reply to users outside the allow-list.
const DeniedText = "⛔ Нет доступа."

const (
	unknownCommandText = "Неизвестная команда. Список команд: /help"
	busyText           = "Бот занят, попробуйте ещё раз."
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Hidden      bool // not shown in /help or the Telegram menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

type CallbackRoute struct {
	Prefix  string
	Action  string
	Timeout time.Duration
	Handle  HandlerFunc
}

// TextRoute receives non-command messages. Wants is checked before the access
// gate; messages it does not want are dropped silently.
type TextRoute struct {
	Wants   func(chatID, userID int64) bool
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	FromID int64
	Route  string

	Args    []string // command arguments
	Text    string   // full message text
	Payload string   // callback payload

	ReqID   string
	Adapter kit.Adapter
	Logger  logx.Logger

	// Toast is shown as the callback answer. Handlers set it.
	Toast string
}

// Reply sends text to the request chat.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, opt)
	return err
}

type Options struct {
	Workers   int
	QueueSize int
	// AppSupervisor, when set, owns background work such as menu updates.
	AppSupervisor *Supervisor
}

// Router turns updates into handler calls on a bounded worker pool.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]Command // name and aliases
	list      []Command
	callbacks map[string]map[string]CallbackRoute
	text      *TextRoute
	allowed   map[int64]struct{}

	log     logx.Logger
	adapter kit.Adapter
	opt     Options

	runMu   sync.Mutex
	running bool
	sup     *Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, allowed []int64, opt Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Workers <= 0 {
		opt.Workers = runtime.NumCPU()
		if opt.Workers < 2 {
			opt.Workers = 2
		}
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = 256
	}
	r := &Router{
		commands:  map[string]Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log,
		adapter:   adapter,
		opt:       opt,
		jobs:      make(chan func(), opt.QueueSize),
	}
	r.SetAllowed(allowed)
	return r
}

// SetAllowed replaces the allow-list. Safe during hot reload.
func (r *Router) SetAllowed(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	r.mu.Lock()
	r.allowed = m
	r.mu.Unlock()
}

// IsAllowed reports whether userID may use the bot.
func (r *Router) IsAllowed(userID int64) bool {
	r.mu.RLock()
	_, ok := r.allowed[userID]
	r.mu.RUnlock()
	return ok
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.list...)
}

// SetRegistry installs the routes and pushes the command menu to Telegram.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute, text *TextRoute) {
	byName := map[string]Command{}
	list := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		byName[name] = c
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				byName[a] = c
			}
		}
		list = append(list, c)
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, rt := range cbs {
		p, a := strings.TrimSpace(rt.Prefix), strings.TrimSpace(rt.Action)
		if p == "" || a == "" || rt.Handle == nil {
			continue
		}
		if cb[p] == nil {
			cb[p] = map[string]CallbackRoute{}
		}
		cb[p][a] = rt
	}

	r.mu.Lock()
	r.commands = byName
	r.list = list
	r.callbacks = cb
	r.text = text
	r.mu.Unlock()

	r.updateMenu(list)
}

func (r *Router) updateMenu(list []Command) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildMenu(list)
	run := func(parent context.Context) error {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			r.log.Warn("command menu update failed", logx.Err(err))
		}
		return nil
	}
	if r.opt.AppSupervisor != nil {
		r.opt.AppSupervisor.Go("telegram.menu.update", run)
		return
	}
	go func() { _ = run(context.Background()) }()
}

// Supervisor returns the worker supervisor while the dispatch loop runs.
func (r *Router) Supervisor() *Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running {
		return nil
	}
	return r.sup
}

func (r *Router) setSupervisor(sup *Supervisor, running bool) {
	r.runMu.Lock()
	r.sup = sup
	r.running = running
	r.runMu.Unlock()
}

func (r *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop reads updates until ctx is done or updates closes.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := NewSupervisor(ctx,
		WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		WithCancelOnError(false),
	)
	r.setSupervisor(sup, true)
	r.log.Info("dispatcher started", logx.Int("workers", r.opt.Workers), logx.Int("queue_cap", cap(r.jobs)))

	for i := 0; i < r.opt.Workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					r.runJob(idx, job)
				}
			}
		},
			WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			WithPublishFirstError(true),
			WithStopOnCleanExit(true),
		)
	}

	defer func() {
		r.setSupervisor(sup, false)
		close(r.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.setSupervisor(nil, false)
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in router job",
				logx.Int("worker", worker),
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	job()
}

// Route dispatches one update. The handler runs on the worker pool.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, route string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Route:   route,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
		),
	}
}

func (r *Router) denyMessage(ctx context.Context, req *Request) error {
	req.Logger.Debug("access denied", logx.String("route", req.Route))
	return req.Reply(ctx, DeniedText, nil)
}

func (r *Router) denyCallback(_ context.Context, req *Request) error {
	req.Toast = DeniedText
	return nil
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	name, args, isCmd := splitCommand(msg.Text)
	if !isCmd {
		r.routeText(ctx, up, chat)
		return
	}

	r.mu.RLock()
	cmd, known := r.commands[name]
	r.mu.RUnlock()

	req := r.newRequest(up, chat, msg.FromID, "/"+name)
	req.Args = args
	req.Text = msg.Text

	h := func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, unknownCommandText, nil)
	}
	var timeout time.Duration
	if known {
		h, timeout = cmd.Handle, cmd.Timeout
	}
	final := Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWAccess(r.IsAllowed, r.denyMessage),
		MWTimeout(timeout),
	)
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = r.adapter.SendText(ctx, chat, busyText, nil)
	}
}

func (r *Router) routeText(ctx context.Context, up kit.Update, chat kit.ChatTarget) {
	msg := up.Message
	r.mu.RLock()
	tr := r.text
	r.mu.RUnlock()
	if tr == nil || tr.Handle == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if tr.Wants != nil && !tr.Wants(msg.ChatID, msg.FromID) {
		return
	}

	req := r.newRequest(up, chat, msg.FromID, "text")
	req.Text = msg.Text
	final := Chain(tr.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWAccess(r.IsAllowed, nil),
		MWTimeout(tr.Timeout),
	)
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		r.log.Warn("text dropped: queue full", logx.Int64("chat_id", msg.ChatID))
	}
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	prefix, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	r.mu.RLock()
	route, found := r.callbacks[prefix][action]
	r.mu.RUnlock()
	if !found {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := r.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, "cb:"+prefix+":"+action)
	req.Payload = payload

	final := Chain(route.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWAccess(r.IsAllowed, r.denyCallback),
		MWTimeout(route.Timeout),
	)
	if !r.tryEnqueue(func() {
		_ = final(ctx, req)
		_ = r.adapter.AnswerCallback(ctx, cb.ID, req.Toast)
	}) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, busyText)
	}
}
