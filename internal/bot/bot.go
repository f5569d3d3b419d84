// Package bot is the command surface: /start, /set_days, /list_days,
// /remove_days and /status, plus the dialog callback and text routes.
package bot

import (
	"context"
	"time"

	"pollbot/internal/dialog"
	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	"pollbot/internal/task/scheduler"
	kit "pollbot/internal/transport"
	"pollbot/internal/transport/telegram/router"
	logx "pollbot/pkg/logx"
)

// Schedules is the part of schedule.Store the commands use.
type Schedules interface {
	Load(ctx context.Context) []schedule.Record
	Get(ctx context.Context, id string) (schedule.Record, bool)
	ReplaceAll(ctx context.Context, id string, rec *schedule.Record) error
}

// Jobs reports the registered scheduler jobs.
type Jobs interface {
	Jobs(now time.Time) []scheduler.JobInfo
	Location() *time.Location
}

// Dialogs runs the /set_days conversation.
type Dialogs interface {
	Start(ctx context.Context, chat kit.ChatTarget, userID int64) error
	HandleCallback(ctx context.Context, chat kit.ChatTarget, userID int64, token string) (string, error)
	HandleText(ctx context.Context, chat kit.ChatTarget, userID int64, text string) (bool, error)
	WantsText(chatID, userID int64) bool
}

type Deps struct {
	Schedules Schedules
	Jobs      Jobs
	Dialogs   Dialogs
	Log       logx.Logger
	Bus       eventbus.Bus

	// Now defaults to time.Now.
	Now func() time.Time
}

// Bot binds the command handlers to their dependencies.
type Bot struct {
	store   Schedules
	jobs    Jobs
	dialogs Dialogs
	log     logx.Logger
	bus     eventbus.Bus
	now     func() time.Time

	// commands is set by Register; /start lists it.
	commands func() []router.Command
}

func New(d Deps) *Bot {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Bot{
		store:   d.Schedules,
		jobs:    d.Jobs,
		dialogs: d.Dialogs,
		log:     d.Log,
		bus:     d.Bus,
		now:     d.Now,
	}
}

// Register installs every route on r.
func (b *Bot) Register(r *router.Router) {
	b.commands = r.Commands
	r.SetRegistry(b.Commands(), b.Callbacks(), b.TextRoute())
}

func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Aliases:     []string{"help"},
			Description: "приветствие и список команд",
			Handle:      b.cmdStart,
		},
		{
			Name:        "set_days",
			Description: "настроить день и время опроса",
			Handle:      b.cmdSetDays,
		},
		{
			Name:        "list_days",
			Description: "показать расписания",
			Handle:      b.cmdListDays,
		},
		{
			Name:        "remove_days",
			Description: "удалить расписание",
			Usage:       "/remove_days [id]",
			Handle:      b.cmdRemoveDays,
		},
		{
			Name:        "status",
			Description: "задания планировщика",
			Handle:      b.cmdStatus,
		},
	}
}

const (
	removePrefix = "sched"
	removeAction = "rm"
)

func (b *Bot) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Prefix: dialog.CallbackPrefix, Action: dialog.CallbackAction, Handle: b.cbDialog},
		{Prefix: removePrefix, Action: removeAction, Handle: b.cbRemove},
	}
}

func (b *Bot) TextRoute() *router.TextRoute {
	return &router.TextRoute{
		Wants:  b.dialogs.WantsText,
		Handle: b.onText,
	}
}
