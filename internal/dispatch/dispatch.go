// Package dispatch sends the scheduled poll and its reminder to the group.
//
// Failures are logged and reported on the bus. Nothing is retried; a missed
// week stays missed.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	kit "pollbot/internal/transport"
	logx "pollbot/pkg/logx"
)

const DefaultReminderText = "🔔 Голосование через 5 минут!"

// Sender is the part of the transport adapter dispatch needs.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	SendPoll(ctx context.Context, to kit.ChatTarget, p kit.Poll) (kit.MessageRef, error)
}

type Config struct {
	Target       kit.ChatTarget
	ReminderText string
}

type Dispatcher struct {
	mu  sync.RWMutex
	cfg Config

	sender Sender
	log    logx.Logger
	bus    eventbus.Bus
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{sender: sender, log: log, bus: bus}
	d.Apply(cfg)
	return d
}

// Apply swaps the target chat and reminder text.
func (d *Dispatcher) Apply(cfg Config) {
	if strings.TrimSpace(cfg.ReminderText) == "" {
		cfg.ReminderText = DefaultReminderText
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// SendPoll posts the non-anonymous poll of rec. A record with fewer than two
// options is skipped with a warning.
func (d *Dispatcher) SendPoll(ctx context.Context, rec schedule.Record) error {
	cfg := d.config()
	if len(rec.Options) < schedule.MinOptions {
		d.log.Warn("poll skipped: not enough options",
			logx.String("id", rec.ID),
			logx.Int("options", len(rec.Options)),
		)
		return nil
	}
	p := kit.Poll{
		Question:  rec.Question(),
		Options:   append([]string(nil), rec.Options...),
		Anonymous: false,
	}
	ref, err := d.sender.SendPoll(ctx, cfg.Target, p)
	if err != nil {
		d.fail("poll", rec.ID, err)
		return err
	}
	d.log.Info("poll sent",
		logx.String("id", rec.ID),
		logx.String("question", p.Question),
		logx.Int("message_id", ref.MessageID),
	)
	eventbus.Publish(d.bus, eventbus.PollSent, eventbus.DispatchInfo{Action: "poll", RecordID: rec.ID})
	return nil
}

// SendReminder posts the fixed reminder text.
func (d *Dispatcher) SendReminder(ctx context.Context, rec schedule.Record) error {
	cfg := d.config()
	_, err := d.sender.SendText(ctx, cfg.Target, cfg.ReminderText, nil)
	if err != nil {
		d.fail("reminder", rec.ID, err)
		return err
	}
	d.log.Info("reminder sent", logx.String("id", rec.ID))
	eventbus.Publish(d.bus, eventbus.ReminderSent, eventbus.DispatchInfo{Action: "reminder", RecordID: rec.ID})
	return nil
}

func (d *Dispatcher) fail(action, id string, err error) {
	d.log.Error(action+" send failed", logx.String("id", id), logx.Err(err))
	eventbus.Publish(d.bus, eventbus.DispatchFailed, eventbus.DispatchInfo{Action: action, RecordID: id, Err: err.Error()})
}
