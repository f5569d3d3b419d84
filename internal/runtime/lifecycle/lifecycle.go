// Package lifecycle holds shutdown reasons and the systemd readiness
// protocol for the bot process.
package lifecycle

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "pollbot/pkg/logx"
)

// StopReason is used for structured shutdown tracing.
type StopReason string

const (
	StopUnknown      StopReason = "unknown"
	StopSIGINT       StopReason = "sigint"
	StopSIGTERM      StopReason = "sigterm"
	StopFatalError   StopReason = "fatal_error"
	StopAppStop      StopReason = "app_stop"
	StopConfigReload StopReason = "config_reload"
)

// ReasonForSignal maps the signal that ended the process to a StopReason.
func ReasonForSignal(sig os.Signal) StopReason {
	switch sig {
	case os.Interrupt:
		return StopSIGINT
	case syscall.SIGTERM:
		return StopSIGTERM
	case nil:
		return StopAppStop
	default:
		return StopUnknown
	}
}

// Notifier speaks sd_notify. Outside systemd (no NOTIFY_SOCKET) every call is
// a no-op.
type Notifier struct {
	log      logx.Logger
	notify   func(state string) (bool, error)
	watchdog func() (time.Duration, error)
}

func NewNotifier(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		log:      log,
		notify:   func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		watchdog: func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", logx.String("state", state))
	}
}

func (n *Notifier) Ready()     { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }
func (n *Notifier) Stopping()  { n.send(daemon.SdNotifyStopping) }

// Watchdog pings systemd at half the configured WatchdogSec until ctx is
// done. It returns immediately when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context) {
	every, err := n.watchdog()
	if err != nil {
		n.log.Warn("sd watchdog check failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
