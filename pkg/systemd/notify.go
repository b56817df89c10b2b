// Package systemd talks to the service manager over the sd_notify protocol.
// Outside systemd (no NOTIFY_SOCKET) every call is a successful no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness, status and watchdog notifications.
// The zero value is disabled.
type Notifier struct {
	enabled bool
}

func NewNotifier(enabled bool) *Notifier { return &Notifier{enabled: enabled} }

func (n *Notifier) send(state string) (bool, error) {
	if n == nil || !n.enabled {
		return false, nil
	}
	return daemon.SdNotify(false, state)
}

// Ready reports READY=1 with a human-readable status line. sent is false
// when not running under systemd.
func (n *Notifier) Ready(status string) (sent bool, err error) {
	state := daemon.SdNotifyReady
	if status != "" {
		state += "\nSTATUS=" + status
	}
	return n.send(state)
}

// Status updates the STATUS= line shown by systemctl status.
func (n *Notifier) Status(status string) (bool, error) {
	return n.send("STATUS=" + status)
}

func (n *Notifier) Stopping() (bool, error) { return n.send(daemon.SdNotifyStopping) }

func (n *Notifier) Watchdog() (bool, error) { return n.send(daemon.SdNotifyWatchdog) }

// WatchdogInterval returns the systemd watchdog timeout (WATCHDOG_USEC), or 0
// if the watchdog is disabled for this process.
func (n *Notifier) WatchdogInterval() (time.Duration, error) {
	if n == nil || !n.enabled {
		return 0, nil
	}
	return daemon.SdWatchdogEnabled(false)
}

// RunWatchdog pings WATCHDOG=1 every interval until ctx ends. Send errors
// are passed to onErr and do not stop the loop.
func (n *Notifier) RunWatchdog(ctx context.Context, interval time.Duration, onErr func(error)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := n.Watchdog(); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
