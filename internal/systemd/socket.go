package systemd

import (
	"fmt"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// ListenerName is the FileDescriptorName= of the HTTP socket in workdigest.socket.
const ListenerName = "http"

// Listeners holds the systemd-activated listeners
type Listeners struct {
	HTTP      net.Listener
	Activated bool
}

// GetListeners retrieves systemd socket-activated file descriptors
// Returns nil listeners if not running under socket activation
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{
		Activated: false,
	}

	// Check if systemd socket activation is available
	fds := activation.Files(false) // false = don't unset env vars
	if len(fds) == 0 {
		return listeners, nil
	}

	listeners.Activated = true

	// Try to get listeners by name (requires systemd 227+)
	listenersMap, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	if lns, ok := listenersMap[ListenerName]; ok && len(lns) > 0 {
		listeners.HTTP = lns[0]
		return listeners, nil
	}

	// A unit without FileDescriptorName= passes a single unnamed socket
	for _, lns := range listenersMap {
		if len(lns) > 0 && lns[0] != nil {
			listeners.HTTP = lns[0]
			break
		}
	}

	return listeners, nil
}

// NotifyReady sends READY=1 notification to systemd
func NotifyReady() error {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping sends STOPPING=1 notification to systemd
func NotifyStopping() error {
	return notify(daemon.SdNotifyStopping)
}

// NotifyWatchdog sends WATCHDOG=1 notification to systemd
// This should be called periodically to prevent watchdog timeout
func NotifyWatchdog() error {
	return notify(daemon.SdNotifyWatchdog)
}

// notify is a no-op outside systemd (NOTIFY_SOCKET unset).
func notify(state string) error {
	if _, err := daemon.SdNotify(false, state); err != nil {
		return fmt.Errorf("failed to send sd_notify %s: %w", state, err)
	}
	return nil
}

// WatchdogInterval returns how often NotifyWatchdog should be called, or 0
// when the service manager has no watchdog configured.
func WatchdogInterval() (time.Duration, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0, err
	}
	return interval / 2, nil
}
