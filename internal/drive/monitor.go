// Package drive watches udev netlink events for optical media insertion so
// watch mode can start a rip the moment a disc lands in the tray.
package drive

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"carat/internal/logging"
)

// InsertHandler is invoked once per detected disc insertion with the device
// node path (e.g. /dev/sr0).
type InsertHandler func(ctx context.Context, device string)

// Monitor listens for disc-insertion uevents on a configured device.
type Monitor struct {
	device  string
	handler InsertHandler
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor for the given device node. An empty device
// yields nil; callers treat a nil monitor as watch mode unavailable.
func NewMonitor(device string, handler InsertHandler, logger *slog.Logger) *Monitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Monitor{
		device:  device,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "drive-monitor"),
	}
}

// Start connects to the udev netlink socket and begins dispatching insert
// events. Connection failure is non-fatal; manual runs still work.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed; automatic disc detection unavailable",
			logging.Error(err))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, quit)

	m.logger.Info("disc monitor started", logging.String("device", m.device))
	return nil
}

// Stop shuts the monitor down. Safe to call repeatedly.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, discInsertMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Error(err))
		}
	}
}

// discInsertMatcher matches block-device media events:
// SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1, ACTION=change|add.
func discInsertMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" || device != m.device {
		return
	}
	m.logger.Info("disc media detected",
		logging.String("device", device),
		logging.String("action", string(uevent.Action)))
	if m.handler != nil {
		m.handler(ctx, device)
	}
}

// deviceName resolves the device node from a uevent, falling back to the
// final DEVPATH component.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
