package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/lorenzolrom/dvmconsole/pkg/events"
	"github.com/lorenzolrom/dvmconsole/pkg/history"
	"github.com/lorenzolrom/dvmconsole/pkg/logger"
	"github.com/lorenzolrom/dvmconsole/pkg/network"
)

// SupervisorInterval is the cadence of the call timeout sweep
const SupervisorInterval = time.Second

// Manager routes inbound events to channels, enforces cross-channel
// duplicate and loopback suppression and runs the call timeout supervisor.
type Manager struct {
	log   *logger.Logger
	hub   *events.Hub
	store *history.Store

	mu       sync.RWMutex
	channels []*Channel
}

// NewManager creates a manager. hub and store may be nil when the event
// surface or call history is disabled.
func NewManager(log *logger.Logger, hub *events.Hub, store *history.Store) *Manager {
	return &Manager{
		log:   log.WithComponent("dispatch"),
		hub:   hub,
		store: store,
	}
}

// Add registers a channel with the manager
func (m *Manager) Add(ch *Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch.hub = m.hub
	m.channels = append(m.channels, ch)
}

// Channels returns the registered channels
func (m *Manager) Channels() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Channel, len(m.channels))
	copy(out, m.channels)
	return out
}

// modeFor maps a wire function ID to the radio standard it belongs to
func modeFor(function byte) Mode {
	switch function {
	case network.FuncDMRVoice, network.FuncDMRVoiceHeader,
		network.FuncDMRTerminator, network.FuncDMRPIHeader:
		return ModeDMR
	default:
		return ModeP25
	}
}

// matches reports whether an event belongs on a channel
func (c *Channel) matches(ev network.Event) bool {
	if modeFor(ev.Function) != c.Mode {
		return false
	}
	if ev.DstID != c.cfg.TalkgroupID {
		return false
	}
	if c.Mode == ModeDMR && ev.Slot != c.cfg.Timeslot {
		return false
	}
	return true
}

// HandleEvent routes one inbound event. An event whose stream ID matches
// any channel's outbound stream is our own traffic reflected back and is
// dropped everywhere; a stream already being received on one channel is
// not started on another.
func (m *Manager) HandleEvent(ev network.Event) {
	channels := m.Channels()

	for _, ch := range channels {
		if ch.txStreamID() == ev.StreamID {
			m.log.Debug("dropping loopback frame",
				logger.Uint32("stream_id", ev.StreamID),
				logger.String("channel", ch.Name))
			return
		}
	}

	for _, ch := range channels {
		if !ch.matches(ev) {
			continue
		}
		if m.receivedElsewhere(ch, ev.StreamID) {
			m.log.Debug("dropping cross-channel duplicate",
				logger.Uint32("stream_id", ev.StreamID),
				logger.String("channel", ch.Name))
			continue
		}
		ch.handleInbound(ev, m)
	}
}

// receivedElsewhere reports whether another channel is already receiving
// the stream
func (m *Manager) receivedElsewhere(ch *Channel, streamID uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, other := range m.channels {
		if other == ch {
			continue
		}
		if other.rxStreamID() == streamID {
			return true
		}
	}
	return false
}

// Run consumes inbound events until the channel closes or the context is
// cancelled
func (m *Manager) Run(ctx context.Context, inbound <-chan network.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-inbound:
			if !ok {
				return
			}
			m.HandleEvent(ev)
		}
	}
}

// RunSupervisor sweeps all channels once per second and times out calls
// that have gone quiet
func (m *Manager) RunSupervisor(ctx context.Context) {
	ticker := time.NewTicker(SupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, ch := range m.Channels() {
				ch.checkTimeout(now, m)
			}
		}
	}
}
