package dispatch

import (
	"time"

	"github.com/lorenzolrom/dvmconsole/pkg/crypto"
	"github.com/lorenzolrom/dvmconsole/pkg/history"
	"github.com/lorenzolrom/dvmconsole/pkg/logger"
	"github.com/lorenzolrom/dvmconsole/pkg/network"
	"github.com/lorenzolrom/dvmconsole/pkg/p25"
)

// ReceiveTimeout is how long a receiving channel waits for the next frame
// before the supervisor declares the call dead.
const ReceiveTimeout = 2000 * time.Millisecond

// isTerminator reports whether an event ends a call
func isTerminator(ev network.Event) bool {
	return ev.Function == network.FuncP25TDU || ev.Function == network.FuncDMRTerminator
}

// handleInbound runs one inbound event through the channel's call state
// machine. Cross-channel suppression has already happened in the Manager;
// everything here is local to this channel.
func (c *Channel) handleInbound(ev network.Event, m *Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// same stream announced by a different peer: stale duplicate from a
	// lagging site, drop without touching call state
	if c.state.IsReceiving && ev.StreamID == c.state.RxStreamID && ev.PeerID != c.state.PeerID {
		c.log.Debug("dropping stale duplicate",
			logger.Uint32("stream_id", ev.StreamID),
			logger.Uint32("peer_id", ev.PeerID))
		return
	}

	now := time.Now()
	st := c.slot(ev.Slot)

	if !c.state.IsReceiving {
		// a terminator, or a late tail frame of the last tracked stream:
		// structurally accepted, display state updated, never decoded
		if isTerminator(ev) || ev.StreamID == c.state.RxStreamID {
			st.FrameType = ev.FrameType
			c.state.LastFrameType = ev.Function
			return
		}
		c.callStart(ev, st, now, m)
	} else if ev.StreamID != c.state.RxStreamID {
		// a competing stream while a call is in progress is ignored
		// until the tracked call ends or times out
		c.log.Debug("ignoring frame for competing stream",
			logger.Uint32("stream_id", ev.StreamID),
			logger.Uint32("active_stream_id", c.state.RxStreamID))
		return
	}

	c.state.LastPacketTime = now

	if isTerminator(ev) {
		if c.state.LastFrameType != ev.Function {
			c.callEnd(st, now, m, history.EndReasonTerminated)
		}
		c.state.LastFrameType = ev.Function
		return
	}
	c.state.LastFrameType = ev.Function

	if c.Mode == ModeDMR {
		c.decodeDMR(ev, st)
	} else {
		c.decodeP25(ev, st)
	}
}

// callStart transitions the channel from idle to receiving
func (c *Channel) callStart(ev network.Event, st *SlotStatus, now time.Time, m *Manager) {
	st.resetCall()
	st.SrcID = ev.SrcID
	st.DstID = ev.DstID
	st.StreamID = ev.StreamID
	st.StartTime = now
	st.FrameType = ev.FrameType

	c.state.IsReceiving = true
	c.state.RxStreamID = ev.StreamID
	c.state.PeerID = ev.PeerID
	c.state.LastPacketTime = now
	c.state.LastErrs = 0
	c.state.P25FrameIndex = 0
	c.state.Embedded.Reset()

	// the MI starts at zero and unencrypted until header data says
	// otherwise
	c.state.MI = [p25.MILength]byte{}
	if c.state.AlgID == 0 {
		c.state.AlgID = crypto.AlgoUnencrypted
		c.state.KeyID = 0
	}
	_ = c.engine.Prepare(crypto.AlgoUnencrypted, 0, c.state.MI[:])

	c.log.Info("call start",
		logger.Uint32("src_id", ev.SrcID),
		logger.Uint32("dst_id", ev.DstID),
		logger.Uint32("stream_id", ev.StreamID),
		logger.Uint32("peer_id", ev.PeerID),
		logger.Int("slot", ev.Slot))

	encrypted := ev.Crypto.AlgID != 0 && ev.Crypto.AlgID != crypto.AlgoUnencrypted
	if m.store != nil {
		id, err := m.store.OpenCall(&history.CallRecord{
			Channel:     c.Name,
			Mode:        string(c.Mode),
			SrcID:       ev.SrcID,
			DstID:       ev.DstID,
			TalkgroupID: c.cfg.TalkgroupID,
			StreamID:    ev.StreamID,
			Timeslot:    ev.Slot,
			Encrypted:   encrypted,
			AlgID:       ev.Crypto.AlgID,
			KeyID:       ev.Crypto.KeyID,
			StartedAt:   now,
		})
		if err != nil {
			c.log.Error("call history open failed", logger.Error(err))
		} else {
			st.historyID = id
		}
	}
	if m.hub != nil {
		m.hub.CallStart(c.Name, ev.SrcID, ev.DstID, ev.StreamID, encrypted)
	}
}

// callEnd transitions the channel back to idle
func (c *Channel) callEnd(st *SlotStatus, now time.Time, m *Manager, reason string) {
	duration := now.Sub(st.StartTime)
	streamID := c.state.RxStreamID

	// RxStreamID is retained as the last-known stream so late tail
	// frames of this call do not restart it
	c.state.IsReceiving = false
	c.state.PeerID = 0
	c.state.LastErrs = 0

	c.log.Info("call end",
		logger.Uint32("src_id", st.SrcID),
		logger.Uint32("dst_id", st.DstID),
		logger.Uint32("stream_id", streamID),
		logger.Duration("duration", duration),
		logger.String("reason", reason))

	if m.store != nil && st.historyID != 0 {
		if err := m.store.CloseCall(st.historyID, now, reason); err != nil {
			c.log.Error("call history close failed", logger.Error(err))
		}
		st.historyID = 0
	}
	if m.hub != nil {
		if reason == history.EndReasonTimeout {
			m.hub.CallTimeout(c.Name, streamID, duration)
		} else {
			m.hub.CallEnd(c.Name, streamID, duration)
		}
	}
}

// checkTimeout ends the tracked call if no frame has arrived within
// ReceiveTimeout. Called by the Manager's supervisor tick; fires at most
// once per call because callEnd clears IsReceiving.
func (c *Channel) checkTimeout(now time.Time, m *Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsReceiving {
		return
	}
	if now.Sub(c.state.LastPacketTime) <= ReceiveTimeout {
		return
	}

	for _, st := range c.slots {
		if st.StreamID == c.state.RxStreamID {
			c.callEnd(st, now, m, history.EndReasonTimeout)
			return
		}
	}
	// no slot ever tracked the stream; clear the flags anyway
	c.state.IsReceiving = false
	c.state.PeerID = 0
}
