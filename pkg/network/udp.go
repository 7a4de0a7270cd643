package network

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/lorenzolrom/dvmconsole/pkg/logger"
)

// UDPPeer is the UDP transport to one network system
type UDPPeer struct {
	log    *logger.Logger
	conn   *net.UDPConn
	peerID uint32

	events chan Event

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewUDPPeer dials the system at address and identifies as peerID
func NewUDPPeer(address string, peerID uint32, log *logger.Logger) (*UDPPeer, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("network: resolve %s: %w", address, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("network: dial %s: %w", address, err)
	}

	return &UDPPeer{
		log:    log.WithComponent("network"),
		conn:   conn,
		peerID: peerID,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the receive loop. It returns once the loop is running;
// cancel the context or call Close to stop it.
func (p *UDPPeer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("network: peer already started")
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.readLoop(ctx)
	return nil
}

func (p *UDPPeer) readLoop(ctx context.Context) {
	defer close(p.done)
	defer close(p.events)

	go func() {
		<-ctx.Done()
		p.conn.Close() // unblocks the pending read
	}()

	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("read failed", logger.Error(err))
			return
		}

		m, err := ParseMessage(buf[:n])
		if err != nil {
			// malformed datagrams are dropped without state change
			p.log.Debug("dropping malformed message", logger.Error(err))
			continue
		}

		ev := Event{
			Data:       m.Payload,
			PeerID:     m.PeerID,
			SrcID:      m.Call.SrcID,
			DstID:      m.Call.DstID,
			StreamID:   m.StreamID,
			Function:   m.Function,
			FrameType:  m.FrameType,
			FrameIndex: m.FrameIndex,
			Sequence:   m.Sequence,
			Slot:       m.Timeslot,
			Crypto:     m.Crypto,
		}

		select {
		case p.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// SendFramedMessage stamps our peer ID and transmits the message
func (p *UDPPeer) SendFramedMessage(m *Message) error {
	m.PeerID = p.peerID
	_, err := p.conn.Write(m.Encode())
	if err != nil {
		return fmt.Errorf("network: send: %w", err)
	}
	return nil
}

// Events returns the inbound event channel. It is closed when the peer
// stops.
func (p *UDPPeer) Events() <-chan Event {
	return p.events
}

// Close stops the receive loop and releases the socket
func (p *UDPPeer) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	started := p.started
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := p.conn.Close()
	if started {
		<-p.done
	}
	return err
}
