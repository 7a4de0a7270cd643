package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/lorenzolrom/dvmconsole/pkg/audio"
	"github.com/lorenzolrom/dvmconsole/pkg/config"
	"github.com/lorenzolrom/dvmconsole/pkg/crypto"
	"github.com/lorenzolrom/dvmconsole/pkg/dmr"
	"github.com/lorenzolrom/dvmconsole/pkg/events"
	"github.com/lorenzolrom/dvmconsole/pkg/logger"
	"github.com/lorenzolrom/dvmconsole/pkg/network"
	"github.com/lorenzolrom/dvmconsole/pkg/p25"
	"github.com/lorenzolrom/dvmconsole/pkg/vocoder"
)

// AudioSink consumes decoded PCM for per-talkgroup playback mixing
type AudioSink interface {
	PushDecodedAudio(talkgroupID uint32, pcm []byte)
}

// Channel is one monitored channel. It owns its ChannelState, vocoder
// backend and crypto engine; nothing here is shared across channels.
type Channel struct {
	Name string
	Mode Mode

	cfg    config.SystemConfig
	log    *logger.Logger
	peer   network.Peer
	codec  vocoder.Codec
	engine *crypto.Engine
	sink   AudioSink
	hub    *events.Hub // set when the channel joins a Manager

	mu    sync.Mutex
	state ChannelState
	slots map[int]*SlotStatus
}

// NewChannel creates a channel bound to one system
func NewChannel(name string, cfg config.SystemConfig, peer network.Peer, codec vocoder.Codec, engine *crypto.Engine, sink AudioSink, log *logger.Logger) *Channel {
	mode := ModeP25
	if strings.EqualFold(cfg.Mode, "DMR") {
		mode = ModeDMR
	}

	ch := &Channel{
		Name:   name,
		Mode:   mode,
		cfg:    cfg,
		log:    log.WithComponent("channel." + name),
		peer:   peer,
		codec:  codec,
		engine: engine,
		sink:   sink,
		slots:  make(map[int]*SlotStatus),
	}
	ch.state.Embedded = dmr.NewEmbeddedData(1)
	ch.state.AlgID = algIDFor(cfg.Algorithm)
	ch.state.KeyID = cfg.KeyID
	return ch
}

func algIDFor(name string) uint8 {
	switch strings.ToLower(name) {
	case "arc4":
		return crypto.AlgoARC4
	case "aes256":
		return crypto.AlgoAES256
	default:
		return crypto.AlgoUnencrypted
	}
}

// slot returns the SlotStatus for a timeslot, creating it lazily
func (c *Channel) slot(ts int) *SlotStatus {
	if c.Mode != ModeDMR {
		ts = 0
	}
	st, ok := c.slots[ts]
	if !ok {
		st = &SlotStatus{}
		c.slots[ts] = st
	}
	return st
}

// rxStreamID returns the current receive stream ID
func (c *Channel) rxStreamID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.RxStreamID
}

// txStreamID returns the current transmit stream ID
func (c *Channel) txStreamID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TxStreamID
}

// IsReceiving reports whether the channel is tracking an inbound call
func (c *Channel) IsReceiving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsReceiving
}

// State returns a snapshot copy of the channel state
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartTransmit opens an outbound call: fresh stream ID, sequence 0 and,
// for an encrypted channel, a fresh random MI. For DMR the Voice LC Header
// goes out before any voice frame.
func (c *Channel) StartTransmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTransmitLocked()
}

func (c *Channel) startTransmitLocked() error {
	if c.state.TxStreamID != 0 {
		return nil
	}

	c.state.TxStreamID = NewStreamID()
	c.state.PktSeq = 0
	c.state.P25SeqNo = 0
	c.state.DMRSeqNo = 0
	c.state.P25FrameIndex = 0
	c.state.DMRFrameIndex = 0
	c.state.AMBECount = 0
	c.state.needHeader = true

	if c.state.AlgID != crypto.AlgoUnencrypted && c.state.KeyID != 0 {
		var mi [p25.MILength]byte
		if _, err := rand.Read(mi[:8]); err != nil {
			return fmt.Errorf("dispatch: mi generation: %w", err)
		}
		c.state.MI = mi
		if err := c.engine.Prepare(c.state.AlgID, c.state.KeyID, mi[:]); err != nil {
			// transmission proceeds rather than stalling on key material
			c.log.Warn("transmitting without keystream",
				logger.Uint8("alg_id", c.state.AlgID),
				logger.Uint16("key_id", c.state.KeyID),
				logger.Error(err))
		}
	} else {
		c.state.MI = [p25.MILength]byte{}
		_ = c.engine.Prepare(crypto.AlgoUnencrypted, 0, c.state.MI[:])
	}

	c.log.Info("transmit start",
		logger.Uint32("stream_id", c.state.TxStreamID),
		logger.Uint32("dst_id", c.cfg.TalkgroupID))

	if c.Mode == ModeDMR {
		body := dmr.BuildVoiceLCHeader(c.cfg.PeerID, c.cfg.TalkgroupID, dmr.FLCOGroup)
		c.state.Embedded.SetLC(dmr.FullLC(c.cfg.PeerID, c.cfg.TalkgroupID, dmr.FLCOGroup))
		return c.send(network.FuncDMRVoiceHeader, dmr.FrameTypeVoiceHeader, 0, body)
	}
	return nil
}

// EndTransmit closes the outbound call with a terminator and resets the
// channel's outbound sequencing. Safe to call on an idle channel.
func (c *Channel) EndTransmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endTransmitLocked()
}

func (c *Channel) endTransmitLocked() error {
	if c.state.TxStreamID == 0 {
		return nil
	}

	var err error
	if c.Mode == ModeDMR {
		body := dmr.BuildTerminatorWithLC(c.cfg.PeerID, c.cfg.TalkgroupID, dmr.FLCOGroup)
		err = c.send(network.FuncDMRTerminator, dmr.FrameTypeVoiceTerminator, 0, body)
	} else {
		err = c.send(network.FuncP25TDU, 0, 0, nil)
	}

	c.log.Info("transmit end", logger.Uint32("stream_id", c.state.TxStreamID))
	c.resetSequencing()
	return err
}

// EncodeAudio encodes one 160-sample microphone or player frame and feeds
// the outbound framer. A dominant single tone substitutes the codeword
// source; framing is unchanged.
func (c *Channel) EncodeAudio(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.TxStreamID == 0 {
		if err := c.startTransmitLocked(); err != nil {
			return err
		}
	}

	var cw []byte
	if tone, ok := vocoder.DetectTone(pcm); ok {
		cw = vocoder.ToneCodeword(c.codec.Mode(), tone)
	} else {
		var err error
		cw, err = c.codec.Encode(pcm)
		if err != nil {
			return err
		}
	}

	if c.Mode == ModeDMR {
		return c.encodeDMR(cw)
	}
	return c.encodeP25(cw)
}

// PlayPaced transmits a pre-rendered tone or page, one frame per 100ms
// aligned to the wall clock, and terminates the call when done or when the
// context is cancelled.
func (c *Channel) PlayPaced(ctx context.Context, pcm []int16) error {
	err := audio.PlayPaced(ctx, pcm, audio.FrameInterval, c.EncodeAudio)
	if endErr := c.EndTransmit(); err == nil {
		err = endErr
	}
	return err
}

// encodeP25 accumulates one IMBE codeword into the current superframe
// half, emitting LDU1 at index 8 and LDU2 at index 17
func (c *Channel) encodeP25(cw []byte) error {
	idx := c.state.P25FrameIndex
	local := idx % p25.RecordCount

	role := crypto.RoleLDU1
	buf := c.state.NetLDU1[:]
	if idx >= p25.RecordCount {
		role = crypto.RoleLDU2
		buf = c.state.NetLDU2[:]
	}

	if idx == 0 {
		p25.ResetBuffer(c.state.NetLDU1[:])
	}
	if idx == p25.RecordCount {
		p25.ResetBuffer(c.state.NetLDU2[:])
	}

	c.engine.Process(cw, role, local)
	if err := p25.PlaceCodeword(buf, local, cw); err != nil {
		return err
	}

	c.state.P25SeqNo++

	var err error
	switch idx {
	case p25.RecordCount - 1:
		err = c.emitLDU1()
	case 2*p25.RecordCount - 1:
		err = c.emitLDU2()
	}

	c.state.P25FrameIndex = (idx + 1) % (2 * p25.RecordCount)
	return err
}

func (c *Channel) emitLDU1() error {
	buf := c.state.NetLDU1[:]
	p25.WriteMarkers(buf, p25.LDU1MarkerBase)
	p25.SetLinkControl(buf, p25.LCOGroupVoice, c.cfg.TalkgroupID, c.cfg.PeerID)

	frameType := byte(p25.FrameTypeDataUnit)
	if c.state.needHeader {
		frameType = p25.FrameTypeHDUValid
		c.state.needHeader = false
	}
	p25.SetHeaderData(buf, frameType, c.state.AlgID, c.state.KeyID, c.state.MI[:])

	return c.send(network.FuncP25LDU1, frameType, 0, buf)
}

func (c *Channel) emitLDU2() error {
	// the keystream for this half is spent; advance the MI so the LDU2
	// enc sync announces the next superframe's seed
	if err := c.engine.Cycle(); err != nil && err != crypto.ErrNoKey {
		c.log.Warn("mi cycle failed", logger.Error(err))
	}
	c.state.MI = c.engine.MI()

	buf := c.state.NetLDU2[:]
	p25.WriteMarkers(buf, p25.LDU2MarkerBase)
	p25.SetEncSync(buf, c.state.AlgID, c.state.KeyID, c.state.MI[:])

	return c.send(network.FuncP25LDU2, 0, 0, buf)
}

// encodeDMR accumulates AMBE codewords three at a time into voice bursts
func (c *Channel) encodeDMR(cw []byte) error {
	copy(c.state.AMBEBuffer[c.state.AMBECount*dmr.AMBECodewordLength:], cw)
	c.state.AMBECount++
	c.state.DMRSeqNo++

	if c.state.AMBECount < dmr.FrameCodewords {
		return nil
	}
	c.state.AMBECount = 0

	body, err := dmr.PackVoicePayload(c.state.AMBEBuffer[:])
	if err != nil {
		return err
	}

	fi := c.state.DMRFrameIndex
	switch {
	case fi == 0:
		dmr.InsertVoiceSync(body, dmr.MSSourcedAudioSync)
	case fi <= dmr.EmbeddedFragments:
		dmr.InsertEmbedded(body, c.state.Embedded.Fragment(fi-1))
	}

	c.state.DMRFrameIndex = (fi + 1) % dmr.FramesPerGroup
	return c.send(network.FuncDMRVoice, dmr.FrameTypeVoice, byte(fi), body)
}

// send stamps sequencing and the crypto parameter snapshot and hands the
// message to the transport peer
func (c *Channel) send(fn byte, frameType, frameIndex byte, payload []byte) error {
	// the emit helpers pass slices of channel state that the next
	// superframe overwrites; the peer owns what it is handed
	payload = append([]byte(nil), payload...)
	m := &network.Message{
		Function: fn,
		Sequence: c.nextSeq(),
		StreamID: c.state.TxStreamID,
		Call: network.RemoteCallData{
			SrcID:    c.cfg.PeerID,
			DstID:    c.cfg.TalkgroupID,
			LCOpcode: p25.LCOGroupVoice,
		},
		Timeslot:   c.cfg.Timeslot,
		FrameType:  frameType,
		FrameIndex: frameIndex,
		Crypto: network.CryptoParams{
			AlgID: c.state.AlgID,
			KeyID: c.state.KeyID,
			MI:    c.state.MI,
		},
		Payload: payload,
	}
	return c.peer.SendFramedMessage(m)
}

// decodeP25 handles one inbound P25 LDU while the channel is receiving.
// Structural failures drop the frame silently; vocoder error counts feed
// the MI re-sync decision.
func (c *Channel) decodeP25(ev network.Event, st *SlotStatus) {
	switch ev.Function {
	case network.FuncP25LDU1:
		if len(ev.Data) != p25.LDUBufferLength {
			return
		}
		copy(c.state.NetLDU1[:], ev.Data)

		ldu, err := p25.ParseLDU1(c.state.NetLDU1[:])
		if err != nil {
			c.log.Debug("dropping malformed LDU1", logger.Error(err))
			return
		}

		st.SrcID = ldu.SrcID
		st.DstID = ldu.DstID
		st.FrameType = ldu.FrameType

		if ldu.FrameType == p25.FrameTypeHDUValid {
			// the only point a fresh MI is learned from the network
			c.state.AlgID = ldu.AlgID
			c.state.KeyID = ldu.KeyID
			c.state.MI = ldu.MI
			c.prepareEngine()
		}

		errs := 0
		for n := 0; n < p25.RecordCount; n++ {
			cw := p25.ExtractCodeword(c.state.NetLDU1[:], n)
			c.engine.Process(cw, crypto.RoleLDU1, n)
			pcm, e, derr := c.codec.Decode(cw)
			errs += e
			if derr != nil {
				continue
			}
			c.pushAudio(pcm)
		}
		c.state.LastErrs = errs

	case network.FuncP25LDU2:
		if len(ev.Data) != p25.LDUBufferLength {
			return
		}
		copy(c.state.NetLDU2[:], ev.Data)

		ldu, err := p25.ParseLDU2(c.state.NetLDU2[:])
		if err != nil {
			c.log.Debug("dropping malformed LDU2", logger.Error(err))
			return
		}

		// the trust decision deliberately uses the error counter of the
		// previous decode pass; read it before this pass overwrites it
		trustNetworkMI := c.state.LastErrs == 0

		errs := 0
		for n := 0; n < p25.RecordCount; n++ {
			cw := p25.ExtractCodeword(c.state.NetLDU2[:], n)
			c.engine.Process(cw, crypto.RoleLDU2, n)
			pcm, e, derr := c.codec.Decode(cw)
			errs += e
			if derr != nil {
				continue
			}
			c.pushAudio(pcm)
		}
		c.state.LastErrs = errs

		if trustNetworkMI {
			c.state.AlgID = ldu.AlgID
			c.state.KeyID = ldu.KeyID
			c.state.MI = ldu.MI
			c.prepareEngine()
		} else {
			// assume a network sync slip and keep the locally cycled MI
			if err := c.engine.Cycle(); err != nil && err != crypto.ErrNoKey {
				c.log.Warn("mi cycle failed", logger.Error(err))
			}
			c.state.MI = c.engine.MI()
		}
	}
}

// decodeDMR handles one inbound DMR burst while the channel is receiving
func (c *Channel) decodeDMR(ev network.Event, st *SlotStatus) {
	switch ev.Function {
	case network.FuncDMRVoiceHeader:
		if src, dst, _, ok := dmr.ParseFullLC(ev.Data); ok {
			st.SrcID = src
			st.DstID = dst
			st.LC = ev.Data[:9:9]
		}
		c.state.Embedded.Reset()

	case network.FuncDMRPIHeader:
		if algID, keyID, mi, ok := dmr.ParsePIHeader(ev.Data); ok {
			st.PrivacyAlgID = algID
			st.PrivacyKeyID = keyID
			st.PrivacyMI = mi
		}

	case network.FuncDMRVoice:
		if len(ev.Data) != dmr.FrameBodyLength {
			return
		}

		// embedded LC fragments ride the four bursts after the sync burst
		if fi := int(ev.FrameIndex); fi >= 1 && fi <= dmr.EmbeddedFragments {
			if done := c.state.Embedded.AddFragment(dmr.SyncRegion(ev.Data)); done {
				if src, dst, _, ok := dmr.ParseFullLC(c.state.Embedded.LC()); ok {
					st.SrcID = src
					st.DstID = dst
					st.LC = c.state.Embedded.LC()
				}
			}
		}

		ambe, err := dmr.UnpackVoicePayload(ev.Data)
		if err != nil {
			return
		}

		errs := 0
		for n := 0; n < dmr.FrameCodewords; n++ {
			cw := ambe[n*dmr.AMBECodewordLength : (n+1)*dmr.AMBECodewordLength]
			pcm, e, derr := c.codec.Decode(cw)
			errs += e
			if derr != nil {
				continue
			}
			c.pushAudio(pcm)
		}
		c.state.LastErrs = errs
	}
}

// prepareEngine re-seeds the crypto engine from the channel's current
// parameters; a missing key is surfaced but never fatal
func (c *Channel) prepareEngine() {
	err := c.engine.Prepare(c.state.AlgID, c.state.KeyID, c.state.MI[:])
	if err == crypto.ErrNoKey {
		c.log.Warn("no key loaded, audio will be unintelligible",
			logger.Uint8("alg_id", c.state.AlgID),
			logger.Uint16("key_id", c.state.KeyID))
		if c.hub != nil {
			c.hub.NoKey(c.Name, c.state.AlgID, c.state.KeyID)
		}
	} else if err != nil {
		c.log.Warn("keystream prepare failed", logger.Error(err))
	}
}

func (c *Channel) pushAudio(pcm []int16) {
	if c.sink == nil {
		return
	}
	c.sink.PushDecodedAudio(c.cfg.TalkgroupID, audio.SamplesToBytes(pcm))
}
