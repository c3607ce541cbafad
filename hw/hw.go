// Package hw is the per-node link state machine: ARQ with
// exponential-style backoff, ACK generation and matching, and the
// receive "blocking" discipline that distinguishes store-and-forward
// from cut-through switching. Structured in the teacher's
// explicit-stage-machine idiom (reb/status.go: a small state enum plus
// a single update method driving legal transitions only).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package hw

import (
	"math/rand"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
)

// State is the link FSM's current stage.
type State uint8

const (
	Idle State = iota
	Sending
	Waiting
	Receiving
	ReplyAck
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case Waiting:
		return "waiting"
	case Receiving:
		return "receiving"
	case ReplyAck:
		return "reply_ack"
	default:
		return "idle"
	}
}

// Switching selects the receive/forward discipline.
type Switching uint8

const (
	StoreAndForward Switching = iota
	CutThrough
)

func ParseSwitching(s string) (Switching, error) {
	switch s {
	case "store_and_forward":
		return StoreAndForward, nil
	case "cut_through":
		return CutThrough, nil
	default:
		return 0, cos.NewErrConfig("unknown switching mode %q", s)
	}
}

// Default link-layer timing constants, chosen to keep default-sized
// scenarios converging within a few hundred cycles - see DESIGN.md.
const (
	MaxResendTimes  = 5
	WaitAckCycles   = 4
	DataBytePerFlit = flit.DataBytePerFlit
)

// Hardware is one node's link-layer state: the FSM stage, the single
// outstanding un-ACKed flit, the pending ACK, and the receive-blocking
// latch.
type Hardware struct {
	state      State
	waiting    uint32 // remaining cycles, meaningful iff state==Waiting
	resendTime uint8

	retransmissionBuffer flit.Flit
	ackBuffer            flit.Flit

	switching Switching
	rng       *rand.Rand

	// receive-blocking latch (store-and-forward only)
	isReceiving   bool
	recvPrevID    string
	recvPacketID  uint32
	recvChannelID uint8
	curFlitNum    uint32
}

// New returns a fresh link-layer instance for one node.
func New(switching Switching, seed int64) *Hardware {
	return &Hardware{switching: switching, rng: rand.New(rand.NewSource(seed))}
}

func (h *Hardware) State() State              { return h.state }
func (h *Hardware) ResendTimes() uint8        { return h.resendTime }
func (h *Hardware) RetransmissionBuffer() flit.Flit { return h.retransmissionBuffer }
func (h *Hardware) AckBuffer() flit.Flit      { return h.ackBuffer }
func (h *Hardware) HasPendingAck() bool       { return !h.ackBuffer.IsEmpty() }
func (h *Hardware) HasPendingFlit() bool      { return !h.retransmissionBuffer.IsEmpty() }

// SendFlit loads f into the retransmission buffer; it is emitted once
// the FSM reaches Sending.
func (h *Hardware) SendFlit(f flit.Flit) {
	h.retransmissionBuffer = f
}

// SendAck drains the ack buffer for emission, asserting it really is
// an Ack.
func (h *Hardware) SendAck() (flit.Flit, error) {
	ack := h.ackBuffer
	if ack.IsEmpty() {
		return flit.Flit{}, cos.NewErrProtocol("SendAck: no pending ack")
	}
	debug.Assert(ack.Kind == flit.KindAck, "SendAck: buffer is not an ack flit")
	h.ackBuffer = flit.Flit{}
	return ack, nil
}

// ReceiveFlit processes an inbound flit: a
// Header/Data/Tail either passes the blocking discipline (ack is
// generated and the flit surfaces for reassembly) or is dropped (nil,
// nil); an Ack is matched against the retransmission buffer, clearing
// it on success or reporting a transient mismatch.
func (h *Hardware) ReceiveFlit(f flit.Flit) (*flit.Flit, error) {
	switch f.Kind {
	case flit.KindHeader, flit.KindData, flit.KindTail:
		if !h.checkReceivedFlit(f) {
			return nil, nil
		}
		if f.NextID == f.PrevID {
			return nil, cos.NewErrProtocol("ReceiveFlit: next_id == prev_id")
		}
		h.ackGen(f)
		out := f
		return &out, nil
	case flit.KindAck:
		if h.isReceiving {
			return nil, nil
		}
		if err := h.receiveAck(f); err != nil {
			return nil, err
		}
		out := f
		return &out, nil
	default:
		return nil, cos.NewErrProtocol("ReceiveFlit: flit is not header, data, tail, or ack")
	}
}

// checkReceivedFlit implements the receive-blocking discipline.
func (h *Hardware) checkReceivedFlit(f flit.Flit) bool {
	if h.switching == CutThrough {
		return true
	}
	switch f.Kind {
	case flit.KindHeader:
		if h.isReceiving {
			return false
		}
		if f.FlitsLen > 1 {
			h.isReceiving = true
			h.recvPrevID = f.PrevID
			h.recvPacketID = f.PacketID
			h.recvChannelID = f.ChannelID
			h.curFlitNum = 0
		}
		return true
	case flit.KindData:
		if h.isReceiving && h.recvPrevID == f.PrevID && h.recvPacketID == f.PacketID &&
			h.recvChannelID == f.ChannelID && h.curFlitNum+1 == f.FlitNum {
			h.curFlitNum++
			return true
		}
		return false
	case flit.KindTail:
		if h.isReceiving && h.recvPrevID == f.PrevID && h.recvPacketID == f.PacketID &&
			h.recvChannelID == f.ChannelID && h.curFlitNum+1 == f.FlitNum {
			h.resetBlocking()
			return true
		}
		return false
	default:
		return false
	}
}

func (h *Hardware) resetBlocking() {
	h.isReceiving = false
	h.recvPrevID = ""
	h.recvPacketID = 0
	h.curFlitNum = 0
}

// ackGen builds the Ack for an accepted Header/Data/Tail.
func (h *Hardware) ackGen(f flit.Flit) {
	flitNum := f.FlitNum
	if f.Kind == flit.KindHeader {
		flitNum = 0
	}
	h.ackBuffer = flit.Flit{
		Kind:      flit.KindAck,
		SourceID:  f.NextID,
		DestID:    f.PrevID,
		PacketID:  f.PacketID,
		FlitNum:   flitNum,
		ChannelID: f.ChannelID,
	}
}

// receiveAck implements ACK matching: clears the retransmission buffer
// on a matching reverse hop, else reports a transient (non-fatal)
// mismatch.
func (h *Hardware) receiveAck(f flit.Flit) error {
	pending := h.retransmissionBuffer
	if pending.IsEmpty() {
		return cos.NewErrProtocol("receiveAck: no pending retransmission")
	}
	flitNum := pending.FlitNum
	if pending.Kind == flit.KindHeader {
		flitNum = 0
	}
	if f.DestID == pending.PrevID && f.SourceID == pending.NextID &&
		f.PacketID == pending.PacketID && f.FlitNum == flitNum {
		h.retransmissionBuffer = flit.Flit{}
		h.resendTime = 0
		return nil
	}
	return cos.NewErrProtocol("receiveAck: ack does not match retransmission buffer")
}

// BeginReceiving drives Idle->Receiving or Waiting->Receiving
// externally (the scheduler decides when a node has an inbound flit
// to process, and only delivers it while the link is Idle or
// Waiting). Interrupting a Waiting countdown abandons the
// remaining backoff cycles; the pending retransmission itself is
// untouched and is retried as soon as the node returns to Idle.
func (h *Hardware) BeginReceiving() error {
	if h.state != Idle && h.state != Waiting {
		return cos.NewErrProtocol("BeginReceiving: invalid from state %s", h.state)
	}
	h.waiting = 0
	h.state = Receiving
	return nil
}

// UpdateState advances the FSM by exactly one cycle, enforcing the
// transition table (no Sending->Sending or Receiving->Sending).
func (h *Hardware) UpdateState() error {
	switch h.state {
	case Idle:
		if h.HasPendingFlit() {
			h.state = Sending
		}
	case Receiving:
		h.state = ReplyAck
	case ReplyAck:
		h.state = Idle
	case Sending:
		h.enterWaiting()
	case Waiting:
		if h.waiting == 0 {
			if h.HasPendingFlit() {
				h.state = Sending
			} else {
				h.state = Idle
			}
		} else {
			h.waiting--
		}
	default:
		return cos.NewErrProtocol("UpdateState: unknown state %d", h.state)
	}
	return nil
}

// enterWaiting computes the backoff window: WaitAckCycles alone on
// the first attempt, else
// WaitAckCycles + U[2^(r-1), 2^(r+1)) where r=resend_times, then
// increments resend_times. Once resend_times would exceed
// MaxResendTimes the pending flit is abandoned and the node returns to
// Idle directly, rather than entering another Waiting window.
func (h *Hardware) enterWaiting() {
	if h.resendTime >= MaxResendTimes {
		h.retransmissionBuffer = flit.Flit{}
		h.resendTime = 0
		h.state = Idle
		return
	}

	r := h.resendTime
	extra := uint32(0)
	if r > 0 {
		lo := uint32(1) << (r - 1)
		hi := uint32(1) << (r + 1)
		extra = lo + uint32(h.rng.Int63n(int64(hi-lo)))
	}
	h.waiting = WaitAckCycles + extra
	h.resendTime++
	h.state = Waiting
}
