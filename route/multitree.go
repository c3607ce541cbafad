package route

import (
	"math/rand"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/vidtbl"
)

// multiTreeCoordinatorVID is the single, network-wide well-known vid
// every MultiTree/Dynamic coordinator assumes, mirroring DefaultCore's
// single fixed coordinator vid: a topology has exactly one coordinator
// node, which roots every channel's otherwise independent spanning
// tree. This codebase's topology generator (gen.Generate) never
// produces more than one coordinator node.
const multiTreeCoordinatorVID uint32 = 1

// MultiTreeCore is the multi-channel routing engine: one independent
// spanning tree per channel, round-robin egress channel selection.
type MultiTreeCore struct {
	id         uint32
	channelNum uint8
	vt         *vidtbl.Table
	nodeType   NodeType
	rng        *rand.Rand

	sendBuf []message
	recvBuf []message

	joined       []bool             // per channel
	table        []map[uint32]uint32 // per channel: dest vid -> next-hop vid
	parentIDs    []uint32           // per channel; 0 = none
	channelHist  uint8              // round-robin egress cursor
	packetNumCnt uint32
}

// NewMultiTreeCore constructs a node's MultiTree routing core. The
// coordinator always takes multiTreeCoordinatorVID; routers draw one
// random vid shared across all channels.
func NewMultiTreeCore(pid string, nodeType NodeType, channelNum uint8, vt *vidtbl.Table, rng *rand.Rand) *MultiTreeCore {
	c := &MultiTreeCore{vt: vt, nodeType: nodeType, channelNum: channelNum, rng: rng}
	c.joined = make([]bool, channelNum)
	c.table = make([]map[uint32]uint32, channelNum)
	c.parentIDs = make([]uint32, channelNum)
	for ch := range c.table {
		c.table[ch] = make(map[uint32]uint32)
	}

	if nodeType.IsCoordinator() {
		c.id = multiTreeCoordinatorVID
		for ch := range c.parentIDs {
			c.parentIDs[ch] = c.id
			c.joined[ch] = true
		}
	} else {
		c.id = cos.NewVID(uint32(channelNum)+1, vidtbl.BroadcastVID)
		for ch := uint8(0); ch < channelNum; ch++ {
			c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, BroadcastVID, BroadcastVID, "preq"))
		}
	}
	vt.Add(pid, c.id)
	return c
}

func (c *MultiTreeCore) ID() uint32     { return c.id }
func (c *MultiTreeCore) IsJoined() bool {
	for _, j := range c.joined {
		if !j {
			return false
		}
	}
	return true
}
func (c *MultiTreeCore) ParentIDs() []uint32 {
	out := make([]uint32, len(c.parentIDs))
	copy(out, c.parentIDs)
	return out
}
func (c *MultiTreeCore) Message(p flit.Packet) string { return Message(p) }

func (c *MultiTreeCore) gen(ch uint8, src, dest, next uint32, text string) message {
	id := c.packetNumCnt
	c.packetNumCnt++
	return message{Text: text, PacketID: id, SourceID: src, DestID: dest, NextID: next, PrevID: c.id, ChannelID: ch}
}

// nextChannel picks the next egress channel round-robin, independent
// of routing-table membership.
func (c *MultiTreeCore) nextChannel() uint8 {
	ch := c.channelHist
	c.channelHist = (c.channelHist + 1) % c.channelNum
	return ch
}

func (c *MultiTreeCore) nextHop(ch uint8, dest uint32) uint32 {
	if next, ok := c.table[ch][dest]; ok {
		return next
	}
	if dest == BroadcastVID {
		return BroadcastVID
	}
	debug.Assert(c.parentIDs[ch] != 0, "route: MultiTreeCore.nextHop: no parent on this channel")
	return c.parentIDs[ch]
}

func (c *MultiTreeCore) PushNewPacket(inj Injection) uint32 {
	dest := vidOf(c.vt, inj.DestPID)
	ch := c.nextChannel()
	next := c.nextHop(ch, dest)
	m := c.gen(ch, c.id, dest, next, inj.Message)
	c.sendBuf = append(c.sendBuf, m)
	return m.PacketID
}

func (c *MultiTreeCore) SendPacket() (flit.Packet, bool) {
	if len(c.sendBuf) == 0 {
		return flit.Packet{}, false
	}
	m := c.sendBuf[0]
	c.sendBuf = c.sendBuf[1:]
	return toPacket(c.vt, m), true
}

func (c *MultiTreeCore) ReceivePacket(p flit.Packet) {
	c.recvBuf = append(c.recvBuf, fromPacket(c.vt, p))
}

func (c *MultiTreeCore) ForwardFlit(f flit.Flit) flit.Flit {
	destVID := vidOf(c.vt, f.DestID)
	sourceVID := vidOf(c.vt, f.SourceID)
	prevVID := vidOf(c.vt, f.PrevID)
	nextVID := c.nextHop(f.ChannelID, destVID)
	c.table[f.ChannelID][sourceVID] = prevVID

	out := f
	_ = out.SetPrevID(f.NextID)
	_ = out.SetNextID(pidOf(c.vt, nextVID))
	return out
}

func (c *MultiTreeCore) Update(_ *UpdateOption) {
	var unjoined []uint8
	for ch := uint8(0); ch < c.channelNum; ch++ {
		if !c.joined[ch] {
			unjoined = append(unjoined, ch)
		}
	}
	if len(unjoined) > 0 && c.rng.Float64() < joinProbability {
		ch := unjoined[c.rng.Intn(len(unjoined))]
		c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, BroadcastVID, BroadcastVID, "preq"))
	}
	for len(c.recvBuf) > 0 {
		m := c.recvBuf[0]
		c.recvBuf = c.recvBuf[1:]
		c.sendBuf = append(c.sendBuf, c.handle(m)...)
	}
}

func (c *MultiTreeCore) handle(m message) []message {
	ch := m.ChannelID
	if m.NextID != c.id && m.NextID != BroadcastVID {
		return nil
	}
	switch {
	case m.DestID == BroadcastVID && m.Text == "preq":
		if !c.joined[ch] {
			return nil
		}
		return []message{c.gen(ch, c.id, m.SourceID, m.SourceID, "pack")}

	case m.DestID == c.id && m.Text == "pack":
		if c.parentIDs[ch] != 0 {
			return nil
		}
		c.parentIDs[ch] = m.SourceID
		return []message{c.gen(ch, c.id, multiTreeCoordinatorVID, m.SourceID, "jreq")}

	case m.DestID == c.id && m.Text == "jreq":
		c.table[ch][m.SourceID] = m.PrevID
		next := c.nextHop(ch, m.SourceID)
		return []message{c.gen(ch, c.id, m.SourceID, next, "jack")}

	case m.DestID == c.id && m.Text == "jack":
		c.joined[ch] = true
		return nil

	case m.DestID == c.id:
		return nil

	default:
		if m.Text == "jreq" {
			c.table[ch][m.SourceID] = m.PrevID
		}
		next := c.nextHop(ch, m.DestID)
		return []message{c.gen(ch, m.SourceID, m.DestID, next, m.Text)}
	}
}

