package route

import (
	"math/rand"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/vidtbl"
)

// joinProbability is the per-cycle chance an unjoined node broadcasts
// a fresh "preq" (on one randomly chosen unjoined channel, for the
// multi-channel cores).
const joinProbability = 0.1

// defaultCoordinatorVID is the coordinator's fixed vid in the
// single-channel Default core: coordinators occupy vids 1..=channel_num,
// and channel_num==1 here.
const defaultCoordinatorVID uint32 = 1

// DefaultCore is the flat single-tree routing engine. A "jack" received
// at a router is treated as terminal - no further "pack" reply (see
// DESIGN.md's Open Question decision).
type DefaultCore struct {
	id       uint32
	vt       *vidtbl.Table
	nodeType NodeType
	rng      *rand.Rand

	sendBuf []message
	recvBuf []message

	networkJoined bool
	table         map[uint32]uint32 // dest vid -> next-hop vid
	parentID      uint32            // 0 = none
	packetNumCnt  uint32
}

// NewDefaultCore constructs a node's Default routing core, assigning
// it a vid and registering it in vt.
func NewDefaultCore(pid string, nodeType NodeType, vt *vidtbl.Table, rng *rand.Rand) *DefaultCore {
	c := &DefaultCore{vt: vt, nodeType: nodeType, rng: rng, table: make(map[uint32]uint32)}

	if nodeType.IsCoordinator() {
		c.id = defaultCoordinatorVID
		c.parentID = c.id
		c.networkJoined = true
	} else {
		c.id = cos.NewVID(2, vidtbl.BroadcastVID)
		c.sendBuf = append(c.sendBuf, c.gen(c.id, BroadcastVID, BroadcastVID, "preq"))
	}
	vt.Add(pid, c.id)
	return c
}

func (c *DefaultCore) ID() uint32      { return c.id }
func (c *DefaultCore) IsJoined() bool  { return c.networkJoined }
func (c *DefaultCore) ParentIDs() []uint32 { return []uint32{c.parentID} }
func (c *DefaultCore) Message(p flit.Packet) string { return Message(p) }

func (c *DefaultCore) gen(src, dest, next uint32, text string) message {
	id := c.packetNumCnt
	c.packetNumCnt++
	return message{Text: text, PacketID: id, SourceID: src, DestID: dest, NextID: next, PrevID: c.id}
}

func (c *DefaultCore) nextHop(dest uint32) uint32 {
	if next, ok := c.table[dest]; ok {
		return next
	}
	if dest == BroadcastVID {
		return BroadcastVID
	}
	debug.Assert(c.parentID != 0, "route: DefaultCore.nextHop: parent_id is not set")
	return c.parentID
}

func (c *DefaultCore) PushNewPacket(inj Injection) uint32 {
	dest := vidOf(c.vt, inj.DestPID)
	next := c.nextHop(dest)
	m := c.gen(c.id, dest, next, inj.Message)
	c.sendBuf = append(c.sendBuf, m)
	return m.PacketID
}

func (c *DefaultCore) SendPacket() (flit.Packet, bool) {
	if len(c.sendBuf) == 0 {
		return flit.Packet{}, false
	}
	m := c.sendBuf[0]
	c.sendBuf = c.sendBuf[1:]
	return toPacket(c.vt, m), true
}

func (c *DefaultCore) ReceivePacket(p flit.Packet) {
	c.recvBuf = append(c.recvBuf, fromPacket(c.vt, p))
}

func (c *DefaultCore) ForwardFlit(f flit.Flit) flit.Flit {
	destVID := vidOf(c.vt, f.DestID)
	nextVID := c.nextHop(destVID)
	sourceVID := vidOf(c.vt, f.SourceID)
	prevVID := vidOf(c.vt, f.PrevID)
	c.table[sourceVID] = prevVID

	out := f
	_ = out.SetPrevID(f.NextID)
	_ = out.SetNextID(pidOf(c.vt, nextVID))
	return out
}

func (c *DefaultCore) Update(_ *UpdateOption) {
	if !c.networkJoined && c.rng.Float64() < joinProbability {
		c.sendBuf = append(c.sendBuf, c.gen(c.id, BroadcastVID, BroadcastVID, "preq"))
	}
	for len(c.recvBuf) > 0 {
		m := c.recvBuf[0]
		c.recvBuf = c.recvBuf[1:]
		c.sendBuf = append(c.sendBuf, c.handle(m)...)
	}
}

// handle implements the join/routing protocol: one function suffices
// here since the "jreq must address the coordinator"
// check is just dest==id, which only the coordinator's own id (fixed
// at construction) can satisfy.
func (c *DefaultCore) handle(m message) []message {
	if m.NextID != c.id && m.NextID != BroadcastVID {
		return nil
	}
	switch {
	case m.DestID == BroadcastVID && m.Text == "preq":
		if !c.networkJoined {
			return nil
		}
		return []message{c.gen(c.id, m.SourceID, m.SourceID, "pack")}

	case m.DestID == c.id && m.Text == "pack":
		if c.parentID != 0 {
			return nil
		}
		c.parentID = m.SourceID
		return []message{c.gen(c.id, defaultCoordinatorVID, m.SourceID, "jreq")}

	case m.DestID == c.id && m.Text == "jreq":
		c.table[m.SourceID] = m.PrevID
		next := c.nextHop(m.SourceID)
		return []message{c.gen(c.id, m.SourceID, next, "jack")}

	case m.DestID == c.id && m.Text == "jack":
		// Terminal: "I am joined". Does not reply with pack (see
		// DESIGN.md's Open Question decision on the source's
		// jack-on-jack behaviour).
		c.networkJoined = true
		return nil

	case m.DestID == c.id:
		// user message arrived; nothing further to do here.
		return nil

	default:
		if m.Text == "jreq" {
			c.table[m.SourceID] = m.PrevID
		}
		next := c.nextHop(m.DestID)
		return []message{c.gen(m.SourceID, m.DestID, next, m.Text)}
	}
}
