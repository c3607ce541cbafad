package route

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/vidtbl"
)

// MaxRecCnt bounds how many cycles a reconfiguration's active root
// probe waits before giving up on the current child and trying the
// next one.
const MaxRecCnt uint8 = 3

// recInfo tracks one channel's in-progress reconfiguration after a
// parent loss. initNodeID is the node that first noticed the loss and
// is coordinating the root search; oldParentID (0 = none) is
// reattached as a child once a new root is found.
type recInfo struct {
	initNodeID  uint32
	oldParentID uint32
	queue       []uint32 // children not yet asked to become the next prober
	isRec       bool     // true once this node is actively broadcasting "R<id>"
	cnt         uint8    // cycles since the current prober was asked
}

func (r *recInfo) begin() { r.isRec = true }
func (r *recInfo) end()   { r.isRec = false }

func (r *recInfo) popChild() (uint32, bool) {
	if len(r.queue) == 0 {
		return 0, false
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	return next, true
}

// DynamicCore extends MultiTreeCore's per-channel spanning trees with
// root-id-tournament self-healing reconfiguration.
type DynamicCore struct {
	id         uint32
	channelNum uint8
	vt         *vidtbl.Table
	nodeType   NodeType
	rng        *rand.Rand

	sendBuf []message
	recvBuf []message

	joined      []bool
	table       []map[uint32]uint32
	parentIDs   []uint32
	rootIDs     []uint32
	children    []map[uint32]struct{}
	recInfo     map[uint8]*recInfo
	channelHist uint8

	packetNumCnt uint32
}

// NewDynamicCore constructs a node's Dynamic routing core. root_ids
// default to multiTreeCoordinatorVID, the network's well-known
// coordinator, until a reconfiguration elects a new root for some
// channel.
func NewDynamicCore(pid string, nodeType NodeType, channelNum uint8, vt *vidtbl.Table, rng *rand.Rand) *DynamicCore {
	c := &DynamicCore{vt: vt, nodeType: nodeType, channelNum: channelNum, rng: rng, recInfo: make(map[uint8]*recInfo)}
	c.joined = make([]bool, channelNum)
	c.table = make([]map[uint32]uint32, channelNum)
	c.parentIDs = make([]uint32, channelNum)
	c.rootIDs = make([]uint32, channelNum)
	c.children = make([]map[uint32]struct{}, channelNum)
	for ch := range c.table {
		c.table[ch] = make(map[uint32]uint32)
		c.children[ch] = make(map[uint32]struct{})
		c.rootIDs[ch] = multiTreeCoordinatorVID
	}

	if nodeType.IsCoordinator() {
		c.id = multiTreeCoordinatorVID
		for ch := range c.parentIDs {
			c.parentIDs[ch] = c.id
			c.joined[ch] = true
			c.rootIDs[ch] = c.id
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

func (c *DynamicCore) ID() uint32 { return c.id }
func (c *DynamicCore) IsJoined() bool {
	for _, j := range c.joined {
		if !j {
			return false
		}
	}
	return true
}
func (c *DynamicCore) ParentIDs() []uint32 {
	out := make([]uint32, len(c.parentIDs))
	copy(out, c.parentIDs)
	return out
}
func (c *DynamicCore) Message(p flit.Packet) string { return Message(p) }

func (c *DynamicCore) gen(ch uint8, src, dest, next uint32, text string) message {
	id := c.packetNumCnt
	c.packetNumCnt++
	return message{Text: text, PacketID: id, SourceID: src, DestID: dest, NextID: next, PrevID: c.id, ChannelID: ch}
}

func (c *DynamicCore) nextChannel() uint8 {
	ch := c.channelHist
	c.channelHist = (c.channelHist + 1) % c.channelNum
	return ch
}

func (c *DynamicCore) nextHop(ch uint8, dest uint32) uint32 {
	if next, ok := c.table[ch][dest]; ok {
		return next
	}
	if dest == BroadcastVID {
		return BroadcastVID
	}
	debug.Assert(c.parentIDs[ch] != 0, "route: DynamicCore.nextHop: no parent on this channel")
	return c.parentIDs[ch]
}

func (c *DynamicCore) PushNewPacket(inj Injection) uint32 {
	dest := vidOf(c.vt, inj.DestPID)
	ch := c.nextChannel()
	next := c.nextHop(ch, dest)
	m := c.gen(ch, c.id, dest, next, inj.Message)
	c.sendBuf = append(c.sendBuf, m)
	return m.PacketID
}

func (c *DynamicCore) SendPacket() (flit.Packet, bool) {
	if len(c.sendBuf) == 0 {
		return flit.Packet{}, false
	}
	m := c.sendBuf[0]
	c.sendBuf = c.sendBuf[1:]
	return toPacket(c.vt, m), true
}

func (c *DynamicCore) ReceivePacket(p flit.Packet) {
	c.recvBuf = append(c.recvBuf, fromPacket(c.vt, p))
}

// ForwardFlit additionally adopts an unrecognised predecessor as a
// child: the tree grows lazily as traffic flows, not only through the
// join protocol.
func (c *DynamicCore) ForwardFlit(f flit.Flit) flit.Flit {
	destVID := vidOf(c.vt, f.DestID)
	sourceVID := vidOf(c.vt, f.SourceID)
	prevVID := vidOf(c.vt, f.PrevID)
	ch := f.ChannelID
	c.table[ch][sourceVID] = prevVID
	if prevVID != c.parentIDs[ch] && prevVID != BroadcastVID {
		c.children[ch][prevVID] = struct{}{}
	}
	nextVID := c.nextHop(ch, destVID)

	out := f
	_ = out.SetPrevID(f.NextID)
	_ = out.SetNextID(pidOf(c.vt, nextVID))
	return out
}

func (c *DynamicCore) Update(opt *UpdateOption) {
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
	c.recInUpdate(opt)
	for len(c.recvBuf) > 0 {
		m := c.recvBuf[0]
		c.recvBuf = c.recvBuf[1:]
		c.sendBuf = append(c.sendBuf, c.handle(m)...)
	}
}

// recInUpdate drives the per-cycle reconfiguration machinery:
// probe-exhaustion on the active prober, fresh "R<id>" broadcasts
// while actively probing, and freeze-initiation when the scheduler
// reports the loss of a neighbour vid.
func (c *DynamicCore) recInUpdate(opt *UpdateOption) {
	for ch, ri := range c.recInfo {
		ri.cnt++
		if ri.cnt >= MaxRecCnt {
			ri.cnt = 0
			if next, ok := ri.popChild(); ok {
				c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, next, next, "tf"))
			} else {
				target := c.nextHop(ch, ri.initNodeID)
				c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, ri.initNodeID, target, "fl"))
			}
		} else if ri.isRec && c.rng.Float64() < joinProbability {
			c.sendBuf = append(c.sendBuf, c.gen(ch, ri.initNodeID, BroadcastVID, BroadcastVID, rootProbeText(ri.initNodeID)))
		}
	}

	if opt == nil {
		return
	}
	for _, lost := range opt.LostVIDs {
		for ch := uint8(0); ch < c.channelNum; ch++ {
			if c.parentIDs[ch] == lost {
				c.parentIDs[ch] = 0
				c.rootIDs[ch] = c.id
				ri := &recInfo{initNodeID: c.id}
				for child := range c.children[ch] {
					ri.queue = append(ri.queue, child)
				}
				c.recInfo[ch] = ri
				if len(ri.queue) == 0 {
					ri.begin()
					c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, BroadcastVID, BroadcastVID, rootProbeText(c.id)))
				} else {
					c.sendBuf = append(c.sendBuf, c.gen(ch, c.id, BroadcastVID, BroadcastVID, "rec"))
				}
			}
			delete(c.children[ch], lost)
		}
	}
}

const rootProbePrefix = "R"
const rootAdoptPrefix = "P"

func rootProbeText(initID uint32) string {
	return rootProbePrefix + strconv.FormatUint(uint64(initID), 10)
}
func rootAdoptText(rootID uint32) string {
	return rootAdoptPrefix + strconv.FormatUint(uint64(rootID), 10)
}
func parseSuffixID(text, prefix string) (uint32, bool) {
	if !strings.HasPrefix(text, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(text[len(prefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// handle tries the reconfiguration protocol first, then falls back to
// the ordinary join/routing protocol shared with MultiTreeCore.
func (c *DynamicCore) handle(m message) []message {
	if out, handled := c.handleRec(m); handled {
		return out
	}
	return c.handleJoinAndRoute(m)
}

func (c *DynamicCore) handleRec(m message) ([]message, bool) {
	ch := m.ChannelID
	switch {
	case m.Text == "rec":
		var out []message
		for child := range c.children[ch] {
			if child != m.SourceID {
				out = append(out, c.gen(ch, m.SourceID, child, child, "rec"))
			}
		}
		ri := &recInfo{initNodeID: m.SourceID, oldParentID: c.parentIDs[ch]}
		for child := range c.children[ch] {
			if child != m.SourceID {
				ri.queue = append(ri.queue, child)
			}
		}
		c.recInfo[ch] = ri
		if len(c.children[ch]) == 0 || (len(c.children[ch]) == 1 && containsKey(c.children[ch], m.SourceID)) {
			target := c.nextHop(ch, m.SourceID)
			out = append(out, c.gen(ch, c.id, m.SourceID, target, "recr"))
		}
		return out, true

	case m.Text == "recr":
		if m.DestID == c.id {
			ri, ok := c.recInfo[ch]
			if !ok {
				return nil, true
			}
			ri.begin()
			return []message{c.gen(ch, c.id, BroadcastVID, BroadcastVID, rootProbeText(ri.initNodeID))}, true
		}
		target := c.nextHop(ch, m.DestID)
		return []message{c.gen(ch, m.SourceID, m.DestID, target, "recr")}, true

	case m.Text == "tf":
		ri, ok := c.recInfo[ch]
		if !ok {
			return nil, true
		}
		ri.begin()
		return []message{c.gen(ch, c.id, BroadcastVID, BroadcastVID, rootProbeText(ri.initNodeID))}, true

	case m.Text == "fl":
		if m.DestID == c.id {
			ri, ok := c.recInfo[ch]
			if !ok {
				return nil, true
			}
			if next, ok := ri.popChild(); ok {
				return []message{c.gen(ch, c.id, next, next, "tf")}, true
			}
			ri.end()
			delete(c.recInfo, ch)
			if ri.oldParentID != 0 {
				target := c.nextHop(ch, ri.oldParentID)
				return []message{c.gen(ch, c.id, ri.oldParentID, target, "fl")}, true
			}
			return nil, true
		}
		target := c.nextHop(ch, m.DestID)
		return []message{c.gen(ch, m.SourceID, m.DestID, target, "fl")}, true

	case strings.HasPrefix(m.Text, rootProbePrefix):
		initID, ok := parseSuffixID(m.Text, rootProbePrefix)
		if !ok {
			return nil, false
		}
		ri, frozen := c.recInfo[ch]
		if !frozen {
			return []message{c.gen(ch, c.id, m.SourceID, m.SourceID, rootAdoptText(c.rootIDs[ch]))}, true
		}
		if initID > ri.initNodeID {
			return []message{c.gen(ch, c.id, m.SourceID, m.SourceID, rootAdoptText(c.rootIDs[ch]))}, true
		}
		return nil, true

	case strings.HasPrefix(m.Text, rootAdoptPrefix):
		rootID, ok := parseSuffixID(m.Text, rootAdoptPrefix)
		if !ok {
			return nil, false
		}
		if rootID == c.rootIDs[ch] {
			return nil, true
		}
		debug.Assert(rootID < c.rootIDs[ch], "route: DynamicCore root adoption requires a strictly smaller root id")
		oldParent := c.parentIDs[ch]
		c.rootIDs[ch] = rootID
		c.parentIDs[ch] = m.SourceID
		var out []message
		ri, wasRec := c.recInfo[ch]
		if wasRec && ri.isRec {
			out = append(out, c.gen(ch, c.id, m.SourceID, m.SourceID, "pset"))
		}
		for child := range c.children[ch] {
			out = append(out, c.gen(ch, c.id, child, child, "rset"+strconv.FormatUint(uint64(rootID), 10)))
		}
		if wasRec && ri.oldParentID != 0 {
			c.children[ch][ri.oldParentID] = struct{}{}
			target := c.nextHop(ch, ri.oldParentID)
			out = append(out, c.gen(ch, c.id, ri.oldParentID, target, rootAdoptText(rootID)))
		}
		delete(c.recInfo, ch)
		return out, true

	case m.Text == "pset":
		c.children[ch][m.SourceID] = struct{}{}
		if ri, ok := c.recInfo[ch]; ok {
			ri.queue = removeVID(ri.queue, m.SourceID)
		}
		return nil, true

	case strings.HasPrefix(m.Text, "rset"):
		rootID, err := strconv.ParseUint(m.Text[len("rset"):], 10, 32)
		if err != nil {
			return nil, false
		}
		c.rootIDs[ch] = uint32(rootID)
		var out []message
		for child := range c.children[ch] {
			out = append(out, c.gen(ch, c.id, child, child, m.Text))
		}
		return out, true

	default:
		return nil, false
	}
}

func containsKey(m map[uint32]struct{}, k uint32) bool { _, ok := m[k]; return ok }

func removeVID(s []uint32, v uint32) []uint32 {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// handleJoinAndRoute is the ordinary preq/pack/jreq/jack join protocol
// plus default routing/forwarding, shared in shape with
// MultiTreeCore.handle but addressing jreq to the channel's *current*
// root_ids[ch] rather than a fixed coordinator vid, since
// reconfiguration can move the root.
func (c *DynamicCore) handleJoinAndRoute(m message) []message {
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
		return []message{c.gen(ch, c.id, c.rootIDs[ch], m.SourceID, "jreq")}

	case m.DestID == c.id && m.Text == "jreq":
		c.table[ch][m.SourceID] = m.PrevID
		c.children[ch][m.PrevID] = struct{}{}
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
			c.children[ch][m.PrevID] = struct{}{}
		}
		next := c.nextHop(ch, m.DestID)
		return []message{c.gen(ch, m.SourceID, m.DestID, next, m.Text)}
	}
}
