package route

import (
	"github.com/Neccolini/recsimu/cmn/debug"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/vidtbl"
)

// message is the routing-protocol's internal, all-vid packet shape
// shared by all three core kinds.
type message struct {
	Text      string
	PacketID  uint32
	SourceID  uint32
	DestID    uint32
	NextID    uint32
	PrevID    uint32
	ChannelID uint8
}

func pidOf(vt *vidtbl.Table, vid uint32) string {
	if vid == BroadcastVID {
		return vidtbl.BroadcastPID
	}
	pid, ok := vt.GetPID(vid)
	debug.Assertf(ok, "route: no pid registered for vid %d", vid)
	return pid
}

func vidOf(vt *vidtbl.Table, pid string) uint32 {
	if pid == vidtbl.BroadcastPID {
		return BroadcastVID
	}
	vid, ok := vt.GetVID(pid)
	debug.Assertf(ok, "route: no vid registered for pid %q", pid)
	return vid
}

func toPacket(vt *vidtbl.Table, m message) flit.Packet {
	return flit.Packet{
		Data:      []byte(m.Text),
		SourceID:  pidOf(vt, m.SourceID),
		DestID:    pidOf(vt, m.DestID),
		NextID:    pidOf(vt, m.NextID),
		PrevID:    pidOf(vt, m.PrevID),
		PacketID:  m.PacketID,
		ChannelID: m.ChannelID,
	}
}

func fromPacket(vt *vidtbl.Table, p flit.Packet) message {
	return message{
		Text:      string(p.Data),
		PacketID:  p.PacketID,
		SourceID:  vidOf(vt, p.SourceID),
		DestID:    vidOf(vt, p.DestID),
		NextID:    vidOf(vt, p.NextID),
		PrevID:    vidOf(vt, p.PrevID),
		ChannelID: p.ChannelID,
	}
}
