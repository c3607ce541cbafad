// Packet<->flit codecs.
package flit

// Packet is the routing-layer logical message.
type Packet struct {
	Data      []byte
	SourceID  string
	DestID    string
	NextID    string
	PrevID    string
	PacketID  uint32
	ChannelID uint8
}

// FlitsLen returns ceil(len(p.Data)/DataBytePerFlit), clamped to at
// least 1 so an empty-payload packet still serialises as one Header.
func (p Packet) FlitsLen() uint32 {
	if len(p.Data) == 0 {
		return 1
	}
	return DivCeil(uint32(len(p.Data)), DataBytePerFlit)
}

// DivCeil computes ceil(n/d) for positive d.
func DivCeil(n, d uint32) uint32 {
	return (n + d - 1) / d
}

func (p Packet) addressing(kind Kind) Flit {
	return Flit{
		Kind:      kind,
		SourceID:  p.SourceID,
		DestID:    p.DestID,
		NextID:    p.NextID,
		PrevID:    p.PrevID,
		PacketID:  p.PacketID,
		ChannelID: p.ChannelID,
	}
}

// PacketToFlits splits p.Data into DataBytePerFlit chunks, emitting one
// Header (carrying chunk 0), flitsLen-2 Data flits, and one Tail
// (carrying the final chunk); when flitsLen==1 the Header alone acts
// as both head and tail.
func PacketToFlits(p Packet) []Flit {
	n := p.FlitsLen()
	flits := make([]Flit, 0, n)

	chunk := func(i uint32) []byte {
		lo := i * DataBytePerFlit
		hi := lo + DataBytePerFlit
		if hi > uint32(len(p.Data)) {
			hi = uint32(len(p.Data))
		}
		if lo > hi {
			lo = hi
		}
		return p.Data[lo:hi]
	}

	hdr := p.addressing(KindHeader)
	hdr.FlitsLen = n
	hdr.FlitNum = 0
	hdr.Data = chunk(0)
	flits = append(flits, hdr)

	for i := uint32(1); i < n-1; i++ {
		d := p.addressing(KindData)
		d.FlitNum = i
		d.Data = chunk(i)
		flits = append(flits, d)
	}

	if n > 1 {
		t := p.addressing(KindTail)
		t.FlitNum = n - 1
		t.Data = chunk(n - 1)
		flits = append(flits, t)
	}

	return flits
}

// FlitsToData concatenates the payload chunks of an ordered
// Header, Data..., Tail sequence.
func FlitsToData(flits []Flit) []byte {
	var out []byte
	for _, f := range flits {
		out = append(out, f.Data...)
	}
	return out
}

// PacketFromTail reassembles a Packet's addressing fields from the
// last (terminal) flit of a fully-received sequence, and its payload
// from the whole sequence via FlitsToData.
func PacketFromTail(flits []Flit) Packet {
	tail := flits[len(flits)-1]
	return Packet{
		Data:      FlitsToData(flits),
		SourceID:  tail.SourceID,
		DestID:    tail.DestID,
		NextID:    tail.NextID,
		PrevID:    tail.PrevID,
		PacketID:  tail.PacketID,
		ChannelID: tail.ChannelID,
	}
}
