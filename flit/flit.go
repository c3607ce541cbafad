// Package flit implements the simulator's transport-unit model and its
// packet<->flit codecs. A Flit is a tagged union of {Header, Data,
// Tail, Ack, Empty}; it is modelled here as a
// single struct carrying every variant's fields rather than as a Go
// interface, following the same "one struct, a Kind tag, and
// kind-specific fields left zero" shape the teacher uses for its own
// wire messages (api/apc actmsg.go's tagged action-message pattern in
// the pack).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package flit

import "github.com/Neccolini/recsimu/cmn/cos"

// DataBytePerFlit is the per-flit payload byte budget, a compile-time
// constant as in the original.
const DataBytePerFlit = 64

// Broadcast is the physical-address sentinel used as DestID/NextID to
// mean "every current neighbour".
const Broadcast = "broadcast"

type Kind uint8

const (
	KindEmpty Kind = iota
	KindHeader
	KindData
	KindTail
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	case KindTail:
		return "tail"
	case KindAck:
		return "ack"
	default:
		return "empty"
	}
}

// Flit is the smallest transport unit. Fields not meaningful for Kind
// are left zero; see the accessors below for the defined effect of
// SetNextID/SetPrevID per kind.
type Flit struct {
	Kind      Kind
	SourceID  string
	DestID    string
	NextID    string
	PrevID    string
	PacketID  uint32
	ChannelID uint8

	FlitsLen  uint32 // Header only
	FlitNum   uint32 // Data/Tail/Ack
	ResendNum uint8  // Data/Tail
	Data      []byte // Header/Data/Tail payload chunk
}

func (f Flit) IsEmpty() bool { return f.Kind == KindEmpty }

// IsLast reports whether f is the terminal flit of its packet: a Tail,
// or a Header whose packet is exactly one flit long.
func (f Flit) IsLast() bool {
	switch f.Kind {
	case KindTail:
		return true
	case KindHeader:
		return f.FlitsLen == 1
	default:
		return false
	}
}

// SetNextID has a defined effect per kind: for Ack, the "next hop" is
// encoded in reverse as DestID, since an Ack travels backwards along
// the hop it acknowledges. It fails (no-op, reports via the returned
// error) on Empty.
func (f *Flit) SetNextID(id string) error {
	switch f.Kind {
	case KindEmpty:
		return cos.NewErrProtocol("SetNextID on an Empty flit")
	case KindAck:
		f.DestID = id
	default:
		f.NextID = id
	}
	return nil
}

// SetPrevID mirrors SetNextID: for Ack it sets SourceID (the reverse
// encoding), and fails on Empty.
func (f *Flit) SetPrevID(id string) error {
	switch f.Kind {
	case KindEmpty:
		return cos.NewErrProtocol("SetPrevID on an Empty flit")
	case KindAck:
		f.SourceID = id
	default:
		f.PrevID = id
	}
	return nil
}

// ValidChannel validates the invariant that every non-Empty flit carries a
// channel in [0, channelNum).
func (f Flit) ValidChannel(channelNum uint8) bool {
	if f.Kind == KindEmpty {
		return true
	}
	return f.ChannelID < channelNum
}
