// Package node binds one topology participant's identity, link-state
// machine, and network layer together, and holds its packet-injection
// schedule. The schedule-as-sorted-queue idiom follows the teacher's
// reb/status.go cycle-gated work queue.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package node

import (
	"math/rand"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/network"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

// RandSource hands a node one seed from which both its routing core
// (join/probe jitter) and its link-state machine (backoff jitter) build
// their own deterministic RNG streams, so those draws repeat for a given
// seed. Router vids are drawn by cos.NewVID from crypto/rand and do not
// depend on this seed.
type RandSource interface {
	Rand() *rand.Rand
	Seed() int64
}

type seeded int64

// Seeded builds a RandSource from a plain seed, so a run is
// reproducible given the same input and seed.
func Seeded(seed int64) RandSource { return seeded(seed) }

func (s seeded) Rand() *rand.Rand { return rand.New(rand.NewSource(int64(s))) }
func (s seeded) Seed() int64      { return int64(s) }

func unknownRoutingError(routing string) error {
	return cos.NewErrConfig("unknown routing strategy %q", routing)
}

// Injection is one scheduled outgoing user message, one entry per node
// whose src_id matches this node.
type Injection struct {
	Cycle   uint32
	DestPID string
	Message string
}

// Node is one simulated participant: identity, routing core, network
// layer, link-state machine, and its own slice of the global
// injection schedule.
type Node struct {
	PID      string
	NodeType route.NodeType
	Net      *network.Network

	schedule []Injection // ascending by Cycle; consumed front-to-back
}

// New constructs a node's full per-node stack for the given routing
// kind and wires it to the shared vid table and log sink. channelNum
// is 1 for Default routing by convention.
func New(pid string, nodeType route.NodeType, routing string, channelNum uint8, switching hw.Switching, vt *vidtbl.Table, log *logsink.Sink, rng RandSource) (*Node, error) {
	var core route.Core
	switch routing {
	case "default":
		core = route.NewDefaultCore(pid, nodeType, vt, rng.Rand())
	case "multi_tree":
		core = route.NewMultiTreeCore(pid, nodeType, channelNum, vt, rng.Rand())
	case "dynamic":
		core = route.NewDynamicCore(pid, nodeType, channelNum, vt, rng.Rand())
	default:
		return nil, unknownRoutingError(routing)
	}
	link := hw.New(switching, rng.Seed())
	net := network.New(pid, core, channelNum, switching, link, log)
	return &Node{PID: pid, NodeType: nodeType, Net: net}, nil
}

// ScheduleInjections installs this node's outgoing packets, sorted
// ascending by cycle (the scheduler calls Tick once per cycle in
// order, so a stable ascending schedule is all Tick needs).
func (n *Node) ScheduleInjections(injections []Injection) {
	n.schedule = append(n.schedule[:0], injections...)
}

// Tick drains every scheduled injection due at or before cycle (there
// should be at most one per cycle in practice, but duplicates in the
// input are honoured faithfully), steps the network layer, and pumps
// one flit from its send FIFOs into the link FSM.
func (n *Node) Tick(cycle uint32, opt *route.UpdateOption) error {
	for len(n.schedule) > 0 && n.schedule[0].Cycle <= cycle {
		inj := n.schedule[0]
		n.schedule = n.schedule[1:]
		n.Net.Inject(cycle, inj.DestPID, inj.Message)
	}
	n.Net.Update(cycle, opt)
	return n.Net.PumpLink()
}
