// Package sim is the simulation driver: the input schema, its
// validation, and the wiring from a parsed Input into a runnable
// sched.Scheduler. JSON decode/encode via cmn/cos's jsoniter wrappers,
// matching the teacher's config-file idiom.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package sim

import (
	"strconv"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/nlog"
	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/node"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/sched"
	"github.com/Neccolini/recsimu/vidtbl"
)

// NodeSpec is one entry of Input.Nodes.
type NodeSpec struct {
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
}

// PacketSpec is one scheduled injection.
type PacketSpec struct {
	CycleNum uint32 `json:"cycle_num"`
	SrcID    string `json:"src_id"`
	DestID   string `json:"dest_id"`
	Msg      string `json:"msg"`
}

// RecTableEntry is one cycle's topology mutation.
type RecTableEntry struct {
	NewNeighbors map[string][]string `json:"new_neighbors"`
}

// Input is the JSON input schema, decoded as-is (rec_table's keys
// arrive as JSON object keys, i.e. strings; parseRecTable converts
// them to cycle numbers for the scheduler).
type Input struct {
	NodeNum     uint32                   `json:"node_num"`
	TotalCycles uint32                   `json:"total_cycles"`
	ChannelNum  uint8                    `json:"channel_num"`
	Switching   string                   `json:"switching"`
	Routing     string                   `json:"routing"`
	Nodes       []NodeSpec               `json:"nodes"`
	Packets     []PacketSpec             `json:"packets"`
	Neighbors   map[string][]string      `json:"neighbors"`
	RecTable    map[string]RecTableEntry `json:"rec_table"`
	LogRange    *[2]uint32               `json:"log_range"`
}

// Validate checks the schema invariants the JSON decoder itself can't
// enforce.
func (in *Input) Validate() error {
	if in.ChannelNum == 0 {
		return cos.NewErrConfig("channel_num must be >= 1")
	}
	if len(in.Nodes) == 0 {
		return cos.NewErrConfig("nodes must not be empty")
	}
	if uint32(len(in.Nodes)) != in.NodeNum {
		return cos.NewErrConfig("node_num (%d) does not match len(nodes) (%d)", in.NodeNum, len(in.Nodes))
	}
	if _, err := hw.ParseSwitching(in.Switching); err != nil {
		return err
	}
	switch in.Routing {
	case "", "default", "multi_tree", "dynamic":
	default:
		return cos.NewErrConfig("unknown routing %q", in.Routing)
	}
	seen := make(map[string]struct{}, len(in.Nodes))
	coordinators := 0
	for _, n := range in.Nodes {
		if _, dup := seen[n.NodeID]; dup {
			return cos.NewErrConfig("duplicate node_id %q", n.NodeID)
		}
		seen[n.NodeID] = struct{}{}
		if n.NodeType == "coordinator" {
			coordinators++
		}
	}
	if coordinators != 1 {
		return cos.NewErrConfig("exactly one coordinator node is required, found %d", coordinators)
	}
	for pid := range in.Neighbors {
		if _, ok := seen[pid]; !ok {
			return cos.NewErrConfig("neighbors references unknown node_id %q", pid)
		}
	}
	for _, p := range in.Packets {
		if _, ok := seen[p.SrcID]; !ok {
			return cos.NewErrConfig("packet references unknown src_id %q", p.SrcID)
		}
		if _, ok := seen[p.DestID]; !ok {
			return cos.NewErrConfig("packet references unknown dest_id %q", p.DestID)
		}
	}
	return nil
}

// RoutingKind defaults an empty Routing to "default".
func (in *Input) RoutingKind() string {
	if in.Routing == "" {
		return "default"
	}
	return in.Routing
}

// LogWindow returns the half-open [begin, end) window, defaulting to
// [0, total_cycles).
func (in *Input) LogWindow() (uint32, uint32) {
	if in.LogRange == nil {
		return 0, in.TotalCycles
	}
	return in.LogRange[0], in.LogRange[1]
}

func (in *Input) parseRecTable() (map[uint32]sched.RecEntry, error) {
	if len(in.RecTable) == 0 {
		return nil, nil
	}
	out := make(map[uint32]sched.RecEntry, len(in.RecTable))
	for k, v := range in.RecTable {
		cycle, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, cos.NewErrConfig("rec_table key %q is not a cycle number", k)
		}
		out[uint32(cycle)] = sched.RecEntry{NewNeighbors: v.NewNeighbors}
	}
	return out, nil
}

// Build wires a validated Input into a runnable Scheduler, sharing
// vt/log as the two process-wide resources.
func Build(in *Input, vt *vidtbl.Table, log *logsink.Sink) (*sched.Scheduler, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	switching, err := hw.ParseSwitching(in.Switching)
	if err != nil {
		return nil, err
	}
	routing := in.RoutingKind()

	injections := make(map[string][]node.Injection, len(in.Nodes))
	for _, p := range in.Packets {
		injections[p.SrcID] = append(injections[p.SrcID], node.Injection{
			Cycle: p.CycleNum, DestPID: p.DestID, Message: p.Msg,
		})
	}

	nodes := make([]*node.Node, 0, len(in.Nodes))
	for i, spec := range in.Nodes {
		nt := nodeTypeOf(spec.NodeType)
		n, err := node.New(spec.NodeID, nt, routing, in.ChannelNum, switching, vt, log, node.Seeded(int64(i)+1))
		if err != nil {
			return nil, err
		}
		n.ScheduleInjections(injections[spec.NodeID])
		nodes = append(nodes, n)
	}

	recTable, err := in.parseRecTable()
	if err != nil {
		return nil, err
	}

	return sched.New(nodes, in.Neighbors, recTable, vt, log), nil
}

func nodeTypeOf(s string) route.NodeType {
	switch s {
	case "coordinator":
		return route.Coordinator
	case "router":
		return route.Router
	case "end_device":
		return route.EndDevice
	default:
		return route.NodeType(s)
	}
}

// Run executes a built Scheduler for its Input's total_cycles and
// returns the output metrics map. Each invocation is tagged with a
// fresh cos.RunID so --verbose tracing and any CollisionInfo recorded
// during the run can be correlated back to this call.
func Run(in *Input, s *sched.Scheduler, log *logsink.Sink) (map[string]float64, error) {
	runID := cos.RunID()
	log.SetRunID(runID)
	nlog.Traceln("run", runID, "begin: total_cycles", in.TotalCycles)

	if err := s.Run(in.TotalCycles); err != nil {
		nlog.Errorf("run %s: %v", runID, err)
		return nil, err
	}

	nlog.Traceln("run", runID, "done")
	begin, end := in.LogWindow()
	return log.Aggregate(begin, end), nil
}
