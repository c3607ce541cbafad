// Package gen is the topology generator behind the `recsim gen`
// subcommand: it turns a small topology Spec into a full sim.Input
// (nodes, neighbours, packet injections, and an optional
// reconfiguration schedule). Every random draw comes from one math/rand
// stream seeded with Spec.Seed, so the same Spec always yields the same
// Input.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package gen

import (
	"fmt"
	"math/rand"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/sim"
)

// Topology selects the adjacency-generation algorithm.
type Topology string

const (
	Line       Topology = "line"
	Star       Topology = "star"
	RandomTree Topology = "random_tree"
)

// Spec is the `gen` subcommand's own small input (`gen -i
// <input.json>`): a topology description to expand into a full
// sim.Input, not the simulator's own Input schema.
type Spec struct {
	NodeNum      uint32   `json:"node_num"`
	Topology     Topology `json:"topology"`
	ChannelNum   uint8    `json:"channel_num"`
	Switching    string   `json:"switching"`
	Routing      string   `json:"routing"`
	TotalCycles  uint32   `json:"total_cycles"`
	Seed         int64    `json:"seed"`
	PacketCount  int      `json:"packet_count"`
	ReconfigAt   uint32   `json:"reconfigure_at"` // 0 = no reconfiguration
}

func (s *Spec) Validate() error {
	if s.NodeNum < 2 {
		return cos.NewErrConfig("node_num must be >= 2")
	}
	if s.ChannelNum == 0 {
		return cos.NewErrConfig("channel_num must be >= 1")
	}
	switch s.Topology {
	case Line, Star, RandomTree:
	default:
		return cos.NewErrConfig("unknown topology %q", s.Topology)
	}
	return nil
}

func nodeID(i uint32) string { return fmt.Sprintf("n%d", i) }

// Generate expands spec into a full sim.Input.
func Generate(spec *Spec) (*sim.Input, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(spec.Seed))

	nodes := make([]sim.NodeSpec, spec.NodeNum)
	nodes[0] = sim.NodeSpec{NodeID: nodeID(0), NodeType: "coordinator"}
	for i := uint32(1); i < spec.NodeNum; i++ {
		nodes[i] = sim.NodeSpec{NodeID: nodeID(i), NodeType: "router"}
	}

	neighbors := adjacency(spec.Topology, spec.NodeNum, rng)
	packets := randomPackets(spec.NodeNum, spec.PacketCount, spec.TotalCycles, rng)

	in := &sim.Input{
		NodeNum:     spec.NodeNum,
		TotalCycles: spec.TotalCycles,
		ChannelNum:  spec.ChannelNum,
		Switching:   spec.Switching,
		Routing:     spec.Routing,
		Nodes:       nodes,
		Packets:     packets,
		Neighbors:   neighbors,
	}

	if spec.ReconfigAt > 0 && spec.ReconfigAt < spec.TotalCycles {
		if entry, ok := dropOneEdge(neighbors, rng); ok {
			in.RecTable = map[string]sim.RecTableEntry{
				fmt.Sprintf("%d", spec.ReconfigAt): entry,
			}
		}
	}
	return in, nil
}

// adjacency builds the undirected neighbour map for the chosen
// topology: Line is a simple chain n0-n1-...-n(k-1); Star has n0 as
// the hub; RandomTree attaches each node i>0 to a uniformly-random
// earlier node, guaranteeing connectivity (Prüfer-free construction).
func adjacency(topo Topology, nodeNum uint32, rng *rand.Rand) map[string][]string {
	out := make(map[string][]string, nodeNum)
	addEdge := func(a, b string) {
		out[a] = append(out[a], b)
		out[b] = append(out[b], a)
	}
	switch topo {
	case Line:
		for i := uint32(1); i < nodeNum; i++ {
			addEdge(nodeID(i-1), nodeID(i))
		}
	case Star:
		for i := uint32(1); i < nodeNum; i++ {
			addEdge(nodeID(0), nodeID(i))
		}
	case RandomTree:
		for i := uint32(1); i < nodeNum; i++ {
			parent := rng.Intn(int(i))
			addEdge(nodeID(uint32(parent)), nodeID(i))
		}
	}
	return out
}

// randomPackets schedules count user-message injections at random
// cycles strictly before totalCycles, between distinct random nodes.
func randomPackets(nodeNum uint32, count int, totalCycles uint32, rng *rand.Rand) []sim.PacketSpec {
	if nodeNum < 2 || totalCycles == 0 {
		return nil
	}
	out := make([]sim.PacketSpec, 0, count)
	for i := 0; i < count; i++ {
		src := rng.Intn(int(nodeNum))
		dest := rng.Intn(int(nodeNum))
		for dest == src {
			dest = rng.Intn(int(nodeNum))
		}
		cycle := uint32(rng.Intn(int(totalCycles)))
		out = append(out, sim.PacketSpec{
			CycleNum: cycle,
			SrcID:    nodeID(uint32(src)),
			DestID:   nodeID(uint32(dest)),
			Msg:      fmt.Sprintf("msg-%d", i),
		})
	}
	return out
}

// dropOneEdge picks a uniformly random existing edge and returns the
// rec_table entry that removes it from both endpoints' neighbour
// lists (a full replacement of each endpoint's neighbour list).
func dropOneEdge(neighbors map[string][]string, rng *rand.Rand) (sim.RecTableEntry, bool) {
	type edge struct{ a, b string }
	var edges []edge
	for a, peers := range neighbors {
		for _, b := range peers {
			if a < b {
				edges = append(edges, edge{a, b})
			}
		}
	}
	if len(edges) == 0 {
		return sim.RecTableEntry{}, false
	}
	e := edges[rng.Intn(len(edges))]
	return sim.RecTableEntry{NewNeighbors: map[string][]string{
		e.a: without(neighbors[e.a], e.b),
		e.b: without(neighbors[e.b], e.a),
	}}, true
}

func without(peers []string, drop string) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}
