package gen_test

import (
	"testing"

	"github.com/Neccolini/recsimu/gen"
)

func TestGenerateRejectsUnknownTopology(t *testing.T) {
	spec := &gen.Spec{NodeNum: 3, Topology: "mesh", ChannelNum: 1, TotalCycles: 10}
	if _, err := gen.Generate(spec); err == nil {
		t.Fatalf("unknown topology must be rejected")
	}
}

func TestGenerateLineProducesChainAdjacency(t *testing.T) {
	spec := &gen.Spec{
		NodeNum: 4, Topology: gen.Line, ChannelNum: 1,
		Switching: "store_and_forward", Routing: "default",
		TotalCycles: 100, Seed: 7, PacketCount: 2,
	}
	in, err := gen.Generate(spec)
	if err != nil {
		t.Fatal(err)
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("generated input must validate: %v", err)
	}
	if len(in.Neighbors["n0"]) != 1 || len(in.Neighbors["n3"]) != 1 {
		t.Fatalf("line endpoints must have exactly one neighbour each, got %+v", in.Neighbors)
	}
	if len(in.Neighbors["n1"]) != 2 {
		t.Fatalf("line interior nodes must have exactly two neighbours, got %+v", in.Neighbors["n1"])
	}
	if len(in.Packets) != 2 {
		t.Fatalf("expected 2 scheduled packets, got %d", len(in.Packets))
	}
}

func TestGenerateStarHasHubWithAllSpokes(t *testing.T) {
	spec := &gen.Spec{
		NodeNum: 5, Topology: gen.Star, ChannelNum: 1,
		Switching: "store_and_forward", Routing: "default",
		TotalCycles: 20, Seed: 1,
	}
	in, err := gen.Generate(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Neighbors["n0"]) != 4 {
		t.Fatalf("star hub must connect to every other node, got %+v", in.Neighbors["n0"])
	}
	for i := 1; i < 5; i++ {
		pid := nodeIDFor(i)
		if len(in.Neighbors[pid]) != 1 {
			t.Fatalf("star spoke %s must have exactly one neighbour (the hub)", pid)
		}
	}
}

func TestGenerateWithReconfigureAtProducesRecTableEntry(t *testing.T) {
	spec := &gen.Spec{
		NodeNum: 4, Topology: gen.RandomTree, ChannelNum: 1,
		Switching: "store_and_forward", Routing: "dynamic",
		TotalCycles: 100, Seed: 3, ReconfigAt: 50,
	}
	in, err := gen.Generate(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.RecTable) != 1 {
		t.Fatalf("expected exactly one rec_table entry at the reconfigure cycle, got %d", len(in.RecTable))
	}
	if _, ok := in.RecTable["50"]; !ok {
		t.Fatalf("rec_table entry must be keyed by the reconfigure_at cycle, got %+v", in.RecTable)
	}
}

func nodeIDFor(i int) string {
	return "n" + string(rune('0'+i))
}
