package node_test

import (
	"testing"

	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/node"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

func TestNewRejectsUnknownRouting(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()
	_, err := node.New("c", route.Coordinator, "bogus", 1, hw.StoreAndForward, vt, log, node.Seeded(1))
	if err == nil {
		t.Fatalf("unknown routing strategy must be rejected")
	}
}

func TestTickDrainsScheduleInOrder(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()
	n, err := node.New("c", route.Coordinator, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(1))
	if err != nil {
		t.Fatal(err)
	}
	n.ScheduleInjections([]node.Injection{
		{Cycle: 5, DestPID: "r1", Message: "a"},
		{Cycle: 10, DestPID: "r1", Message: "b"},
	})

	if err := n.Tick(3, nil); err != nil {
		t.Fatal(err)
	}
	if n.Net.Link.HasPendingFlit() {
		t.Fatalf("nothing scheduled yet at cycle 3")
	}

	if err := n.Tick(5, nil); err != nil {
		t.Fatal(err)
	}
	if !n.Net.Link.HasPendingFlit() {
		t.Fatalf("cycle-5 injection must be pumped into the link by Tick(5)")
	}
}
