package sched_test

import (
	"testing"

	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/node"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/sched"
	"github.com/Neccolini/recsimu/vidtbl"
)

func TestTwoNodeDefaultStoreAndForwardScenario(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()

	coord, err := node.New("C", route.Coordinator, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(1))
	if err != nil {
		t.Fatal(err)
	}
	r, err := node.New("R", route.Router, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(2))
	if err != nil {
		t.Fatal(err)
	}
	r.ScheduleInjections([]node.Injection{{Cycle: 40, DestPID: "C", Message: "Hello, World!"}})

	neighbors := map[string][]string{"C": {"R"}, "R": {"C"}}
	s := sched.New([]*node.Node{coord, r}, neighbors, nil, vt, log)

	if err := s.Run(50); err != nil {
		t.Fatal(err)
	}

	metrics := log.Aggregate(0, 50)
	if metrics["undelivered_packets"] != 0 {
		t.Fatalf("expected the cycle-40 packet to be delivered by cycle 50, metrics=%+v", metrics)
	}
	if metrics["total_packets"] != 1 {
		t.Fatalf("expected exactly one packet logged, metrics=%+v", metrics)
	}
}

func TestCollisionAtSharedDestination(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()

	coord, err := node.New("C", route.Coordinator, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(1))
	if err != nil {
		t.Fatal(err)
	}
	r1, err := node.New("R1", route.Router, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(2))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := node.New("R2", route.Router, "default", 1, hw.StoreAndForward, vt, log, node.Seeded(3))
	if err != nil {
		t.Fatal(err)
	}

	neighbors := map[string][]string{"C": {"R1", "R2"}, "R1": {"C"}, "R2": {"C"}}
	s := sched.New([]*node.Node{coord, r1, r2}, neighbors, nil, vt, log)

	// Drive a handful of cycles so both routers broadcast preq at cycle
	// 0 (queued at construction) and collide at the coordinator's inbox.
	for i := 0; i < 3; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}

	collisions := log.Collisions()
	if len(collisions) == 0 {
		t.Fatalf("expected at least one inbox collision from simultaneous preq broadcasts")
	}
}
