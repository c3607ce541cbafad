package route_test

import (
	"math/rand"
	"testing"

	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

func TestDefaultCoreCoordinatorStartsJoined(t *testing.T) {
	vt := vidtbl.New()
	coord := route.NewDefaultCore("coord", route.Coordinator, vt, rand.New(rand.NewSource(1)))
	if !coord.IsJoined() {
		t.Fatalf("coordinator must start joined")
	}
	if coord.ID() != 1 {
		t.Fatalf("single-channel coordinator must have vid 1, got %d", coord.ID())
	}
}

func TestDefaultCoreRouterJoinProtocol(t *testing.T) {
	vt := vidtbl.New()
	coord := route.NewDefaultCore("coord", route.Coordinator, vt, rand.New(rand.NewSource(1)))
	r1 := route.NewDefaultCore("r1", route.Router, vt, rand.New(rand.NewSource(2)))

	if r1.IsJoined() {
		t.Fatalf("router must start unjoined")
	}

	p, ok := r1.SendPacket()
	if !ok {
		t.Fatalf("router must queue an initial preq")
	}
	coord.ReceivePacket(p)
	coord.Update(nil)

	pack, ok := coord.SendPacket()
	if !ok {
		t.Fatalf("joined coordinator must reply pack to a preq")
	}
	r1.ReceivePacket(pack)
	r1.Update(nil)

	jreq, ok := r1.SendPacket()
	if !ok || coord.Message(jreq) != "jreq" {
		t.Fatalf("router must send jreq after receiving pack")
	}
	coord.ReceivePacket(jreq)
	coord.Update(nil)

	jack, ok := coord.SendPacket()
	if !ok || coord.Message(jack) != "jack" {
		t.Fatalf("coordinator must reply jack to jreq")
	}
	r1.ReceivePacket(jack)
	r1.Update(nil)

	if !r1.IsJoined() {
		t.Fatalf("router must be joined after receiving jack")
	}
}
