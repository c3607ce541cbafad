package route_test

import (
	"math/rand"
	"testing"

	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

func TestMultiTreeCoreJoinsAllChannels(t *testing.T) {
	const channelNum = 2
	vt := vidtbl.New()
	coord := route.NewMultiTreeCore("coord", route.Coordinator, channelNum, vt, rand.New(rand.NewSource(1)))
	r1 := route.NewMultiTreeCore("r1", route.Router, channelNum, vt, rand.New(rand.NewSource(2)))

	if !coord.IsJoined() {
		t.Fatalf("coordinator must start joined on every channel")
	}
	if r1.IsJoined() {
		t.Fatalf("router must start unjoined")
	}

	for i := 0; i < channelNum; i++ {
		p, ok := r1.SendPacket()
		if !ok {
			t.Fatalf("router must queue a preq per channel, missing #%d", i)
		}
		coord.ReceivePacket(p)
	}
	coord.Update(nil)

	for i := 0; i < channelNum; i++ {
		pack, ok := coord.SendPacket()
		if !ok {
			t.Fatalf("coordinator must reply pack for each preq")
		}
		r1.ReceivePacket(pack)
	}
	r1.Update(nil)

	for i := 0; i < channelNum; i++ {
		jreq, ok := r1.SendPacket()
		if !ok || coord.Message(jreq) != "jreq" {
			t.Fatalf("router must send jreq on each channel")
		}
		coord.ReceivePacket(jreq)
	}
	coord.Update(nil)

	for i := 0; i < channelNum; i++ {
		jack, ok := coord.SendPacket()
		if !ok || coord.Message(jack) != "jack" {
			t.Fatalf("coordinator must reply jack on each channel")
		}
		r1.ReceivePacket(jack)
	}
	r1.Update(nil)

	if !r1.IsJoined() {
		t.Fatalf("router must be joined once every channel has received jack")
	}
}

func TestMultiTreeCoreRoundRobinEgress(t *testing.T) {
	const channelNum = 3
	vt := vidtbl.New()
	coord := route.NewMultiTreeCore("coord", route.Coordinator, channelNum, vt, rand.New(rand.NewSource(1)))

	seen := make(map[uint8]bool)
	for i := 0; i < channelNum; i++ {
		coord.PushNewPacket(route.Injection{DestPID: "coord", Message: "hi"})
	}
	for i := 0; i < channelNum; i++ {
		p, ok := coord.SendPacket()
		if !ok {
			t.Fatalf("expected %d queued packets", channelNum)
		}
		seen[p.ChannelID] = true
	}
	if len(seen) != channelNum {
		t.Fatalf("round-robin egress must cycle through all %d channels, saw %v", channelNum, seen)
	}
}
