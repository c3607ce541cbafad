package network_test

import (
	"math/rand"
	"testing"

	"github.com/Neccolini/recsimu/hw"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/network"
	"github.com/Neccolini/recsimu/route"
	"github.com/Neccolini/recsimu/vidtbl"
)

func TestInjectQueuesFlitsOnSendFIFO(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()
	coordCore := route.NewDefaultCore("coord", route.Coordinator, vt, rand.New(rand.NewSource(1)))
	n := network.New("coord", coordCore, 1, hw.StoreAndForward, hw.New(hw.StoreAndForward, 1), log)

	n.Inject(0, "r1", "hi")
	n.Update(0, nil)

	f, ch, ok := n.SendFlit()
	if !ok {
		t.Fatalf("expected a queued flit after Inject+Update")
	}
	if ch != 0 {
		t.Fatalf("single-channel network must use channel 0, got %d", ch)
	}
	if f.Kind.String() != "header" {
		t.Fatalf("a short message must serialise to a single Header flit, got %s", f.Kind)
	}
}

func TestReceiveFlitDeliversCompletedPacketToCore(t *testing.T) {
	vt := vidtbl.New()
	log := logsink.New()

	coordCore := route.NewDefaultCore("coord", route.Coordinator, vt, rand.New(rand.NewSource(1)))
	rCore := route.NewDefaultCore("r1", route.Router, vt, rand.New(rand.NewSource(2)))

	coordNet := network.New("coord", coordCore, 1, hw.StoreAndForward, hw.New(hw.StoreAndForward, 1), log)
	rNet := network.New("r1", rCore, 1, hw.StoreAndForward, hw.New(hw.StoreAndForward, 1), log)

	// Bypass the join protocol: directly inject coord->r1 and drive it
	// through coordNet's serialization and rNet's reassembly.
	coordNet.Inject(0, "r1", "Hello, World!")
	coordNet.Update(0, nil)

	for {
		f, _, ok := coordNet.SendFlit()
		if !ok {
			break
		}
		rNet.ReceiveFlit(f, f.ChannelID, 1)
	}

	metrics := log.Aggregate(0, 100)
	if metrics["undelivered_packets"] != 0 {
		t.Fatalf("packet must be delivered, metrics=%+v", metrics)
	}
}
