package flit_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/Neccolini/recsimu/flit"
)

// flits_to_data(packet_to_flits(p)) == p.data, for any payload length.
func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 63, 64, 65, 127, 128, 129, 2048} {
		data := make([]byte, n)
		rng.Read(data)
		p := flit.Packet{
			Data: data, SourceID: "C", DestID: "R", NextID: "R", PrevID: "C",
			PacketID: 7, ChannelID: 0,
		}
		flits := flit.PacketToFlits(p)
		got := flit.FlitsToData(flits)
		if !bytes.Equal(got, data) {
			t.Fatalf("len=%d: round-trip mismatch", n)
		}
	}
}

func TestSingleFlitPacketHasNoTail(t *testing.T) {
	p := flit.Packet{Data: []byte("hi"), SourceID: "C", DestID: "R", PacketID: 1}
	flits := flit.PacketToFlits(p)
	if len(flits) != 1 {
		t.Fatalf("expected exactly one flit, got %d", len(flits))
	}
	if !flits[0].IsLast() {
		t.Fatalf("single Header flit must report IsLast")
	}
	if flits[0].Kind != flit.KindHeader {
		t.Fatalf("expected Header, got %s", flits[0].Kind)
	}
}

func TestMultiFlitPacketShape(t *testing.T) {
	data := make([]byte, flit.DataBytePerFlit*3+10)
	p := flit.Packet{Data: data, SourceID: "C", DestID: "R", PacketID: 2}
	flits := flit.PacketToFlits(p)
	if flits[0].Kind != flit.KindHeader {
		t.Fatalf("first flit must be Header")
	}
	last := flits[len(flits)-1]
	if last.Kind != flit.KindTail || !last.IsLast() {
		t.Fatalf("last flit must be Tail and report IsLast")
	}
	for i, f := range flits[1 : len(flits)-1] {
		if f.Kind != flit.KindData {
			t.Fatalf("flit %d: expected Data, got %s", i+1, f.Kind)
		}
		if f.FlitNum != uint32(i+1) {
			t.Fatalf("flit %d: expected FlitNum=%d, got %d", i+1, i+1, f.FlitNum)
		}
	}
	if flits[0].FlitNum != 0 {
		t.Fatalf("Header FlitNum must be 0")
	}
	if last.FlitNum != uint32(len(flits)-1) {
		t.Fatalf("Tail FlitNum must equal flits_len-1")
	}
}

func TestDivCeil(t *testing.T) {
	cases := []struct{ n, d, want uint32 }{
		{0, 64, 1}, {1, 64, 1}, {64, 64, 1}, {65, 64, 2}, {128, 64, 2}, {129, 64, 3},
	}
	for _, c := range cases {
		p := flit.Packet{Data: make([]byte, c.n)}
		if c.n == 0 {
			// DivCeil(0,d) is special-cased to 1 by FlitsLen (a header is
			// always emitted, even for an empty payload).
			if got := p.FlitsLen(); got != 1 {
				t.Fatalf("FlitsLen(0) = %d, want 1", got)
			}
			continue
		}
		if got := p.FlitsLen(); got != c.want {
			t.Fatalf("FlitsLen(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestAckSetNextPrevReverseEncoding(t *testing.T) {
	ack := flit.Flit{Kind: flit.KindAck, SourceID: "R", DestID: "C"}
	if err := ack.SetNextID("X"); err != nil {
		t.Fatal(err)
	}
	if ack.DestID != "X" {
		t.Fatalf("SetNextID on Ack must mutate DestID, got %+v", ack)
	}
	if err := ack.SetPrevID("Y"); err != nil {
		t.Fatal(err)
	}
	if ack.SourceID != "Y" {
		t.Fatalf("SetPrevID on Ack must mutate SourceID, got %+v", ack)
	}
}

func TestSetNextIDFailsOnEmpty(t *testing.T) {
	e := flit.Flit{Kind: flit.KindEmpty}
	if err := e.SetNextID("X"); err == nil {
		t.Fatalf("SetNextID on Empty must fail")
	}
	if err := e.SetPrevID("X"); err == nil {
		t.Fatalf("SetPrevID on Empty must fail")
	}
}
