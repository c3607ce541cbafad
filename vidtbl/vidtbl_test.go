package vidtbl_test

import (
	"testing"

	"github.com/Neccolini/recsimu/vidtbl"
)

func TestNewRegistersBroadcastSentinel(t *testing.T) {
	tbl := vidtbl.New()
	vid, ok := tbl.GetVID(vidtbl.BroadcastPID)
	if !ok || vid != vidtbl.BroadcastVID {
		t.Fatalf("broadcast sentinel not registered: vid=%d ok=%v", vid, ok)
	}
	pid, ok := tbl.GetPID(vidtbl.BroadcastVID)
	if !ok || pid != vidtbl.BroadcastPID {
		t.Fatalf("broadcast sentinel reverse lookup failed: pid=%q ok=%v", pid, ok)
	}
}

func TestAddGetRoundTrip(t *testing.T) {
	tbl := vidtbl.New()
	tbl.Add("nodeA", 7)
	if vid, ok := tbl.GetVID("nodeA"); !ok || vid != 7 {
		t.Fatalf("GetVID(nodeA) = %d, %v; want 7, true", vid, ok)
	}
	if pid, ok := tbl.GetPID(7); !ok || pid != "nodeA" {
		t.Fatalf("GetPID(7) = %q, %v; want nodeA, true", pid, ok)
	}
}

func TestRemove(t *testing.T) {
	tbl := vidtbl.New()
	tbl.Add("nodeA", 7)
	tbl.Remove("nodeA")
	if _, ok := tbl.GetVID("nodeA"); ok {
		t.Fatalf("nodeA should be gone after Remove")
	}
	if _, ok := tbl.GetPID(7); ok {
		t.Fatalf("vid 7 should be gone after Remove")
	}
}

func TestUpdateReplacesVID(t *testing.T) {
	tbl := vidtbl.New()
	tbl.Add("nodeA", 7)
	tbl.Update("nodeA", 9)
	if _, ok := tbl.GetPID(7); ok {
		t.Fatalf("old vid 7 should no longer resolve after Update")
	}
	if vid, ok := tbl.GetVID("nodeA"); !ok || vid != 9 {
		t.Fatalf("GetVID(nodeA) = %d, %v; want 9, true", vid, ok)
	}
}

func TestClearReregistersSentinelAndIsIdempotent(t *testing.T) {
	tbl := vidtbl.New()
	tbl.Add("nodeA", 7)
	tbl.Clear()
	tbl.Clear()
	if _, ok := tbl.GetVID("nodeA"); ok {
		t.Fatalf("nodeA should be gone after Clear")
	}
	if vid, ok := tbl.GetVID(vidtbl.BroadcastPID); !ok || vid != vidtbl.BroadcastVID {
		t.Fatalf("Clear must re-register the broadcast sentinel")
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a := vidtbl.New()
	b := vidtbl.New()
	a.Add("nodeA", 7)
	if _, ok := b.GetVID("nodeA"); ok {
		t.Fatalf("New() instances must not share state")
	}
}
