package logsink_test

import (
	"errors"
	"testing"

	"github.com/Neccolini/recsimu/logsink"
)

func TestAggregateComputesAverageCycleOverDeliveredInRange(t *testing.T) {
	s := logsink.New()
	s.NewPacketLog("C", "R", 1, 3, 10)
	s.MarkDelivered("C", 1, 16) // (16-10)/3 = 2.0

	s.NewPacketLog("C", "R", 2, 1, 999) // outside log range, excluded
	s.MarkDelivered("C", 2, 1000)

	s.NewPacketLog("C", "R", 3, 2, 20)
	// never delivered

	metrics := s.Aggregate(0, 100)
	if metrics["total_packets"] != 3 {
		t.Fatalf("total_packets = %v, want 3", metrics["total_packets"])
	}
	if metrics["undelivered_packets"] != 1 {
		t.Fatalf("undelivered_packets = %v, want 1", metrics["undelivered_packets"])
	}
	if metrics["average_cycle"] != 2.0 {
		t.Fatalf("average_cycle = %v, want 2.0", metrics["average_cycle"])
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := logsink.New()
	s.NewPacketLog("C", "R", 1, 1, 0)
	s.RecordCollision(5, "C", []string{"R1", "R2"})
	s.Clear()
	s.Clear()
	metrics := s.Aggregate(0, 10)
	if metrics["total_packets"] != 0 || metrics["collision_count"] != 0 {
		t.Fatalf("Clear must empty the sink: %+v", metrics)
	}
}

func TestRecordCollision(t *testing.T) {
	s := logsink.New()
	s.SetRunID("run-1")
	s.RecordCollision(10, "C", []string{"R1", "R2"})
	cs := s.Collisions()
	if len(cs) != 1 || cs[0].Cycle != 10 || cs[0].DestPID != "C" {
		t.Fatalf("unexpected collisions: %+v", cs)
	}
	if cs[0].RunID != "run-1" {
		t.Fatalf("expected collision to be stamped with the active run id, got %q", cs[0].RunID)
	}
}

func TestRecordTransientDedupsAndCounts(t *testing.T) {
	s := logsink.New()
	s.RecordTransient(errors.New("ack mismatch at R1"))
	s.RecordTransient(errors.New("ack mismatch at R1"))
	s.RecordTransient(errors.New("ack mismatch at R2"))
	if got := s.TransientCount(); got != 2 {
		t.Fatalf("TransientCount() = %d, want 2 distinct mismatches", got)
	}
	metrics := s.Aggregate(0, 10)
	if metrics["transient_mismatches"] != 2 {
		t.Fatalf("transient_mismatches = %v, want 2", metrics["transient_mismatches"])
	}
}
