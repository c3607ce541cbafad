// Package logsink is the simulator's second process-wide shared
// resource: an in-memory store of per-packet delivery logs and
// collision events, aggregated into the run's final metrics map. The
// mutex-guarded-map-plus-Prometheus-gauges shape follows the teacher's
// stats/common_statsd.go tracker.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package logsink

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Neccolini/recsimu/cmn/cos"
)

// PacketLog tracks one packet's journey from creation to (possibly
// never) delivery.
type PacketLog struct {
	SourcePID         string
	DestPID           string
	PacketID          uint32
	FlitsLen          uint32
	SendCycle         uint32
	LastReceiveCycle  uint32
	IsDelivered       bool
	RouteInfo         []string
}

// CollisionInfo records a cycle at which two or more flits arrived at
// the same node's inbox and were dropped. RunID ties the record back
// to the sim.Run invocation that produced it.
type CollisionInfo struct {
	Cycle   uint32
	DestPID string
	FromIDs []string
	RunID   string
}

func bucketKey(sourcePID string, packetID uint32) string {
	return sourcePID + "#" + itoa(packetID)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

var (
	deliveredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recsim_packets_delivered_total",
		Help: "Packets whose terminal flit reached their destination.",
	})
	collisionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recsim_collisions_total",
		Help: "Inbox collisions detected by the scheduler.",
	})
	flitsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recsim_flits_total",
		Help: "Flits emitted across every registered packet.",
	})
)

func init() {
	prometheus.MustRegister(deliveredGauge, collisionCounter, flitsGauge)
}

// Registry exposes the package's Prometheus collectors so a caller can
// wire them into an HTTP handler (promhttp.Handler) or dump them for
// diagnostics; the gauges above are write-only otherwise.
func Registry() []prometheus.Collector {
	return []prometheus.Collector{deliveredGauge, collisionCounter, flitsGauge}
}

// Sink is the process-wide log store. New() gives test isolation; a
// package-level Default backs production runs (mirrors vidtbl's shape
// as the other mutually-exclusive shared resource).
type Sink struct {
	mu         sync.Mutex
	packets    map[string]*PacketLog
	collisions []CollisionInfo
	transient  cos.Errs
	runID      string
}

func New() *Sink {
	return &Sink{packets: make(map[string]*PacketLog)}
}

var Default = New()

// Clear empties the sink; idempotent.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = make(map[string]*PacketLog)
	s.collisions = s.collisions[:0]
	s.transient = cos.Errs{}
	s.runID = ""
}

// SetRunID stamps every CollisionInfo recorded from this point on with
// id, so diagnostics can be correlated back to a single sim.Run call.
func (s *Sink) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

// NewPacketLog registers a freshly-created packet.
func (s *Sink) NewPacketLog(sourcePID, destPID string, packetID, flitsLen, sendCycle uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets[bucketKey(sourcePID, packetID)] = &PacketLog{
		SourcePID: sourcePID, DestPID: destPID, PacketID: packetID,
		FlitsLen: flitsLen, SendCycle: sendCycle,
	}
	flitsGauge.Add(float64(flitsLen))
}

// AppendRouteHop appends the forwarding node's pid to route_info; used
// when a node emits a packet's header flit.
func (s *Sink) AppendRouteHop(sourcePID string, packetID uint32, hopPID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pl, ok := s.packets[bucketKey(sourcePID, packetID)]; ok {
		pl.RouteInfo = append(pl.RouteInfo, hopPID)
	}
}

// MarkDelivered records the terminal flit's arrival cycle at the final
// destination (last_receive_cycle >= send_cycle).
func (s *Sink) MarkDelivered(sourcePID string, packetID, cycle uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pl, ok := s.packets[bucketKey(sourcePID, packetID)]; ok {
		pl.LastReceiveCycle = cycle
		pl.IsDelivered = true
		deliveredGauge.Inc()
	}
}

// RecordCollision logs a dropped inbox collision.
func (s *Sink) RecordCollision(cycle uint32, destPID string, fromIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(fromIDs))
	copy(ids, fromIDs)
	s.collisions = append(s.collisions, CollisionInfo{Cycle: cycle, DestPID: destPID, FromIDs: ids, RunID: s.runID})
	collisionCounter.Inc()
}

// RecordTransient tallies a non-fatal ACK/flit mismatch (misdirected
// link-layer traffic that the scheduler drops rather than failing the
// run on).
func (s *Sink) RecordTransient(err error) {
	s.transient.Add(err)
}

// TransientCount returns how many distinct transient mismatches have
// been recorded.
func (s *Sink) TransientCount() int64 {
	return s.transient.Cnt()
}

// Collisions returns a snapshot of every recorded collision.
func (s *Sink) Collisions() []CollisionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CollisionInfo, len(s.collisions))
	copy(out, s.collisions)
	return out
}

// Aggregate computes the final output metrics map: average_cycle,
// undelivered_packets, total_packets, total_flits, average_flits_len,
// collision_count, transient_mismatches. logRange is the half-open
// [begin, end) window send_cycle must fall in to count toward
// average_cycle.
func (s *Sink) Aggregate(logRangeBegin, logRangeEnd uint32) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		totalPackets     int
		undelivered      int
		totalFlits       uint64
		sumCycleRatio    float64
		countedForCycle  int
	)
	for _, pl := range s.packets {
		totalPackets++
		totalFlits += uint64(pl.FlitsLen)
		if !pl.IsDelivered {
			undelivered++
			continue
		}
		if pl.SendCycle < logRangeBegin || pl.SendCycle >= logRangeEnd {
			continue
		}
		flitsLen := pl.FlitsLen
		if flitsLen == 0 {
			flitsLen = 1
		}
		ratio := float64(pl.LastReceiveCycle-pl.SendCycle) / float64(flitsLen)
		sumCycleRatio += ratio
		countedForCycle++
	}

	averageCycle := 0.0
	if countedForCycle > 0 {
		averageCycle = sumCycleRatio / float64(countedForCycle)
	}
	averageFlitsLen := 0.0
	if totalPackets > 0 {
		averageFlitsLen = float64(totalFlits) / float64(totalPackets)
	}

	return map[string]float64{
		"average_cycle":        averageCycle,
		"undelivered_packets":  float64(undelivered),
		"total_packets":        float64(totalPackets),
		"total_flits":          float64(totalFlits),
		"average_flits_len":    averageFlitsLen,
		"collision_count":      float64(len(s.collisions)),
		"transient_mismatches": float64(s.transient.Cnt()),
	}
}
