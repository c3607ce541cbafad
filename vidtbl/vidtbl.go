// Package vidtbl is the virtual-ID table: a process-wide bijection
// between protocol-level u32 vids and physical node names, internally
// synchronised for mutual exclusion. The mutual-exclusion idiom
// borrows from the teacher's cluster-singleton style (a single
// RWMutex-guarded struct, a package-level default instance for
// production, New() for test isolation).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package vidtbl

import "sync"

// BroadcastVID is the sentinel vid for the broadcast pid.
const BroadcastVID uint32 = 0xFFFFFFFF

// BroadcastPID is the physical-address sentinel (flit.Broadcast).
const BroadcastPID = "broadcast"

// Table is a bidirectional vid<->pid map, guarded by a mutex so it can
// serve as a shared, mutually-exclusive process-wide resource, or an
// unshared per-test instance.
type Table struct {
	mu      sync.RWMutex
	vid2pid map[uint32]string
	pid2vid map[string]uint32
}

// New returns an unshared table with the broadcast sentinel already
// registered.
func New() *Table {
	t := &Table{
		vid2pid: make(map[uint32]string),
		pid2vid: make(map[string]uint32),
	}
	t.add(BroadcastPID, BroadcastVID)
	return t
}

// Default is the process-wide shared instance used by cmd/recsim.
var Default = New()

func (t *Table) add(pid string, vid uint32) {
	t.vid2pid[vid] = pid
	t.pid2vid[pid] = vid
}

// Add registers a new (pid, vid) pair.
func (t *Table) Add(pid string, vid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(pid, vid)
}

// Remove deletes pid (and its vid) from the table.
func (t *Table) Remove(pid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if vid, ok := t.pid2vid[pid]; ok {
		delete(t.vid2pid, vid)
		delete(t.pid2vid, pid)
	}
}

// Update replaces pid's vid (remove+add).
func (t *Table) Update(pid string, vid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.pid2vid[pid]; ok {
		delete(t.vid2pid, old)
	}
	t.add(pid, vid)
}

// Clear empties the table and re-registers the broadcast sentinel;
// idempotent under repeated calls.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vid2pid = make(map[uint32]string)
	t.pid2vid = make(map[string]uint32)
	t.add(BroadcastPID, BroadcastVID)
}

func (t *Table) GetVID(pid string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	vid, ok := t.pid2vid[pid]
	return vid, ok
}

func (t *Table) GetPID(vid uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pid, ok := t.vid2pid[vid]
	return pid, ok
}
