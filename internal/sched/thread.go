/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sched

import (
	"sync"

	"github.com/google/uuid"

	"x64emu.dev/emulator/internal/hosttime"
)

// ThreadState is a Thread's run state as seen by the scheduler.
type ThreadState int

const (
	StateRunnable ThreadState = iota
	// StateRunning marks a thread a worker has picked and is currently
	// executing; tryPickNext will never select a Running thread, which is
	// what keeps two workers from ever driving the same thread at once.
	StateRunning
	StateBlocked
	StateTerminated
)

// ProfileEvent is one entry of a Thread's profiling event log (call/ret/
// syscall markers), kept as a bounded in-memory ring per the spec's
// lock-free profiling ring buffer design note. When the ring is full the
// oldest entry is overwritten; when profiling storage is configured,
// internal/kernel writes the ring's contents to internal/profiling once the
// thread terminates through a VM stop.
type ProfileEvent struct {
	Timestamp hosttime.Precise
	Kind      string
	Addr      uint64
}

const profileRingCapacity = 4096

// Thread is a single guest thread of execution: saved CPU registers, ring
// priority, run state, optional Blocker, robust-futex-list head, and a
// bounded profiling event ring. Grounded on scheduler.cpp's Thread class.
type Thread struct {
	ID   int32 // guest tid
	Ring Ring

	mu          sync.Mutex
	state       ThreadState
	blocker     *Blocker
	regs        [16]uint64 // RAX, RBX, RCX, RDX, RSI, RDI, RSP, RBP, R8-R15 in x86-64 order
	clearChildTID uint64
	robustListHead uint64
	timeSlice   int
	profile     []ProfileEvent
	profileHead int

	ChildTID uuid.UUID // scheduler-internal identity, independent of guest tid reuse
}

// NewThread creates a runnable thread at the given ring with a fresh
// profiling ring buffer.
func NewThread(tid int32, ring Ring) *Thread {
	return &Thread{ID: tid, Ring: ring, state: StateRunnable, ChildTID: uuid.New(), profile: make([]ProfileEvent, profileRingCapacity)}
}

// RegisterFile satisfies vm.Thread: callers (the VM) read/write guest
// register state directly through the returned slice.
func (t *Thread) RegisterFile() []uint64 { return t.regs[:] }

func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) setState(s ThreadState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Thread) Blocker() *Blocker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocker
}

func (t *Thread) block(b *Blocker) {
	t.mu.Lock()
	t.blocker = b
	t.state = StateBlocked
	t.mu.Unlock()
}

func (t *Thread) unblock() {
	t.mu.Lock()
	t.blocker = nil
	t.state = StateRunnable
	t.mu.Unlock()
}

// setRunning marks the thread Running; called by tryPickNext under the
// scheduler mutex at the moment a worker claims it.
func (t *Thread) setRunning() {
	t.mu.Lock()
	t.state = StateRunning
	t.mu.Unlock()
}

// finishRunning returns a thread a worker just finished a quantum with back
// to Runnable, unless it moved itself to Blocked or Terminated meanwhile
// (via a syscall installing a blocker, or exiting) in which case that state
// is left untouched.
func (t *Thread) finishRunning() {
	t.mu.Lock()
	if t.state == StateRunning {
		t.state = StateRunnable
	}
	t.mu.Unlock()
}

func (t *Thread) terminate() {
	t.mu.Lock()
	t.state = StateTerminated
	t.blocker = nil
	t.mu.Unlock()
}

func (t *Thread) SetClearChildTID(addr uint64) { t.mu.Lock(); t.clearChildTID = addr; t.mu.Unlock() }
func (t *Thread) ClearChildTID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clearChildTID
}

func (t *Thread) SetRobustListHead(addr uint64) { t.mu.Lock(); t.robustListHead = addr; t.mu.Unlock() }
func (t *Thread) RobustListHead() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.robustListHead
}

// ResetTimeSlice reinstates the instruction budget a worker loop grants a
// thread before voluntarily preempting it for a same- or higher-priority
// peer, per scheduler.cpp's time-slice management. The worker loop passes
// the same TimeSliceBudget for every ring.
func (t *Thread) ResetTimeSlice(budget int) {
	t.mu.Lock()
	t.timeSlice = budget
	t.mu.Unlock()
}

// ConsumeTimeSlice decrements the remaining budget by n and reports
// whether it has been exhausted.
func (t *Thread) ConsumeTimeSlice(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeSlice -= n
	return t.timeSlice <= 0
}

// RecordProfileEvent appends to the bounded ring, overwriting the oldest
// entry once full (the spec's lock-free ring buffer design note; this
// implementation synchronizes with the same mutex as other Thread state
// since profiling is not the emulator's hot path).
func (t *Thread) RecordProfileEvent(ev ProfileEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profile[t.profileHead%profileRingCapacity] = ev
	t.profileHead++
}

// ProfileSnapshot returns the ring's current contents in chronological
// order.
func (t *Thread) ProfileSnapshot() []ProfileEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.profileHead
	if n > profileRingCapacity {
		n = profileRingCapacity
	}
	out := make([]ProfileEvent, n)
	start := t.profileHead - n
	for i := 0; i < n; i++ {
		out[i] = t.profile[(start+i)%profileRingCapacity]
	}
	return out
}
