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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"x64emu.dev/emulator/internal/elog"
	"x64emu.dev/emulator/internal/hosttime"
	"x64emu.dev/emulator/internal/verify"
)

var log = elog.New("sched")

// TimeSliceBudget is the default per-preemption instruction budget handed
// to a thread by ResetTimeSlice; grounded on scheduler.cpp's constant of
// the same purpose.
const TimeSliceBudget = 10_000

// waitPollInterval is how long a worker sleeps between re-scans of timed
// blockers when nothing is runnable, matching the ~1ms WAIT-command cadence
// that lets sleep/futex-timeout/poll-timeout guests make progress without a
// signal on the condition variable.
const waitPollInterval = 1 * time.Millisecond

// workerCaps is a worker goroutine's static capability set. Per the
// design's "only one worker may run KERNEL and ATOMIC jobs" rule, exactly
// one worker (index 0) is constructed with both capabilities set; every
// other worker only ever picks normal-userspace threads.
type workerCaps struct {
	canRunSyscalls bool
	canRunAtomics  bool
}

// Scheduler runs cooperative worker goroutines, one per configured core,
// over a shared runnable-thread pool. Concurrency is built on a single
// giant mutex + condition variable (schedulerMutex_/schedulerHasRunnableThread_
// in the original), per the spec's Design Notes concurrency model, rather
// than per-thread locks — deliberately, to keep the scheduling decision
// atomic and simple to reason about.
//
// runningKernel, runningAtomic and runningUserspace together are the
// runningJobs accounting the design calls for: at most one KERNEL job and
// at most one ATOMIC job may be in flight at a time, and neither may run
// concurrently with any userspace job.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	threads []*Thread
	cores   int

	runningKernel    bool
	runningAtomic    bool
	runningUserspace int

	stopped bool
}

// New creates a Scheduler configured to run with the given number of
// worker cores.
func New(cores int) *Scheduler {
	s := &Scheduler{cores: cores}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddThread registers a new runnable thread.
func (s *Scheduler) AddThread(t *Thread) {
	s.mu.Lock()
	s.addThreadLocked(t)
	s.mu.Unlock()
}

// AddThreadLocked is AddThread for a caller that already holds the
// scheduler's job lock — i.e. a syscall handler running inside a kernel
// job's RunSyscall, such as sysClone installing a new pthread.
func (s *Scheduler) AddThreadLocked(t *Thread) {
	s.addThreadLocked(t)
}

func (s *Scheduler) addThreadLocked(t *Thread) {
	s.threads = append(s.threads, t)
	s.cond.Broadcast()
}

// tryPickNext selects the next thread worker caps should run, enforcing
// the design's ring arbitration: at most one KERNEL job and one ATOMIC job
// run at a time, neither runs concurrently with any userspace job, and a
// worker lacking canRunSyscalls/canRunAtomics never picks that ring's
// threads at all. A picked thread is moved to StateRunning and counted in
// the appropriate runningJobs tally before being returned, so no other
// worker can pick it again until the run completes. Must be called with
// s.mu held.
func (s *Scheduler) tryPickNext(caps workerCaps) *Thread {
	kernelPending, kernelOrAtomicPending := false, false
	for _, t := range s.threads {
		if t.State() != StateRunnable {
			continue
		}
		if t.Ring == RingKernel {
			kernelPending = true
		}
		if t.Ring == RingKernel || t.Ring == RingAtomicUserspace {
			kernelOrAtomicPending = true
		}
	}

	for _, t := range s.threads {
		if t.State() != StateRunnable {
			continue
		}
		switch t.Ring {
		case RingKernel:
			if !caps.canRunSyscalls || s.runningKernel || s.runningAtomic || s.runningUserspace > 0 {
				continue
			}
			s.runningKernel = true
		case RingAtomicUserspace:
			if !caps.canRunAtomics || (kernelPending && caps.canRunSyscalls) || s.runningKernel || s.runningAtomic || s.runningUserspace > 0 {
				continue
			}
			s.runningAtomic = true
		default: // RingNormalUserspace
			if s.runningKernel || s.runningAtomic || kernelOrAtomicPending {
				continue
			}
			s.runningUserspace++
		}
		t.setRunning()
		return t
	}
	return nil
}

// finishRun retires a thread a worker just ran: its runningJobs tally slot
// is released, and if the thread is still marked Running (it neither
// blocked nor terminated during the quantum) it is returned to Runnable.
// Must be called with s.mu held.
func (s *Scheduler) finishRun(t *Thread) {
	switch t.Ring {
	case RingKernel:
		s.runningKernel = false
	case RingAtomicUserspace:
		s.runningAtomic = false
	default:
		s.runningUserspace--
	}
	t.finishRunning()
}

// tryUnblockThreads scans every blocked thread and unblocks those whose
// Blocker.TryUnblock reports true, observing a single timestamp for the
// whole scan (scheduler.cpp's tryUnblockThreads). Must be called with
// s.mu held; returns whether any thread was unblocked.
func (s *Scheduler) tryUnblockThreads() bool {
	now := hosttime.Now()
	unblockedAny := false
	for _, t := range s.threads {
		if t.State() != StateBlocked {
			continue
		}
		b := t.Blocker()
		if b != nil && b.TryUnblock(now) {
			t.unblock()
			unblockedAny = true
		}
	}
	return unblockedAny
}

// allBlockedWithoutTimeout reports whether every live thread is blocked
// and none carries a deadline — the scheduler's deadlock condition,
// mirroring scheduler.cpp's verify-based deadlock detection.
func (s *Scheduler) allBlockedWithoutTimeout() bool {
	sawLive := false
	for _, t := range s.threads {
		if t.State() == StateTerminated {
			continue
		}
		sawLive = true
		if t.State() != StateBlocked {
			return false
		}
		b := t.Blocker()
		if b != nil && b.HasDeadline {
			return false
		}
	}
	return sawLive
}

// Block transitions t to blocked with the given Blocker and wakes any
// worker that might now have nothing runnable to do, so it reevaluates
// deadlock/unblock conditions promptly.
func (s *Scheduler) Block(t *Thread, b *Blocker) {
	s.mu.Lock()
	s.blockLocked(t, b)
	s.mu.Unlock()
}

// BlockLocked is Block for a caller that already holds the scheduler's job
// lock: every syscall handler that installs a Blocker runs inside
// RunSyscall and must call this instead of Block to avoid relocking the
// non-reentrant mutex RunSyscall is already holding.
func (s *Scheduler) BlockLocked(t *Thread, b *Blocker) {
	s.blockLocked(t, b)
}

func (s *Scheduler) blockLocked(t *Thread, b *Blocker) {
	t.block(b)
	s.cond.Broadcast()
}

// Unblock forces t runnable regardless of its Blocker's own predicate.
// The syscall layer does not call it: FUTEX_WAKE returns its count without
// waking anyone, and futex waiters become runnable through the passive
// tryUnblockThreads scan.
func (s *Scheduler) Unblock(t *Thread) {
	s.mu.Lock()
	s.unblockLocked(t)
	s.mu.Unlock()
}

// UnblockLocked is Unblock for a caller already holding the scheduler's
// job lock (a syscall handler executing inside RunSyscall).
func (s *Scheduler) UnblockLocked(t *Thread) {
	s.unblockLocked(t)
}

func (s *Scheduler) unblockLocked(t *Thread) {
	t.unblock()
	s.cond.Broadcast()
}

// Terminate marks t terminated, releasing it from scheduling forever.
func (s *Scheduler) Terminate(t *Thread) {
	s.mu.Lock()
	s.terminateLocked(t)
	s.mu.Unlock()
}

// TerminateLocked is Terminate for a caller already holding the
// scheduler's job lock (a syscall handler executing inside RunSyscall,
// e.g. sysExit).
func (s *Scheduler) TerminateLocked(t *Thread) {
	s.terminateLocked(t)
}

func (s *Scheduler) terminateLocked(t *Thread) {
	t.terminate()
	s.cond.Broadcast()
}

// RunSyscall runs fn — a single syscall dispatch — with the scheduler's
// job lock held for fn's entire duration, per the design's "kernel jobs
// hold the mutex for their entire duration" guarantee: no other worker can
// pick, block, unblock or terminate any thread while a syscall is being
// decoded and applied. fn must use the *Locked methods (BlockLocked,
// UnblockLocked, TerminateLocked, AddThreadLocked) rather than their
// self-locking counterparts, since the lock is already held.
func (s *Scheduler) RunSyscall(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.cond.Broadcast()
}

// WakeOp decodes a FUTEX_WAKE_OP val3 bitfield: op in bits 31-28, cmp in
// bits 27-24, oparg in bits 23-12, cmparg in bits 11-0. Bit 3 of op (i.e.
// op&8 != 0) means oparg is to be treated as a shift amount rather than a
// literal operand, per the supplemented feature in SPEC_FULL.md.
type WakeOp struct {
	Op, Cmp     uint8
	Oparg, Cmparg uint32
	OpargIsShift bool
}

func DecodeWakeOp(val3 uint32) WakeOp {
	op := uint8((val3 >> 28) & 0xf)
	return WakeOp{
		Op:           op & 0x7,
		Cmp:          uint8((val3 >> 24) & 0xf),
		Oparg:        (val3 >> 12) & 0xfff,
		Cmparg:       val3 & 0xfff,
		OpargIsShift: op&0x8 != 0,
	}
}

// Apply computes the new futex word value given the word's current value,
// per FUTEX_WAKE_OP's op field (0=SET,1=ADD,2=OR,3=ANDN,4=XOR).
func (w WakeOp) Apply(old uint32) uint32 {
	arg := w.Oparg
	if w.OpargIsShift {
		arg = 1 << (arg & 31)
	}
	switch w.Op {
	case 0:
		return arg
	case 1:
		return old + arg
	case 2:
		return old | arg
	case 3:
		return old &^ arg
	case 4:
		return old ^ arg
	default:
		verify.Unreachable("sched: unknown FUTEX_WAKE_OP op %d", w.Op)
		return old
	}
}

// Compare evaluates the wake-op's comparison (0=EQ,1=NE,2=LT,3=LE,4=GT,5=GE)
// between the futex word's prior value and cmparg.
func (w WakeOp) Compare(oldVal uint32) bool {
	switch w.Cmp {
	case 0:
		return oldVal == w.Cmparg
	case 1:
		return oldVal != w.Cmparg
	case 2:
		return oldVal < w.Cmparg
	case 3:
		return oldVal <= w.Cmparg
	case 4:
		return oldVal > w.Cmparg
	case 5:
		return oldVal >= w.Cmparg
	default:
		return false
	}
}

// Run starts one worker goroutine per configured core and blocks until
// ctx is cancelled or every thread has terminated. step is invoked by
// each worker to advance its currently-picked thread by one scheduling
// quantum (executing guest code via the VM contract until it yields,
// blocks, or exits); Run itself only implements thread selection,
// blocking, unblocking, and deadlock detection.
func (s *Scheduler) Run(ctx context.Context, step func(ctx context.Context, t *Thread)) error {
	g, ctx := errgroup.WithContext(ctx)
	go func() {
		// Wake workers parked in cond.Wait so they observe cancellation.
		<-ctx.Done()
		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	for i := 0; i < s.cores; i++ {
		caps := workerCaps{canRunSyscalls: i == 0, canRunAtomics: i == 0}
		g.Go(func() error { return s.worker(ctx, step, caps) })
	}
	return g.Wait()
}

func (s *Scheduler) worker(ctx context.Context, step func(ctx context.Context, t *Thread), caps workerCaps) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		next := s.waitForRunnable(caps)
		if next == nil {
			return nil
		}
		next.ResetTimeSlice(TimeSliceBudget)
		step(ctx, next)

		s.mu.Lock()
		s.finishRun(next)
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// waitForRunnable blocks until a thread caps is allowed to run becomes
// available, every thread has terminated, or the scheduler has been
// stopped by a sibling worker; it returns nil in the latter two cases.
//
// When nothing is runnable but a blocked thread carries a deadline, it
// implements the WAIT command rather than an indefinite cond.Wait: it
// sleeps ~1ms — advancing kernel-time by the same amount, since
// hosttime.Now reads the host's monotonic clock directly — and loops back
// to re-run tryUnblockThreads, so a lone sleeping/timed-out thread is not
// missed for want of another thread's event to broadcast on.
func (s *Scheduler) waitForRunnable(caps workerCaps) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.stopped {
			return nil
		}
		s.tryUnblockThreads()
		if next := s.tryPickNext(caps); next != nil {
			return next
		}
		if s.allThreadsTerminated() {
			s.stopped = true
			s.cond.Broadcast()
			return nil
		}
		if s.hasTimedBlocker() {
			s.mu.Unlock()
			time.Sleep(waitPollInterval)
			s.mu.Lock()
			continue
		}
		verify.That(!s.allBlockedWithoutTimeout(), "sched: deadlock detected: every thread blocked with no pending timeout")
		s.cond.Wait()
	}
}

// hasTimedBlocker reports whether some blocked thread carries a deadline,
// meaning the WAIT command's periodic rescan (rather than an indefinite
// cond.Wait) can make further progress.
func (s *Scheduler) hasTimedBlocker() bool {
	for _, t := range s.threads {
		if t.State() != StateBlocked {
			continue
		}
		if b := t.Blocker(); b != nil && b.HasDeadline {
			return true
		}
	}
	return false
}

func (s *Scheduler) allThreadsTerminated() bool {
	for _, t := range s.threads {
		if t.State() != StateTerminated {
			return false
		}
	}
	return len(s.threads) > 0
}
