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
	"sync/atomic"
	"testing"
	"time"

	"x64emu.dev/emulator/internal/hosttime"
)

func TestTryPickNextPrefersKernelRing(t *testing.T) {
	s := New(1)
	normal := NewThread(1, RingNormalUserspace)
	kernel := NewThread(2, RingKernel)
	s.AddThread(normal)
	s.AddThread(kernel)

	s.mu.Lock()
	got := s.tryPickNext(workerCaps{canRunSyscalls: true, canRunAtomics: true})
	s.mu.Unlock()
	if got != kernel {
		t.Fatalf("expected kernel-ring thread selected first")
	}
}

func TestTryPickNextNeverReturnsSameThreadTwice(t *testing.T) {
	s := New(2)
	th := NewThread(1, RingNormalUserspace)
	s.AddThread(th)

	caps := workerCaps{}
	s.mu.Lock()
	first := s.tryPickNext(caps)
	second := s.tryPickNext(caps)
	s.mu.Unlock()
	if first != th {
		t.Fatalf("expected the only runnable thread to be picked first")
	}
	if second != nil {
		t.Fatalf("expected a thread already marked Running not to be picked again, got %v", second)
	}
}

func TestTryPickNextExcludesUserspaceWhileKernelRunning(t *testing.T) {
	s := New(2)
	kernel := NewThread(1, RingKernel)
	normal := NewThread(2, RingNormalUserspace)
	s.AddThread(kernel)
	s.AddThread(normal)

	s.mu.Lock()
	pickedKernel := s.tryPickNext(workerCaps{canRunSyscalls: true, canRunAtomics: true})
	pickedNormal := s.tryPickNext(workerCaps{})
	s.mu.Unlock()
	if pickedKernel != kernel {
		t.Fatalf("expected kernel-capable worker to claim the kernel thread")
	}
	if pickedNormal != nil {
		t.Fatalf("expected normal-userspace worker blocked while a kernel job is running, got %v", pickedNormal)
	}
}

func TestWorkerCapabilitiesRestrictRingSelection(t *testing.T) {
	s := New(1)
	kernel := NewThread(1, RingKernel)
	s.AddThread(kernel)

	s.mu.Lock()
	got := s.tryPickNext(workerCaps{})
	s.mu.Unlock()
	if got != nil {
		t.Fatalf("expected a worker without canRunSyscalls to never pick a KERNEL-ring thread, got %v", got)
	}
}

func TestBlockAndUnblockViaDeadline(t *testing.T) {
	s := New(1)
	th := NewThread(1, RingNormalUserspace)
	s.AddThread(th)

	b := NewBlocker(BlockerSleep)
	b.HasDeadline = true
	b.Deadline = hosttime.Now() - 1 // already elapsed
	s.Block(th, b)

	s.mu.Lock()
	unblockedAny := s.tryUnblockThreads()
	s.mu.Unlock()
	if !unblockedAny {
		t.Fatal("expected elapsed deadline to unblock thread")
	}
	if th.State() != StateRunnable {
		t.Fatalf("expected runnable, got %v", th.State())
	}
}

func TestDeadlockDetection(t *testing.T) {
	s := New(1)
	th := NewThread(1, RingNormalUserspace)
	s.AddThread(th)
	b := NewBlocker(BlockerFutex)
	b.Futex = &FutexData{
		ExpectedVal: 1,
		Load:        func() (uint32, error) { return 1, nil }, // never changes: no wake
	}
	s.Block(th, b)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected deadlock panic")
		}
	}()
	s.waitForRunnable(workerCaps{})
}

func TestWaitForRunnableRescansTimedBlockerWithoutAnotherEvent(t *testing.T) {
	s := New(1)
	th := NewThread(1, RingNormalUserspace)
	s.AddThread(th)

	b := NewBlocker(BlockerSleep)
	b.Sleep = &SleepData{}
	b.HasDeadline = true
	b.Deadline = hosttime.Now().Add(hosttime.FromDuration(5 * time.Millisecond))
	s.Block(th, b)

	got := s.waitForRunnable(workerCaps{})
	if got != th {
		t.Fatalf("expected the lone sleeping thread to become runnable once its deadline passed, got %v", got)
	}
}

func TestRunTerminatesWhenAllThreadsExit(t *testing.T) {
	s := New(2)
	a := NewThread(1, RingNormalUserspace)
	b := NewThread(2, RingNormalUserspace)
	s.AddThread(a)
	s.AddThread(b)

	err := s.Run(context.Background(), func(ctx context.Context, th *Thread) {
		s.Terminate(th)
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

// TestRunNeverOverlapsTwoWorkersOnSameThread spawns many cores against a
// single runnable thread whose step function records overlap via an
// in-flight counter; before StateRunning existed, two idle workers could
// both pick the same StateRunnable thread out of tryPickNext and run step
// concurrently.
func TestRunNeverOverlapsTwoWorkersOnSameThread(t *testing.T) {
	s := New(8)
	th := NewThread(1, RingNormalUserspace)
	s.AddThread(th)

	var inFlight int32
	var overlapped int32
	var iterations int32

	err := s.Run(context.Background(), func(ctx context.Context, got *Thread) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		if atomic.AddInt32(&iterations, 1) >= 20 {
			s.Terminate(got)
		}
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if atomic.LoadInt32(&overlapped) != 0 {
		t.Fatal("two workers ran the same thread's step concurrently")
	}
}

func TestDecodeWakeOpAndApply(t *testing.T) {
	// op=ADD(1), cmp=EQ(0), oparg=5, cmparg=0 packed into val3.
	val3 := uint32(1)<<28 | uint32(0)<<24 | uint32(5)<<12 | uint32(0)
	w := DecodeWakeOp(val3)
	if w.Op != 1 || w.Oparg != 5 {
		t.Fatalf("decode mismatch: %+v", w)
	}
	if got := w.Apply(10); got != 15 {
		t.Fatalf("apply ADD: got %d want 15", got)
	}
	if !w.Compare(0) {
		t.Fatalf("compare EQ 0 should hold on prior value 0")
	}
}
