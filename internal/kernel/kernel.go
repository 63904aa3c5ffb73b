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

// Package kernel wires the Scheduler, VFS, Syscall Layer and the external
// MMU/VM contracts into a single process-level object, the way
// cmd/pk-mount wires pkg/fs to a blobserver.Storage and a FUSE
// connection — one object that owns construction order and the run loop,
// leaving each subsystem free of the others' lifecycle concerns.
package kernel

import (
	"context"
	"sync"

	"x64emu.dev/emulator/internal/config"
	"x64emu.dev/emulator/internal/elog"
	"x64emu.dev/emulator/internal/hostbridge"
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/profiling"
	"x64emu.dev/emulator/internal/sched"
	syscalllayer "x64emu.dev/emulator/internal/syscall"
	"x64emu.dev/emulator/internal/vfs"
	"x64emu.dev/emulator/internal/vm"
)

var log = elog.New("kernel")

// Process owns one guest run: its VFS, FD table, scheduler, and the VM
// that actually decodes and executes guest instructions. Multiple Threads
// registered on the Scheduler share this single Process's VFS/FD table,
// modeling CLONE_VM|CLONE_THREAD pthreads rather than independent address
// spaces.
type Process struct {
	cfg       config.Process
	mmu       mmu.MMU
	vfsys     *vfs.VFS
	table     *vfs.FDTable
	scheduler *sched.Scheduler
	bridge    *hostbridge.Bridge
	vm        vm.VM
	profile   *profiling.Store // nil unless cfg.EnableProfile

	mu      sync.Mutex
	pending map[int32]syscalllayer.Args // thread ID -> syscall awaiting retry after unblock
}

// New constructs a Process from validated configuration, an MMU instance
// (normally the real decoder/JIT-backed one; FlatMMU in tests), and a VM
// implementation (NullVM for syscall-layer-only testing).
func New(cfg config.Process, m mmu.MMU, v vm.VM) *Process {
	bridge := hostbridge.New()
	vfsys := vfs.New(bridge, cfg.HostRoot, cfg.MaxOpenFiles)
	table := vfs.NewFDTable()
	vfsys.InitStandardStreams(table)

	p := &Process{
		cfg:       cfg,
		mmu:       m,
		vfsys:     vfsys,
		table:     table,
		scheduler: sched.New(cfg.Cores),
		bridge:    bridge,
		vm:        v,
		pending:   make(map[int32]syscalllayer.Args),
	}
	p.vm.SetEnableJIT(cfg.EnableJIT)
	if cfg.EnableProfile {
		store, err := profiling.Open(cfg.ProfileDir)
		if err != nil {
			log.Printf("profiling: failed to open store at %q, continuing without spill: %v", cfg.ProfileDir, err)
		} else {
			p.profile = store
		}
	}
	return p
}

// Close releases resources the Process opened (currently just an optional
// profiling spill store); safe to call even when profiling was never
// enabled.
func (p *Process) Close() error {
	if p.profile == nil {
		return nil
	}
	return p.profile.Close()
}

// spillThreadProfile persists t's in-memory profiling ring to the spill
// store, if one is configured, so a terminated thread's trace survives
// past the ring buffer being reused by a later thread with the same slot.
func (p *Process) spillThreadProfile(t *sched.Thread) {
	if p.profile == nil {
		return
	}
	for _, ev := range t.ProfileSnapshot() {
		if err := p.profile.Append(t.ID, ev); err != nil {
			log.Printf("thread %d: profiling spill failed: %v", t.ID, err)
			return
		}
	}
}

// SpawnMainThread registers the guest's initial thread in the kernel ring.
// A Thread's Ring is fixed when it is created; nothing in this package or
// internal/sched moves the main thread to a userspace ring afterwards.
func (p *Process) SpawnMainThread(tid int32) *sched.Thread {
	t := sched.NewThread(tid, sched.RingKernel)
	p.scheduler.AddThread(t)
	return t
}

// Run drives every registered thread to completion (or ctx cancellation),
// dispatching syscalls as threads hit them and retrying blocked syscalls
// once the scheduler's deadline/readiness scan makes the thread runnable
// again.
func (p *Process) Run(ctx context.Context) error {
	return p.scheduler.Run(ctx, p.step)
}

func (p *Process) step(ctx context.Context, t *sched.Thread) {
	if a, ok := p.takePending(t.ID); ok {
		p.dispatch(t, a)
		return
	}

	reason, err := p.vm.Execute(ctx, t)
	if err != nil {
		log.Printf("thread %d: VM execute error: %v", t.ID, err)
		p.spillThreadProfile(t)
		p.scheduler.Terminate(t)
		return
	}
	switch reason {
	case vm.StopSyscall:
		p.dispatch(t, syscalllayer.ArgsFromRegisters(t.RegisterFile()))
	case vm.StopExited, vm.StopFault:
		p.spillThreadProfile(t)
		p.scheduler.Terminate(t)
	case vm.StopTimeSliceExpired:
		// Nothing to do: the thread stays runnable and the scheduler will
		// pick it (or a higher-priority peer) again on the next iteration.
	}
}

// dispatch runs one syscall to completion. The entire handler call is made
// under RunSyscall, so the scheduler's job lock is held for the syscall's
// whole duration — no other worker can pick, block, unblock or terminate
// any thread while this is in flight, matching a kernel job's mutual-
// exclusion guarantee.
func (p *Process) dispatch(t *sched.Thread, a syscalllayer.Args) {
	env := &syscalllayer.Env{
		MMU:       p.mmu,
		VFS:       p.vfsys,
		Table:     p.table,
		Scheduler: p.scheduler,
		Bridge:    p.bridge,
		Thread:    t,
		Cwd:       p.vfsys.Root(),
	}
	var res syscalllayer.Result
	p.scheduler.RunSyscall(func() {
		res = syscalllayer.Dispatch(env, a)
	})
	if res.Blocked {
		p.setPending(t.ID, a)
		return
	}
	syscalllayer.EncodeResult(t.RegisterFile(), res.Value, res.Errno)
}

func (p *Process) takePending(tid int32) (syscalllayer.Args, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.pending[tid]
	if ok {
		delete(p.pending, tid)
	}
	return a, ok
}

func (p *Process) setPending(tid int32, a syscalllayer.Args) {
	p.mu.Lock()
	p.pending[tid] = a
	p.mu.Unlock()
}

// VFS exposes the process's filesystem for callers that need to seed
// files before the guest starts running (e.g. writing argv/envp pages, or
// installing a procfs snapshot).
func (p *Process) VFS() *vfs.VFS { return p.vfsys }

// FDTable exposes the process's shared file descriptor table.
func (p *Process) FDTable() *vfs.FDTable { return p.table }
