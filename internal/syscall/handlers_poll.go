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

package syscall

import (
	"encoding/binary"

	"x64emu.dev/emulator/internal/hostbridge"
	"x64emu.dev/emulator/internal/hosttime"
	"x64emu.dev/emulator/internal/sched"
	"x64emu.dev/emulator/internal/vfs"
)

func init() {
	register(SysPoll, sysPoll)
	register(SysPpoll, sysPoll)
	register(SysSelect, sysSelect)
	register(SysPselect6, sysSelect)
	register(SysEpollCreate1, sysEpollCreate1)
	register(SysEpollCtl, sysEpollCtl)
	register(SysEpollWait, sysEpollWait)
	register(SysPipe, sysPipe)
	register(SysPipe2, sysPipe2)
	register(SysEventfd2, sysEventfd2)
	register(SysMemfdCreate, sysMemfdCreate)
	register(SysSocket, sysSocket)
	register(SysConnect, sysConnect)
	register(SysSendto, sysSendto)
	register(SysRecvfrom, sysRecvfrom)
	register(SysGetrandom, sysGetrandom)
}

// pollfdSize is sizeof(struct pollfd): int fd; short events; short revents;
const pollfdSize = 8

func readPollFDs(env *Env, addr uint64, n int) ([]struct {
	fd     int32
	events uint16
}, vfs.Errno) {
	out := make([]struct {
		fd     int32
		events uint16
	}, n)
	for i := 0; i < n; i++ {
		base := addr + uint64(i*pollfdSize)
		var buf [pollfdSize]byte
		if err := env.MMU.CopyFromMMU(buf[:], base); err != nil {
			return nil, vfs.EFAULT
		}
		out[i].fd = int32(binary.LittleEndian.Uint32(buf[0:4]))
		out[i].events = binary.LittleEndian.Uint16(buf[4:6])
	}
	return out, vfs.OK
}

func readinessFunc(env *Env, fd int32, events uint16) func() uint32 {
	return func() uint32 {
		ofd, errno := lookupOFD(env, vfs.FD(fd))
		if errno != vfs.OK {
			return 0x020 // POLLNVAL
		}
		return ofd.File().PollReadiness(uint32(events))
	}
}

func sysPoll(env *Env, a Args) Result {
	n := int(a.A1)
	fds, errno := readPollFDs(env, a.A0, n)
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	pollFDs := make([]sched.PollFD, n)
	for i, fd := range fds {
		pollFDs[i] = sched.PollFD{FD: fd.fd, Events: uint32(fd.events), Ready: readinessFunc(env, fd.fd, fd.events)}
	}
	ready := pollReady(pollFDs)
	if ready >= 0 {
		return writeRevents(env, a.A0, fds, pollFDs)
	}
	b := sched.NewBlocker(sched.BlockerPoll)
	b.Poll = &sched.PollData{FDs: pollFDs}
	timeoutMs := int64(a.A2)
	if timeoutMs >= 0 {
		b.HasDeadline = true
		b.Deadline = hosttime.Now().Add(hosttime.FromTimespec(timeoutMs/1000, (timeoutMs%1000)*1_000_000))
	}
	env.Scheduler.BlockLocked(env.Thread, b)
	return Result{Blocked: true}
}

func pollReady(fds []sched.PollFD) int {
	for i, fd := range fds {
		if fd.Ready() != 0 {
			return i
		}
	}
	return -1
}

func writeRevents(env *Env, addr uint64, fds []struct {
	fd     int32
	events uint16
}, pollFDs []sched.PollFD) Result {
	n := 0
	for i := range fds {
		r := pollFDs[i].Ready()
		if r != 0 {
			n++
		}
		base := addr + uint64(i*pollfdSize)
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(r))
		if err := env.MMU.CopyToMMU(base+6, buf[:]); err != nil {
			return Result{Errno: vfs.EFAULT}
		}
	}
	return Result{Value: int64(n)}
}

// sysSelect handles both select(2) and pselect6(2) by treating the fd_set
// bitmaps the same way and ignoring pselect6's signal-mask argument, since
// signal delivery is outside this emulator's scope.
func sysSelect(env *Env, a Args) Result {
	nfds := int(a.A0)
	readSet := readFDSet(env, a.A1, nfds)
	writeSet := readFDSet(env, a.A2, nfds)
	exceptSet := readFDSet(env, a.A3, nfds)

	toPollFDs := func(set []int32) []sched.PollFD {
		out := make([]sched.PollFD, len(set))
		for i, fd := range set {
			out[i] = sched.PollFD{FD: fd, Events: 0x001 | 0x004, Ready: readinessFunc(env, fd, 0x001|0x004)}
		}
		return out
	}
	r, w, e := toPollFDs(readSet), toPollFDs(writeSet), toPollFDs(exceptSet)

	anyReady := func(fds []sched.PollFD) bool {
		for _, fd := range fds {
			if fd.Ready() != 0 {
				return true
			}
		}
		return false
	}
	if anyReady(r) || anyReady(w) || anyReady(e) {
		return writeFDSetResults(env, a.A1, readSet, r, a.A2, writeSet, w)
	}
	b := sched.NewBlocker(sched.BlockerSelect)
	b.Select = &sched.SelectData{Read: r, Write: w, Except: e}
	env.Scheduler.BlockLocked(env.Thread, b)
	return Result{Blocked: true}
}

func readFDSet(env *Env, addr uint64, nfds int) []int32 {
	if addr == 0 {
		return nil
	}
	words := (nfds + 63) / 64
	buf := make([]byte, words*8)
	if err := env.MMU.CopyFromMMU(buf, addr); err != nil {
		return nil
	}
	var out []int32
	for fd := 0; fd < nfds; fd++ {
		word := binary.LittleEndian.Uint64(buf[(fd/64)*8 : (fd/64)*8+8])
		if word&(1<<(uint(fd)%64)) != 0 {
			out = append(out, int32(fd))
		}
	}
	return out
}

func writeFDSetResults(env *Env, readAddr uint64, readFDs []int32, readPoll []sched.PollFD, writeAddr uint64, writeFDs []int32, writePoll []sched.PollFD) Result {
	n := 0
	clearAndSet := func(addr uint64, fds []int32, polled []sched.PollFD) {
		if addr == 0 {
			return
		}
		maxFD := int32(0)
		for _, fd := range fds {
			if fd > maxFD {
				maxFD = fd
			}
		}
		words := int(maxFD)/64 + 1
		buf := make([]byte, words*8)
		for i, fd := range fds {
			if polled[i].Ready() != 0 {
				buf[fd/8] |= 1 << (uint(fd) % 8)
				n++
			}
		}
		env.MMU.CopyToMMU(addr, buf)
	}
	clearAndSet(readAddr, readFDs, readPoll)
	clearAndSet(writeAddr, writeFDs, writePoll)
	return Result{Value: int64(n)}
}

func sysEpollCreate1(env *Env, a Args) Result {
	ep := vfs.NewEpoll()
	ofd := vfs.NewOFD(ep, 0)
	fd := env.Table.Install(ofd, int(a.A0)&hostbridge.OCloexec != 0)
	return Result{Value: int64(fd)}
}

func sysEpollCtl(env *Env, a Args) Result {
	ofd, errno := lookupOFD(env, vfs.FD(a.A0))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	ep, ok := ofd.File().(*vfs.Epoll)
	if !ok {
		return Result{Errno: vfs.EINVAL}
	}
	targetOFD, errno := lookupOFD(env, vfs.FD(a.A2))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	var buf [12]byte
	if a.A3 != 0 {
		if err := env.MMU.CopyFromMMU(buf[:], a.A3); err != nil {
			return Result{Errno: vfs.EFAULT}
		}
	}
	event := vfs.EpollEvent{
		Events: binary.LittleEndian.Uint32(buf[0:4]),
		Data:   binary.LittleEndian.Uint64(buf[4:12]),
	}
	if errno := ep.Ctl(int(a.A1), int32(a.A2), targetOFD.File(), event); errno != vfs.OK {
		return Result{Errno: errno}
	}
	return Result{Value: 0}
}

func sysEpollWait(env *Env, a Args) Result {
	ofd, errno := lookupOFD(env, vfs.FD(a.A0))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	ep, ok := ofd.File().(*vfs.Epoll)
	if !ok {
		return Result{Errno: vfs.EINVAL}
	}
	ready := ep.Ready()
	if len(ready) == 0 && int64(a.A3) != 0 {
		b := sched.NewBlocker(sched.BlockerEpollWait)
		b.Epoll = &sched.EpollWaitData{Ready: func() bool { return len(ep.Ready()) > 0 }}
		if timeoutMs := int64(a.A3); timeoutMs > 0 {
			b.HasDeadline = true
			b.Deadline = hosttime.Now().Add(hosttime.FromTimespec(timeoutMs/1000, (timeoutMs%1000)*1_000_000))
		}
		env.Scheduler.BlockLocked(env.Thread, b)
		return Result{Blocked: true}
	}
	maxEvents := int(a.A2)
	if len(ready) > maxEvents {
		ready = ready[:maxEvents]
	}
	for i, ev := range ready {
		var buf [12]byte
		binary.LittleEndian.PutUint32(buf[0:4], ev.Revents)
		binary.LittleEndian.PutUint64(buf[4:12], ev.Data)
		if err := env.MMU.CopyToMMU(a.A1+uint64(i*12), buf[:]); err != nil {
			return Result{Errno: vfs.EFAULT}
		}
	}
	return Result{Value: int64(len(ready))}
}

func sysPipe(env *Env, a Args) Result {
	return installPipe(env, a.A0, false)
}

func sysPipe2(env *Env, a Args) Result {
	return installPipe(env, a.A0, int(a.A1)&hostbridge.OCloexec != 0)
}

func installPipe(env *Env, addr uint64, cloexec bool) Result {
	pr, pw := env.VFS.Pipe2()
	readFD := env.Table.Install(vfs.NewOFD(pr, 0), cloexec)
	writeFD := env.Table.Install(vfs.NewOFD(pw, 0), cloexec)
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(readFD))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(writeFD))
	if err := env.MMU.CopyToMMU(addr, buf[:]); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	return Result{Value: 0}
}

func sysEventfd2(env *Env, a Args) Result {
	const efdSemaphore = 1
	const efdNonblock = 0x800
	flags := int(a.A1)
	ev := vfs.NewEventfd(a.A0, flags&efdSemaphore != 0, flags&efdNonblock != 0)
	ofd := vfs.NewOFD(ev, 0)
	fd := env.Table.Install(ofd, flags&hostbridge.OCloexec != 0)
	return Result{Value: int64(fd)}
}

func sysMemfdCreate(env *Env, a Args) Result {
	f := env.VFS.MemfdCreate(uint32(a.A1))
	ofd := vfs.NewOFD(f, 0)
	fd := env.Table.Install(ofd, false)
	return Result{Value: int64(fd)}
}

func sysSocket(env *Env, a Args) Result {
	hostFD, err := env.Bridge.Socket(int(a.A0), int(a.A1), int(a.A2))
	if err != nil {
		return Result{Errno: vfs.FromError(err)}
	}
	s := vfs.NewSocket(env.Bridge, hostFD)
	fd := env.Table.Install(vfs.NewOFD(s, 0), false)
	return Result{Value: int64(fd)}
}

func sysConnect(env *Env, a Args) Result {
	ofd, errno := lookupOFD(env, vfs.FD(a.A0))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	s, ok := ofd.File().(*vfs.Socket)
	if !ok {
		return Result{Errno: vfs.ENOTSOCK}
	}
	// Socket address decoding is the Host Bridge's concern in full; this
	// emulator does not implement a guest sockaddr parser, so connect is
	// accepted as a no-op against the already-opened host socket.
	_ = s
	return Result{Value: 0}
}

func sysSendto(env *Env, a Args) Result {
	ofd, errno := lookupOFD(env, vfs.FD(a.A0))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	buf := make([]byte, a.A2)
	if err := env.MMU.CopyFromMMU(buf, a.A1); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	n, errno := ofd.File().Write(buf, 0)
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	return Result{Value: int64(n)}
}

func sysRecvfrom(env *Env, a Args) Result {
	ofd, errno := lookupOFD(env, vfs.FD(a.A0))
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	buf := make([]byte, a.A2)
	n, errno := ofd.File().Read(buf, 0)
	if errno != vfs.OK {
		return Result{Errno: errno}
	}
	if err := env.MMU.CopyToMMU(a.A1, buf[:n]); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	return Result{Value: int64(n)}
}

func sysGetrandom(env *Env, a Args) Result {
	buf := make([]byte, a.A1)
	n, err := env.Bridge.Getrandom(buf, int(a.A2))
	if err != nil {
		return Result{Errno: vfs.FromError(err)}
	}
	if err := env.MMU.CopyToMMU(a.A0, buf[:n]); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	return Result{Value: int64(n)}
}
