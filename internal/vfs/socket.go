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

package vfs

import (
	"golang.org/x/sys/unix"

	"x64emu.dev/emulator/internal/hostbridge"
)

// Socket encapsulates a real host socket fd; the socket(2)/connect(2)/
// send/recv family is delegated to the Host Bridge directly rather than
// emulated, matching fs.cpp's socket-family delegation to the host
// network stack.
type Socket struct {
	bridge *hostbridge.Bridge
	hostFD int
}

func NewSocket(bridge *hostbridge.Bridge, hostFD int) *Socket {
	return &Socket{bridge: bridge, hostFD: hostFD}
}

func (s *Socket) Kind() Kind     { return KindSocket }
func (s *Socket) Readable() bool { return true }
func (s *Socket) Writable() bool { return true }

func (s *Socket) Read(buf []byte, offset int64) (int, Errno) {
	n, err := s.bridge.Read(s.hostFD, buf)
	if err != nil {
		return 0, FromError(err)
	}
	return n, OK
}

func (s *Socket) Write(buf []byte, offset int64) (int, Errno) {
	n, err := s.bridge.Write(s.hostFD, buf)
	if err != nil {
		return 0, FromError(err)
	}
	return n, OK
}

func (s *Socket) Stat() (Stat, Errno) {
	return Stat{Mode: 0o140000 | 0o600}, OK
}

func (s *Socket) Close() Errno {
	if err := s.bridge.Close(s.hostFD); err != nil {
		return FromError(err)
	}
	return OK
}

func (s *Socket) PollReadiness(requested uint32) uint32 {
	pfd := []unix.PollFd{{Fd: int32(s.hostFD), Events: int16(requested)}}
	n, err := s.bridge.Poll(pfd, 0)
	if err != nil || n == 0 {
		return 0
	}
	return uint32(pfd[0].Revents)
}

func (s *Socket) HostFD() int { return s.hostFD }
