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

import "x64emu.dev/emulator/internal/hostbridge"

// TTY wraps a HostFile and reports KindTTY; its ioctl support is
// HostFile.Ioctl, which handles TCGETS only. Nothing in this package
// constructs one: the standard streams are plain HostFiles.
type TTY struct {
	*HostFile
}

func NewTTY(bridge *hostbridge.Bridge, hostFD int, readable, writable bool) *TTY {
	return &TTY{HostFile: NewHostFile(bridge, hostFD, readable, writable)}
}

func (t *TTY) Kind() Kind { return KindTTY }

// NullDevice implements /dev/null semantics: reads report EOF (0 bytes),
// writes discard their input and report success, matching fs.cpp's
// NullDevice node.
type NullDevice struct{}

func NewNullDevice() *NullDevice { return &NullDevice{} }

func (n *NullDevice) Kind() Kind       { return KindNullDevice }
func (n *NullDevice) Readable() bool   { return true }
func (n *NullDevice) Writable() bool   { return true }
func (n *NullDevice) Read(buf []byte, offset int64) (int, Errno)  { return 0, OK }
func (n *NullDevice) Write(buf []byte, offset int64) (int, Errno) { return len(buf), OK }
func (n *NullDevice) Stat() (Stat, Errno) {
	return Stat{Mode: 0o20666, Nlink: 1, Rdev: makedev(1, 3)}, OK
}
func (n *NullDevice) Close() Errno { return OK }
func (n *NullDevice) PollReadiness(requested uint32) uint32 {
	const pollinOut = 0x001 | 0x004
	return requested & pollinOut
}

func makedev(major, minor uint32) uint64 {
	return uint64(minor&0xff) | uint64(major&0xfff)<<8 | uint64(minor&0xfff00)<<12 | uint64(major&0xfffff000)<<32
}

// HostDevice wraps a host device fd (e.g. /dev/urandom). VFS.Open does not
// create one: host-routed paths are always opened as plain HostFiles.
type HostDevice struct {
	*HostFile
}

func NewHostDevice(bridge *hostbridge.Bridge, hostFD int, readable, writable bool) *HostDevice {
	return &HostDevice{HostFile: NewHostFile(bridge, hostFD, readable, writable)}
}

func (d *HostDevice) Kind() Kind { return KindHostDevice }
