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

// ProcEntry is a synthetic, read-only procfs file whose content is
// computed by the supplied render function on the first read or stat and
// cached from then on, mirroring fs.cpp's
// resetProcFS population of /proc/self/*, /proc/<pid>/maps, etc. after
// exactly 3 standard streams are open (stdin/stdout/stderr) and before
// the guest's first instruction runs.
type ProcEntry struct {
	render func() []byte
	cached []byte
}

func NewProcEntry(render func() []byte) *ProcEntry {
	return &ProcEntry{render: render}
}

func (p *ProcEntry) Kind() Kind     { return KindProcfs }
func (p *ProcEntry) Readable() bool { return true }
func (p *ProcEntry) Writable() bool { return false }

func (p *ProcEntry) snapshot() []byte {
	if p.cached == nil {
		p.cached = p.render()
	}
	return p.cached
}

func (p *ProcEntry) Read(buf []byte, offset int64) (int, Errno) {
	data := p.snapshot()
	if offset < 0 || offset >= int64(len(data)) {
		return 0, OK
	}
	return copy(buf, data[offset:]), OK
}

func (p *ProcEntry) Write(buf []byte, offset int64) (int, Errno) { return 0, EBADF }
func (p *ProcEntry) Stat() (Stat, Errno) {
	return Stat{Mode: 0o444, Nlink: 1, Size: int64(len(p.snapshot()))}, OK
}
func (p *ProcEntry) Close() Errno { return OK }
func (p *ProcEntry) PollReadiness(requested uint32) uint32 {
	return requested & 0x001
}

// BuildProcFS constructs the standard /proc/self entries this emulator
// exposes: cmdline, maps, and status, each rendered lazily from the
// supplied accessors. Mounting earlier than 3 open standard streams exist
// is a verify failure in VFS.ResetProcFS, per fs.cpp's assertion.
func BuildProcFS(dir *Directory, cmdline func() []byte, maps func() []byte, status func() []byte) {
	self := NewDirectory("self", dir)
	dir.Insert("self", Node{Dir: self})
	self.Insert("cmdline", Node{Leaf: NewProcEntry(cmdline)})
	self.Insert("maps", Node{Leaf: NewProcEntry(maps)})
	self.Insert("status", Node{Leaf: NewProcEntry(status)})
}
