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
	"testing"

	"x64emu.dev/emulator/internal/hostbridge"
)

func newTestVFS() *VFS {
	return New(hostbridge.New(), "", 1024)
}

func TestOpenCreateWriteRead(t *testing.T) {
	v := newTestVFS()
	f, errno := v.Open(v.Root(), "/tmp/hello.txt", OpenOptions{Flags: hostbridge.OCreat | hostbridge.ORdwr, Mode: 0o644})
	if errno != OK {
		t.Fatalf("open: errno=%d", errno)
	}
	if n, errno := f.Write([]byte("hi"), 0); errno != OK || n != 2 {
		t.Fatalf("write: n=%d errno=%d", n, errno)
	}
	buf := make([]byte, 2)
	if n, errno := f.Read(buf, 0); errno != OK || n != 2 || string(buf) != "hi" {
		t.Fatalf("read: n=%d errno=%d buf=%q", n, errno, buf)
	}
}

func TestOpenExistingWithoutCreatFails(t *testing.T) {
	v := newTestVFS()
	if _, errno := v.Open(v.Root(), "/nope", OpenOptions{Flags: hostbridge.ORdonly}); errno != ENOENT {
		t.Fatalf("want ENOENT, got %d", errno)
	}
}

func TestOpenExclOnExistingFails(t *testing.T) {
	v := newTestVFS()
	if _, errno := v.Open(v.Root(), "/a", OpenOptions{Flags: hostbridge.OCreat | hostbridge.ORdwr, Mode: 0o644}); errno != OK {
		t.Fatalf("first create: errno=%d", errno)
	}
	if _, errno := v.Open(v.Root(), "/a", OpenOptions{Flags: hostbridge.OCreat | hostbridge.OExcl | hostbridge.ORdwr}); errno != EEXIST {
		t.Fatalf("want EEXIST, got %d", errno)
	}
}

func TestMkdirAndGetdents(t *testing.T) {
	v := newTestVFS()
	if errno := v.Mkdir(v.Root(), "/d", 0o755); errno != OK {
		t.Fatalf("mkdir: %d", errno)
	}
	if _, errno := v.Open(v.Root(), "/d/x", OpenOptions{Flags: hostbridge.OCreat | hostbridge.ORdwr}); errno != OK {
		t.Fatalf("create x: %d", errno)
	}
	f, errno := v.Open(v.Root(), "/d", OpenOptions{Flags: hostbridge.ORdonly})
	if errno != OK {
		t.Fatalf("open dir: %d", errno)
	}
	names, errno := v.Getdents64(f)
	if errno != OK || len(names) != 1 || names[0] != "x" {
		t.Fatalf("getdents64: names=%v errno=%d", names, errno)
	}
}

func TestRenameTakeThenAdd(t *testing.T) {
	v := newTestVFS()
	v.Open(v.Root(), "/a", OpenOptions{Flags: hostbridge.OCreat | hostbridge.ORdwr})
	if errno := v.Rename(v.Root(), "/a", "/b"); errno != OK {
		t.Fatalf("rename: %d", errno)
	}
	if _, errno := v.Lookup(v.Root(), ParsePath("/a"), false); errno != ENOENT {
		t.Fatalf("old name should be gone, got errno=%d", errno)
	}
	if _, errno := v.Lookup(v.Root(), ParsePath("/b"), false); errno != OK {
		t.Fatalf("new name should exist, got errno=%d", errno)
	}
}

func TestUnlinkRefusesDirectory(t *testing.T) {
	v := newTestVFS()
	v.Mkdir(v.Root(), "/d", 0o755)
	if _, errno := v.Unlink(v.Root(), "/d"); errno != EISDIR {
		t.Fatalf("want EISDIR, got %d", errno)
	}
}

func TestSymlinkAndReadlink(t *testing.T) {
	v := newTestVFS()
	v.Open(v.Root(), "/target", OpenOptions{Flags: hostbridge.OCreat | hostbridge.ORdwr})
	if errno := v.Symlink(v.Root(), "/target", "/link"); errno != OK {
		t.Fatalf("symlink: %d", errno)
	}
	target, errno := v.Readlink(v.Root(), "/link")
	if errno != OK || target != "/target" {
		t.Fatalf("readlink: target=%q errno=%d", target, errno)
	}
}

func TestFDTableDupSharesOFD(t *testing.T) {
	table := NewFDTable()
	f := NewRegularFile(0o644, true, true)
	ofd := NewOFD(f, 0)
	fd := table.Install(ofd, false)
	dupFD, ok := table.Dup(fd)
	if !ok {
		t.Fatal("dup failed")
	}
	ofd.AdvanceAndReturn(5)
	got, _ := table.Get(dupFD)
	if got.Offset() != 5 {
		t.Fatalf("dup'd fd should share offset, got %d", got.Offset())
	}
}

func TestFDTableAllocationIsMaxPlusOne(t *testing.T) {
	table := NewFDTable()
	f := NewRegularFile(0o644, true, true)
	fd0 := table.Install(NewOFD(f, 0), false)
	fd1 := table.Install(NewOFD(f, 0), false)
	table.Remove(fd0)
	fd2 := table.Install(NewOFD(f, 0), false)
	if fd2 <= fd1 {
		t.Fatalf("expected fd2 > fd1 (no slot reuse), got fd0=%d fd1=%d fd2=%d", fd0, fd1, fd2)
	}
}

func TestPipeReadWrite(t *testing.T) {
	v := newTestVFS()
	r, w := v.Pipe2()
	if n, errno := w.Write([]byte("x"), 0); errno != OK || n != 1 {
		t.Fatalf("write: n=%d errno=%d", n, errno)
	}
	buf := make([]byte, 1)
	if n, errno := r.Read(buf, 0); errno != OK || n != 1 || buf[0] != 'x' {
		t.Fatalf("read: n=%d errno=%d buf=%v", n, errno, buf)
	}
}

func TestEpollCtlReadiness(t *testing.T) {
	ep := NewEpoll()
	p := NewPipe()
	pw := NewPipeWriteEnd(p)
	pr := NewPipeReadEnd(p)
	const pollin = 0x001
	if errno := ep.Ctl(EpollCtlAdd, 5, pr, EpollEvent{Events: pollin, Data: 42}); errno != OK {
		t.Fatalf("ctl add: %d", errno)
	}
	if ready := ep.Ready(); len(ready) != 0 {
		t.Fatalf("expected no ready events before write, got %v", ready)
	}
	pw.Write([]byte("z"), 0)
	ready := ep.Ready()
	if len(ready) != 1 || ready[0].Data != 42 {
		t.Fatalf("expected one ready event with data=42, got %v", ready)
	}
}

func TestDirCacheServesRepeatedLookupAndInvalidatesOnMutation(t *testing.T) {
	v := newTestVFS()
	if errno := v.Mkdir(v.Root(), "/a", 0o755); errno != OK {
		t.Fatalf("mkdir /a: %d", errno)
	}
	if errno := v.Mkdir(v.Root(), "/a/b", 0o755); errno != OK {
		t.Fatalf("mkdir /a/b: %d", errno)
	}

	p := ParsePath("/a/b/file.txt")
	dir, errno := v.resolveDir(v.Root(), p, false)
	if errno != OK {
		t.Fatalf("resolveDir: %d", errno)
	}
	if v.dirCache.Len() == 0 {
		t.Fatalf("expected resolveDir to populate dirCache")
	}

	// A second resolution of the same absolute path must hit the cache and
	// return the identical *Directory.
	dir2, errno := v.resolveDir(v.Root(), p, false)
	if errno != OK || dir2 != dir {
		t.Fatalf("expected cached resolveDir to return same *Directory, got %v (errno %d)", dir2, errno)
	}

	if errno := v.Rmdir(v.Root(), "/a/b"); errno != OK {
		t.Fatalf("rmdir /a/b: %d", errno)
	}
	if v.dirCache.Len() != 0 {
		t.Fatalf("expected rmdir to invalidate dirCache, len=%d", v.dirCache.Len())
	}
}

func TestEventfdSemaphoreMode(t *testing.T) {
	e := NewEventfd(3, true, true)
	buf := make([]byte, 8)
	n, errno := e.Read(buf, 0)
	if errno != OK || n != 8 {
		t.Fatalf("read: n=%d errno=%d", n, errno)
	}
	if buf[0] != 1 {
		t.Fatalf("semaphore mode should return 1, got %d", buf[0])
	}
}
