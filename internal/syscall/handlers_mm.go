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
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/vfs"
)

func init() {
	register(SysMmap, sysMmap)
	register(SysMprotect, sysMprotect)
	register(SysMunmap, sysMunmap)
	register(SysBrk, sysBrk)
	register(SysMincore, sysMincore)
}

func sysMmap(env *Env, a Args) Result {
	prot := mmu.Prot(uint32(a.A2))
	flags := uint32(a.A3)
	fd := int32(int64(a.A4))
	addr, err := env.MMU.Mmap(a.A0, a.A1, prot, flags, fd, a.A5)
	if err != nil {
		return Result{Errno: vfs.ENOMEM}
	}
	return Result{Value: int64(addr)}
}

func sysMprotect(env *Env, a Args) Result {
	if err := env.MMU.Mprotect(a.A0, a.A1, mmu.Prot(uint32(a.A2))); err != nil {
		return Result{Errno: vfs.ENOMEM}
	}
	return Result{Value: 0}
}

func sysMunmap(env *Env, a Args) Result {
	if err := env.MMU.Munmap(a.A0, a.A1); err != nil {
		return Result{Errno: vfs.EINVAL}
	}
	return Result{Value: 0}
}

func sysBrk(env *Env, a Args) Result {
	newBrk, err := env.MMU.Brk(a.A0)
	if err != nil {
		return Result{Errno: vfs.ENOMEM}
	}
	return Result{Value: int64(newBrk)}
}

func sysMincore(env *Env, a Args) Result {
	resident, err := env.MMU.Mincore(a.A0, a.A1)
	if err != nil {
		return Result{Errno: vfs.ENOMEM}
	}
	buf := make([]byte, len(resident))
	for i, r := range resident {
		if r {
			buf[i] = 1
		}
	}
	if err := env.MMU.CopyToMMU(a.A2, buf); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	return Result{Value: 0}
}
