// Copyright (C) 2024 Haystack VLBI Software Group.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

//go:build linux
// +build linux

package mmapregion

import (
	"os"

	"golang.org/x/sys/unix"
)

type linuxPlatform struct{}

func defaultPlatform() platform { return linuxPlatform{} }

func (linuxPlatform) mmap(f *os.File, size int64, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
}

// mremap grows an existing mapping in place where possible, or
// relocates it (MREMAP_MAYMOVE) when the kernel cannot extend it
// without moving it. Either way, the contents of old up to
// len(old) are preserved in the returned mapping, per the design's
// "mremap-equivalent" requirement.
func (linuxPlatform) mremap(f *os.File, old []byte, newSize int64) ([]byte, error) {
	return unix.Mremap(old, int(newSize), unix.MREMAP_MAYMOVE)
}

func (linuxPlatform) munmap(f *os.File, mem []byte, writable bool) error {
	return unix.Munmap(mem)
}
