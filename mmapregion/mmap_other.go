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

//go:build !linux
// +build !linux

package mmapregion

import (
	"io"
	"os"
)

// otherPlatform emulates a growable mapping on platforms without
// mremap by keeping the region in an ordinary heap buffer and
// flushing it back to the file whenever the mapping is grown,
// finalized, or closed. This is the same strategy tenant/dcache uses
// for its non-linux fallback: "unmap and remap, preserving contents
// up to the old size" (see design note §9).
type otherPlatform struct{}

func defaultPlatform() platform { return otherPlatform{} }

func (otherPlatform) mmap(f *os.File, size int64, writable bool) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (otherPlatform) mremap(f *os.File, old []byte, newSize int64) ([]byte, error) {
	if err := flush(f, old); err != nil {
		return nil, err
	}
	grown := make([]byte, newSize)
	copy(grown, old)
	return grown, nil
}

func (otherPlatform) munmap(f *os.File, mem []byte, writable bool) error {
	if len(mem) == 0 || !writable {
		return nil
	}
	return flush(f, mem)
}

func flush(f *os.File, mem []byte) error {
	_, err := f.WriteAt(mem, 0)
	return err
}
