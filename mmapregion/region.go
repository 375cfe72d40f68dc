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

// Package mmapregion implements the growable memory-mapped backing
// store used by write-mode SG shards, and the read-only mapping used
// by read-mode shards.
//
// Grow extends the file and the mapping to exactly the size the
// caller asks for; the fixed-increment growth policy is chosen by the
// caller (sgfile.Writer). Old contents are always preserved up
// to the previous mapped length, whether the mapping grows in place
// or is logically relocated (mremap(MREMAP_MAYMOVE) on linux; unmap
// + remap elsewhere, per the design notes in §9 of the spec this
// module implements).
package mmapregion

import (
	"fmt"
	"os"
)

// platform is the per-OS backend. linux implements it with
// syscalls (mmap/mremap/munmap); other platforms fall back to a
// plain in-memory buffer that is flushed to the file on grow/close,
// mirroring tenant/dcache's build-tagged fallback in the module this
// was adapted from.
type platform interface {
	mmap(f *os.File, size int64, writable bool) ([]byte, error)
	mremap(f *os.File, old []byte, newSize int64) ([]byte, error)
	munmap(f *os.File, mem []byte, writable bool) error
}

var backend platform = defaultPlatform()

// Region is a single growable (or fixed, read-only) memory mapping
// over a backing file.
type Region struct {
	f        *os.File
	mem      []byte
	writable bool
	// size is the logical mapped length: the length last set by
	// Create, Grow or Finalize.
	size int64
}

// Create truncates/creates the file at path with the given
// permissions and maps an initial region of `initial` bytes for
// read-write access. initial must be > 0.
func Create(path string, perm os.FileMode, initial int64) (*Region, error) {
	if initial <= 0 {
		return nil, fmt.Errorf("mmapregion: initial size must be positive, got %d", initial)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(initial); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mmapregion: ftruncate %s: %w", path, err)
	}
	mem, err := backend.mmap(f, initial, true)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mmapregion: mmap %s: %w", path, err)
	}
	return &Region{f: f, mem: mem, writable: true, size: initial}, nil
}

// OpenReadOnly maps the entirety of the existing file at path for
// read-only access. It is used by read-mode shards, which never grow
// their mapping.
func OpenReadOnly(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	var mem []byte
	if size > 0 {
		mem, err = backend.mmap(f, size, false)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmapregion: mmap %s: %w", path, err)
		}
	}
	return &Region{f: f, mem: mem, writable: false, size: size}, nil
}

// Bytes returns the currently mapped region. The returned slice is
// only valid until the next call to Grow, Finalize, or Close.
func (r *Region) Bytes() []byte { return r.mem }

// Size returns the current mapped length.
func (r *Region) Size() int64 { return r.size }

// Path returns the path of the underlying file.
func (r *Region) Path() string { return r.f.Name() }

// Grow extends the mapping (and backing file) so that it covers at
// least newSize bytes. If the region is already at least that large,
// Grow is a no-op. Old contents are preserved up to the previous
// mapped length.
func (r *Region) Grow(newSize int64) error {
	if !r.writable {
		return fmt.Errorf("mmapregion: cannot grow a read-only region")
	}
	if newSize <= r.size {
		return nil
	}
	if err := r.f.Truncate(newSize); err != nil {
		return fmt.Errorf("mmapregion: ftruncate %s to %d: %w", r.f.Name(), newSize, err)
	}
	mem, err := backend.mremap(r.f, r.mem, newSize)
	if err != nil {
		return fmt.Errorf("mmapregion: mremap %s to %d: %w", r.f.Name(), newSize, err)
	}
	r.mem = mem
	r.size = newSize
	return nil
}

// Finalize truncates the mapping (and backing file) to exactly
// `exact` bytes, unmapping first so that the truncate is not fighting
// a live mapping larger than the new size. It is used on close to
// shrink a write region down to the true number of bytes written.
func (r *Region) Finalize(exact int64) error {
	if err := r.unmap(); err != nil {
		return err
	}
	if err := r.f.Truncate(exact); err != nil {
		return fmt.Errorf("mmapregion: final truncate %s to %d: %w", r.f.Name(), exact, err)
	}
	r.size = exact
	return nil
}

func (r *Region) unmap() error {
	if r.mem == nil {
		return nil
	}
	err := backend.munmap(r.f, r.mem, r.writable)
	r.mem = nil
	return err
}

// Close unmaps the region and closes the backing file descriptor.
// It does not remove the file; callers that want to discard an empty
// shard must call os.Remove themselves (see sgfile.Writer.Close).
func (r *Region) Close() error {
	uerr := r.unmap()
	cerr := r.f.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}
