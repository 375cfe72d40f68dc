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

package sgfile

import (
	"os"

	"github.com/haystack-vlbi/sgplan/mmapregion"
)

const (
	// WBlockSize is the nominal on-disk size of one write-block,
	// the unit of I/O described in the glossary.
	WBlockSize = 8 << 20 // 8 MiB

	// InitialBlocks is the number of WBlockSize increments a
	// newly-created write-mode shard is pre-sized to.
	InitialBlocks = 4

	// GrowthBlocks is the number of WBlockSize increments appended
	// each time a write-mode shard's mapping needs to grow.
	GrowthBlocks = 4
)

// Writer is the write-mode SG access layer: it owns a growable mmap
// region for one shard file and appends write-blocks to it,
// resizing the mapping on demand.
type Writer struct {
	region     *mmapregion.Region
	blockIndex uint32 // number of blocks written so far
	offset     int64  // byte offset of the next write ("smi.size")
	packetSize uint32
	blockSize  uint32 // recorded in the file header tag once known
}

// Create truncates/creates path with the given permissions and maps
// an initial region of InitialBlocks*WBlockSize bytes.
func Create(path string, perm os.FileMode) (*Writer, error) {
	region, err := mmapregion.Create(path, perm, int64(InitialBlocks)*WBlockSize)
	if err != nil {
		return nil, err
	}
	return &Writer{region: region}, nil
}

// Path returns the underlying file path.
func (w *Writer) Path() string { return w.region.Path() }

// BlockIndex returns the number of write-blocks committed so far.
func (w *Writer) BlockIndex() int { return int(w.blockIndex) }

// Offset returns the number of bytes actually written so far (the
// write cursor, distinct from the mapped region's length).
func (w *Writer) Offset() int64 { return w.offset }

// writeTo appends n bytes at the current offset, growing the mapping
// first if necessary (this is "write_to_sg" / "resize_to_sg" from
// §4.8 of the design).
func (w *Writer) writeTo(p []byte) error {
	need := w.offset + int64(len(p))
	if need > w.region.Size() {
		grown := w.region.Size()
		for grown < need {
			grown += int64(GrowthBlocks) * WBlockSize
		}
		if err := w.region.Grow(grown); err != nil {
			return err
		}
	}
	copy(w.region.Bytes()[w.offset:], p)
	w.offset += int64(len(p))
	return nil
}

// WriteBlock appends one write-block (a file header tag, if this is
// the first block, followed by a write-block header tag and the
// packed payload) to the shard. framesPerBlock is the nominal number
// of frames per block used to compute the file header's BlockSize
// field; frameCount is the actual number of frames in this
// particular block (the final block of a run may be shorter).
func (w *Writer) WriteBlock(packetSize, framesPerBlock, frameCount int, payload []byte) error {
	if w.blockIndex == 0 {
		w.packetSize = uint32(packetSize)
		w.blockSize = uint32(packetSize*framesPerBlock) + WBlockHeaderTagSize
		hdr := FileHeaderTag{
			SyncWord:     syncWord,
			Version:      fileVersion,
			PacketFormat: PacketFormatVDIF,
			PacketSize:   w.packetSize,
			BlockSize:    w.blockSize,
		}
		if err := w.writeTo(hdr.encode()); err != nil {
			return err
		}
	}
	wbSize := uint32(packetSize*frameCount) + WBlockHeaderTagSize
	wbht := WBlockHeaderTag{BlockIndex: w.blockIndex, WBSize: wbSize}
	if err := w.writeTo(wbht.encode()); err != nil {
		return err
	}
	if err := w.writeTo(payload); err != nil {
		return err
	}
	w.blockIndex++
	return nil
}

// Close finalizes the shard file. If no bytes were ever written, the
// region is unmapped and closed at its allocated length and the file
// is removed. Otherwise the region is shrunk
// to the exact number of bytes written.
func (w *Writer) Close() error {
	path := w.Path()
	if w.offset == 0 {
		if err := w.region.Close(); err != nil {
			return err
		}
		return os.Remove(path)
	}
	if err := w.region.Finalize(w.offset); err != nil {
		return err
	}
	return w.region.Close()
}
