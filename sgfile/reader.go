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

import "github.com/haystack-vlbi/sgplan/mmapregion"

// blockEntry records where one write-block's payload lives within
// the mapped region, discovered by walking the write-block header
// tags once at open time.
type blockEntry struct {
	payloadOff int
	payloadLen int
}

// Reader is the read-mode SG access layer: it maps a shard file
// read-only and indexes its write-blocks so that block-by-index
// access is O(1) after open.
type Reader struct {
	region *mmapregion.Region
	header FileHeaderTag
	blocks []blockEntry
}

// Open maps path read-only and indexes its write-blocks. A file
// containing only the file header tag (no blocks yet) opens
// successfully with NumBlocks() == 0.
func Open(path string) (*Reader, error) {
	region, err := mmapregion.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	mem := region.Bytes()
	if len(mem) < FileHeaderTagSize {
		region.Close()
		return nil, errShortHeader
	}
	hdr, err := decodeFileHeaderTag(mem)
	if err != nil {
		region.Close()
		return nil, err
	}
	r := &Reader{region: region, header: hdr}
	off := FileHeaderTagSize
	for off+WBlockHeaderTagSize <= len(mem) {
		wbht := decodeWBlockHeaderTag(mem[off : off+WBlockHeaderTagSize])
		payloadOff := off + WBlockHeaderTagSize
		payloadLen := int(wbht.WBSize) - WBlockHeaderTagSize
		if payloadLen < 0 || payloadOff+payloadLen > len(mem) {
			break // truncated trailing block; stop indexing
		}
		r.blocks = append(r.blocks, blockEntry{payloadOff: payloadOff, payloadLen: payloadLen})
		off = payloadOff + payloadLen
	}
	return r, nil
}

// Path returns the underlying file path.
func (r *Reader) Path() string { return r.region.Path() }

// PacketSize returns the fixed packet size recorded in the file
// header tag.
func (r *Reader) PacketSize() int { return int(r.header.PacketSize) }

// NumBlocks returns the number of fully-written write-blocks
// discovered at open time.
func (r *Reader) NumBlocks() int { return len(r.blocks) }

// NominalBlockPayload returns the nominal (not necessarily exact, see
// §4.3 step 3: "over-allocation is acceptable") payload size in bytes
// of one write-block, as recorded in the file header tag.
func (r *Reader) NominalBlockPayload() int {
	if int(r.header.BlockSize) <= WBlockHeaderTagSize {
		return 0
	}
	return int(r.header.BlockSize) - WBlockHeaderTagSize
}

// BlockBytes returns the contiguous payload byte range for the
// write-block at the given index — a packed array of VDIF packets,
// each PacketSize() bytes. The returned slice aliases the memory
// map and is only valid for the lifetime of the Reader.
func (r *Reader) BlockBytes(index int) ([]byte, error) {
	if index < 0 || index >= len(r.blocks) {
		return nil, errBlockOOB
	}
	e := r.blocks[index]
	mem := r.region.Bytes()
	return mem[e.payloadOff : e.payloadOff+e.payloadLen], nil
}

// FrameCount returns the number of complete VDIF frames packed into
// the write-block at the given index.
func (r *Reader) FrameCount(index int) (int, error) {
	if index < 0 || index >= len(r.blocks) {
		return 0, errBlockOOB
	}
	ps := r.PacketSize()
	if ps <= 0 {
		return 0, nil
	}
	return r.blocks[index].payloadLen / ps, nil
}

// Close unmaps and closes the backing file.
func (r *Reader) Close() error {
	return r.region.Close()
}
