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

package sgplan

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/haystack-vlbi/sgplan/sgfile"
	"github.com/haystack-vlbi/sgplan/vdif"
)

// shardKey is a fixed, arbitrary siphash key used only to derive a
// short, stable correlation tag for a shard's path. It is not a
// security boundary — see splitter.go in the module this idea was
// adapted from, which uses siphash the same way to fingerprint blob
// identities for peer-assignment logging.
var shardKey0, shardKey1 uint64 = 0x5347504c414e3031, 0x7364766966746167

func shardTag(path string) string {
	h := siphash.Hash(shardKey0, shardKey1, []byte(path))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return fmt.Sprintf("%x", buf[:4])
}

// readShard is one file's worth of state in a ReadPlan.
//
// staging is either empty (frameCount == 0, buf == nil) or full
// (frameCount > 0, buf owned by this shard) — never anything in
// between, matching the invariant in §3 of the design.
type readShard struct {
	path string
	tag  string
	r    *sgfile.Reader

	blockIndex int // next block to fetch
	buf        []byte
	frameCount int
}

func (s *readShard) dead() bool {
	return s.blockIndex >= s.r.NumBlocks()
}

// firstHeader and lastHeader are the typed accessors the design
// notes (§9) ask for in place of raw pointer arithmetic into the
// staging buffer. Both panic if frameCount == 0, since callers are
// expected to check liveness first — see the state machine in §4's
// closing diagram ("Empty" shards never reach the merger).
func (s *readShard) firstHeader() vdif.Header {
	if s.frameCount == 0 {
		panic("sgplan: firstHeader on empty shard staging")
	}
	return vdif.Parse(s.buf[:vdif.HeaderSize])
}

func (s *readShard) lastHeader() vdif.Header {
	if s.frameCount == 0 {
		panic("sgplan: lastHeader on empty shard staging")
	}
	off := (s.frameCount - 1) * s.r.PacketSize()
	return vdif.Parse(s.buf[off : off+vdif.HeaderSize])
}

func (s *readShard) clear() {
	s.buf = nil
	s.frameCount = 0
}

// writeShard is one file's worth of state in a WritePlan.
//
// staging here is a borrowed view into the caller-supplied packet
// buffer for the current write cycle only; it is never retained
// across calls to WriteFrames.
type writeShard struct {
	path string
	tag  string
	w    *sgfile.Writer

	buf        []byte
	frameCount int
}

func (s *writeShard) blockIndex() int { return s.w.BlockIndex() }
