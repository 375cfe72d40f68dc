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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/haystack-vlbi/sgplan/vdif"
)

func writeGarbage(path string) error {
	return os.WriteFile(path, bytes.Repeat([]byte{0xAB}, FileHeaderTagSize), 0664)
}

func makeFrames(t *testing.T, n, packetSize int, secs, startDF uint32) []byte {
	t.Helper()
	buf := make([]byte, n*packetSize)
	for i := 0; i < n; i++ {
		off := i * packetSize
		vdif.Put(buf[off:off+vdif.HeaderSize], vdif.Header{
			SecsInRE:   secs,
			DFNumInSec: startDF + uint32(i),
			RefEpoch:   38,
			DFLen:      uint32(packetSize / 8),
		})
	}
	return buf
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard0.sg")
	w, err := Create(path, 0664)
	if err != nil {
		t.Fatal(err)
	}
	const packetSize = 8224
	const framesPerBlock = 250
	block0 := makeFrames(t, framesPerBlock, packetSize, 100, 0)
	block1 := makeFrames(t, framesPerBlock, packetSize, 100, framesPerBlock)

	if err := w.WriteBlock(packetSize, framesPerBlock, framesPerBlock, block0); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBlock(packetSize, framesPerBlock, framesPerBlock, block1); err != nil {
		t.Fatal(err)
	}
	if w.BlockIndex() != 2 {
		t.Fatalf("BlockIndex() = %d, want 2", w.BlockIndex())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.NumBlocks() != 2 {
		t.Fatalf("NumBlocks() = %d, want 2", r.NumBlocks())
	}
	if r.PacketSize() != packetSize {
		t.Fatalf("PacketSize() = %d, want %d", r.PacketSize(), packetSize)
	}
	got0, err := r.BlockBytes(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got0, block0) {
		t.Fatalf("block 0 payload mismatch")
	}
	got1, err := r.BlockBytes(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got1, block1) {
		t.Fatalf("block 1 payload mismatch")
	}
	frames, err := r.FrameCount(1)
	if err != nil {
		t.Fatal(err)
	}
	if frames != framesPerBlock {
		t.Fatalf("FrameCount(1) = %d, want %d", frames, framesPerBlock)
	}
}

func TestWriterCloseEmptyUnlinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard0.sg")
	w, err := Create(path, 0664)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected the empty shard file to have been unlinked")
	}
}

func TestOpenRejectsBadSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.sg")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected Open to reject a file without the SG sync word")
	}
}
