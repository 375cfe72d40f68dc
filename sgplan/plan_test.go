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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/haystack-vlbi/sgplan/sgfile"
	"github.com/haystack-vlbi/sgplan/vdif"
)

// makeTemplate lays out <base>/mod<M>/disk<D>/ for every combination
// of modules x disks and returns a candidatePath template pointing
// into it.
func makeTemplate(t *testing.T, base string, modules, disks []int) string {
	t.Helper()
	for _, m := range modules {
		for _, d := range disks {
			dir := filepath.Join(base, "mod", itoa(m), "disk", itoa(d))
			if err := os.MkdirAll(dir, 0775); err != nil {
				t.Fatal(err)
			}
		}
	}
	return filepath.Join(base, "mod", "%d", "disk", "%d", "%s.sg")
}

func itoa(n int) string {
	// avoids pulling in strconv purely for test path construction
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func packFrames(n, packetSize int, secs, startDF uint32) []byte {
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

// TestWriteReadRoundTripSingleShard covers the trivial single-shard
// case: one module, one disk, a single write smaller than one
// write-block, read back whole in a single ReadNextBlock call.
func TestWriteReadRoundTripSingleShard(t *testing.T) {
	base := t.TempDir()
	modules, disks := []int{0}, []int{0}
	tmpl := makeTemplate(t, base, modules, disks)

	const packetSize = 8224
	const n = 1000
	data := packFrames(n, packetSize, 100, 0)

	wp, opened, err := MakeWritePlan(tmpl, "test", modules, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 1 {
		t.Fatalf("opened = %d, want 1", opened)
	}
	written, err := wp.WriteFrames(data, n)
	if err != nil {
		t.Fatal(err)
	}
	if written != n {
		t.Fatalf("written = %d, want %d", written, n)
	}
	if err := wp.Close(); err != nil {
		t.Fatal(err)
	}

	rp, opened, err := MakeReadPlan(tmpl, "test", modules, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 1 {
		t.Fatalf("opened = %d, want 1", opened)
	}
	buf, frames, err := rp.ReadNextBlock()
	if err != nil {
		t.Fatal(err)
	}
	if frames != n {
		t.Fatalf("frames = %d, want %d", frames, n)
	}
	if !bytes.Equal(buf, data) {
		t.Fatal("round-tripped bytes do not match what was written")
	}
	if !rp.Drained() {
		t.Fatal("plan should be drained after its only block was read")
	}
	if err := rp.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestWriteReadRoundTripParallelShards covers a striped write across
// four shards where the total frame count lands on an exact
// write-block boundary per shard, then a full read-back.
func TestWriteReadRoundTripParallelShards(t *testing.T) {
	base := t.TempDir()
	modules, disks := []int{0, 1}, []int{0, 1}
	tmpl := makeTemplate(t, base, modules, disks)

	const packetSize = 8224
	const nShards = 4
	// one full write-block per shard, so a single WriteFrames call
	// assigns each shard exactly one block with nothing left over.
	framesPerBlock := sgfile.WBlockSize / packetSize
	n := framesPerBlock * nShards
	data := packFrames(n, packetSize, 200, 0)

	wp, opened, err := MakeWritePlan(tmpl, "vlbi", modules, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != nShards {
		t.Fatalf("opened = %d, want %d", opened, nShards)
	}
	written, err := wp.WriteFrames(data, n)
	if err != nil {
		t.Fatal(err)
	}
	if written != n {
		t.Fatalf("written = %d, want %d", written, n)
	}
	if err := wp.Close(); err != nil {
		t.Fatal(err)
	}

	rp, opened, err := MakeReadPlan(tmpl, "vlbi", modules, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != nShards {
		t.Fatalf("opened = %d, want %d", opened, nShards)
	}

	var got []byte
	total := 0
	for !rp.Drained() {
		buf, frames, err := rp.ReadNextBlock()
		if err != nil {
			t.Fatal(err)
		}
		if frames == 0 {
			t.Fatal("no progress before drained: shards never became contiguous")
		}
		got = append(got, buf...)
		total += frames
	}
	if total != n {
		t.Fatalf("total frames read = %d, want %d", total, n)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round-tripped stream does not match the original, contiguous order")
	}
	if err := rp.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestMakeWritePlanEmptyClose covers invariant 6: a plan with zero
// shards (nonexistent module/disk combination) is valid, and closing
// it with nothing written leaves no files behind.
func TestMakeWritePlanEmptyClose(t *testing.T) {
	base := t.TempDir()
	// no directories created: every candidate path's parent is missing,
	// so every shard create fails and is dropped.
	tmpl := filepath.Join(base, "mod", "%d", "disk", "%d", "%s.sg")

	wp, opened, err := MakeWritePlan(tmpl, "x", []int{0, 1}, []int{0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 0 {
		t.Fatalf("opened = %d, want 0", opened)
	}
	if wp.NumShards() != 0 {
		t.Fatalf("NumShards() = %d, want 0", wp.NumShards())
	}
	n, err := wp.WriteFrames(packFrames(10, 8224, 1, 0), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("WriteFrames on an empty plan wrote %d frames, want 0", n)
	}
	if err := wp.Close(); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("expected no files under %s, found %d entries", base, len(entries))
	}
}

// TestMakeReadPlanSortsByFirstTimestamp covers the Plan invariant
// (§3) that shards come back ordered ascending by the timestamp of
// their first frame, regardless of the order their (module, disk)
// pairs were enumerated in. Module 0's shard is given the later
// timestamp and module 1's the earlier one, so a correct sort must
// reverse the enumeration order.
func TestMakeReadPlanSortsByFirstTimestamp(t *testing.T) {
	base := t.TempDir()
	modules, disks := []int{0, 1}, []int{0}
	tmpl := makeTemplate(t, base, modules, disks)
	const packetSize = 8224

	wp0, _, err := MakeWritePlan(tmpl, "order", []int{0}, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wp0.WriteFrames(packFrames(10, packetSize, 500, 0), 10); err != nil {
		t.Fatal(err)
	}
	if err := wp0.Close(); err != nil {
		t.Fatal(err)
	}

	wp1, _, err := MakeWritePlan(tmpl, "order", []int{1}, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wp1.WriteFrames(packFrames(10, packetSize, 100, 0), 10); err != nil {
		t.Fatal(err)
	}
	if err := wp1.Close(); err != nil {
		t.Fatal(err)
	}

	rp, opened, err := MakeReadPlan(tmpl, "order", modules, disks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 2 {
		t.Fatalf("opened = %d, want 2", opened)
	}
	if len(rp.shards) != 2 {
		t.Fatalf("len(rp.shards) = %d, want 2", len(rp.shards))
	}
	if firstKey(rp.shards[0]).Secs != 100 || firstKey(rp.shards[1]).Secs != 500 {
		t.Fatalf("shards not sorted ascending by first timestamp: got secs %d, %d",
			firstKey(rp.shards[0]).Secs, firstKey(rp.shards[1]).Secs)
	}
	if err := rp.Close(); err != nil {
		t.Fatal(err)
	}
}
