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
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/haystack-vlbi/sgplan/sgfile"
	"github.com/haystack-vlbi/sgplan/vdif"
)

// assignment is one shard's share of the current write-block cycle.
type assignment struct {
	shard *writeShard
	count int
}

// WriteFrames writes exactly n frames from buf (which must contain n
// consecutive, equally-sized VDIF frames back to back), striping them
// across shards in write-block-sized chunks round-robin, and returns
// the number of frames actually written. It implements §4.7 of the
// design.
//
// If a per-shard write worker fails partway through a cycle, the
// frames written by the cycles that completed before the failure are
// still reflected in the returned count, and the error wraps
// ErrWriteShort.
func (p *WritePlan) WriteFrames(buf []byte, n int) (int, error) {
	if len(p.shards) == 0 || n == 0 {
		return 0, nil
	}
	firstWrite := true
	for _, s := range p.shards {
		if s.blockIndex() != 0 {
			firstWrite = false
			break
		}
	}
	if firstWrite {
		if len(buf) < vdif.HeaderSize {
			return 0, fmt.Errorf("sgplan: buffer too short to contain a VDIF header")
		}
		h := vdif.Parse(buf)
		p.packetSize = h.ByteLen()
		if p.packetSize <= 0 {
			return 0, fmt.Errorf("sgplan: first frame reports a non-positive packet size")
		}
	}
	p.framesPerBlock = sgfile.WBlockSize / p.packetSize
	if p.framesPerBlock == 0 {
		p.framesPerBlock = 1
	}

	nShards := len(p.shards)
	s0 := 0
	for i := 1; i < nShards; i++ {
		if p.shards[i].blockIndex() < p.shards[s0].blockIndex() {
			s0 = i
		}
	}

	framesWritten := 0
	pos := 0
	remaining := n
	for remaining > 0 {
		var cycle []assignment
		for j := 0; j < nShards && remaining > 0; j++ {
			s := p.shards[(s0+j)%nShards]
			count := p.framesPerBlock
			if count > remaining {
				count = remaining
			}
			start := pos * p.packetSize
			end := (pos + count) * p.packetSize
			s.buf = buf[start:end]
			s.frameCount = count
			cycle = append(cycle, assignment{shard: s, count: count})
			pos += count
			remaining -= count
		}

		var eg errgroup.Group
		for _, a := range cycle {
			a := a
			eg.Go(func() error {
				return a.shard.w.WriteBlock(p.packetSize, p.framesPerBlock, a.count, a.shard.buf)
			})
		}
		if err := eg.Wait(); err != nil {
			logf(p.logger, "sgplan: write cycle failed: %v", err)
			return framesWritten, fmt.Errorf("%w: %v", ErrWriteShort, err)
		}
		for _, a := range cycle {
			framesWritten += a.count
		}
	}
	return framesWritten, nil
}
