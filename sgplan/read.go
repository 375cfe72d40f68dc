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
)

// ReadNextBlock produces one super-block's worth of temporally
// contiguous frames, concatenated into a freshly allocated byte
// buffer, and returns the frame count. It implements §4.3 of the
// design: read-then-merge, retaining whatever buffers did not end up
// contiguous for the next call.
//
// A return of zero frames (an empty buffer and a nil error) means
// nothing could be merged this call
// — either every shard is exhausted, or the live shards' buffers are
// not yet temporally adjacent (callers that need to tell these two
// cases apart can inspect Drained()).
func (p *ReadPlan) ReadNextBlock() ([]byte, int, error) {
	type fetched struct {
		buf    []byte
		frames int
	}
	var due []*readShard
	for _, s := range p.shards {
		if s.frameCount == 0 && !s.dead() {
			due = append(due, s)
		}
	}

	results := make([]fetched, len(due))
	var eg errgroup.Group
	for i, s := range due {
		i, s := i, s
		eg.Go(func() error {
			raw, err := s.r.BlockBytes(s.blockIndex)
			if err != nil {
				return fmt.Errorf("shard %s block %d: %w", s.tag, s.blockIndex, err)
			}
			frames, err := s.r.FrameCount(s.blockIndex)
			if err != nil {
				return fmt.Errorf("shard %s block %d: %w", s.tag, s.blockIndex, err)
			}
			// copy out of the memory map: staging is owned by the
			// shard, not aliased to the mapping (§9 "no cycle,
			// optional owned byte region").
			buf := make([]byte, len(raw))
			copy(buf, raw)
			results[i] = fetched{buf: buf, frames: frames}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}
	for i, s := range due {
		if results[i].frames > 0 {
			s.buf = results[i].buf
			s.frameCount = results[i].frames
			s.blockIndex++
		}
	}

	estimate := 0
	for _, s := range p.shards {
		estimate += s.r.NominalBlockPayload()
	}
	out := make([]byte, 0, estimate)

	order, k := mergeOrder(p.shards)
	total := 0
	for i := 0; i < k; i++ {
		s := p.shards[order[i]]
		out = append(out, s.buf...)
		total += s.frameCount
		s.clear()
	}
	return out, total, nil
}

// Drained reports whether every shard in the plan is dead (has
// reached the end of its on-disk blocks) and holds no retained
// staging buffer. Once Drained returns true, ReadNextBlock will never
// produce more frames.
func (p *ReadPlan) Drained() bool {
	for _, s := range p.shards {
		if !s.dead() || s.frameCount > 0 {
			return false
		}
	}
	return true
}

// ReadBlockAt is the single-shot random-access variant described in
// §4.4: it fetches block `index` from every shard (skipping shards
// that don't have a block at that index) and concatenates the
// results in shard order, without any contiguity check. It does not
// mutate shard state and is intended for diagnostics, not for
// interleaving with ReadNextBlock.
func (p *ReadPlan) ReadBlockAt(index int) ([]byte, int, error) {
	type fetched struct {
		buf    []byte
		frames int
		ok     bool
	}
	results := make([]fetched, len(p.shards))
	var eg errgroup.Group
	for i, s := range p.shards {
		i, s := i, s
		eg.Go(func() error {
			if index < 0 || index >= s.r.NumBlocks() {
				return nil
			}
			raw, err := s.r.BlockBytes(index)
			if err != nil {
				return fmt.Errorf("shard %s block %d: %w", s.tag, index, err)
			}
			frames, err := s.r.FrameCount(index)
			if err != nil {
				return fmt.Errorf("shard %s block %d: %w", s.tag, index, err)
			}
			buf := make([]byte, len(raw))
			copy(buf, raw)
			results[i] = fetched{buf: buf, frames: frames, ok: true}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}
	var out []byte
	total := 0
	for _, r := range results {
		if !r.ok {
			continue
		}
		out = append(out, r.buf...)
		total += r.frames
	}
	return out, total, nil
}
