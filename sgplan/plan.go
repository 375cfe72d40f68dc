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

// Package sgplan is the core of the scatter-gather VDIF engine: the
// Plan abstraction, the per-shard parallel read and write workers,
// and the timestamp-ordered contiguity merge that stitches shards
// into a super-block. It consumes package sgfile as its single-file
// storage boundary and package vdif for header fields; it knows
// nothing else about VDIF packet semantics, SG file internals, CLI
// argument parsing, or configuration — those live in cmd/sgtool.
package sgplan

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/haystack-vlbi/sgplan/sgfile"
	"github.com/haystack-vlbi/sgplan/vdif"
)

// Plan is the common handle shared by ReadPlan and WritePlan: close
// it when done. Mode-specific operations (ReadNextBlock, WriteFrames,
// ...) are intentionally NOT part of this interface — see SPEC_FULL's
// "Mode-unrepresentable Plan" note — so that calling a read-mode
// operation on a write plan (or vice versa) is a compile error rather
// than a runtime -1.
type Plan interface {
	// NumShards returns the number of shards that were successfully
	// opened (or created) when the plan was constructed.
	NumShards() int
	Close() error
}

// candidatePath renders the (module, disk) pair into a path using
// template, which must contain exactly two integer verbs and one
// string verb, e.g. "/mnt/disks/%d/%d/data/%s".
func candidatePath(template string, module, disk int, pattern string) string {
	return fmt.Sprintf(template, module, disk, pattern)
}

// ReadPlan is an ordered collection of read-mode shards, sorted
// ascending by the timestamp of the first frame in each shard's file
// (§3's Plan invariant).
type ReadPlan struct {
	shards []*readShard
	logger Logger
}

// NumShards implements Plan.
func (p *ReadPlan) NumShards() int { return len(p.shards) }

// MakeReadPlan opens one shard per (module, disk) pair that actually
// has a readable SG file at candidatePath(template, module, disk,
// pattern). Opens are attempted in parallel, one goroutine per pair
// (§4.1); a candidate that fails to open is silently skipped (not
// every module/disk is required to be populated). Shards that did
// open are sorted by (first_secs, first_frame) before being returned.
//
// A zero-shard result is not an error: the returned Plan is still
// valid and every subsequent read returns zero frames.
func MakeReadPlan(template string, pattern string, modules, disks []int, logger Logger) (*ReadPlan, int, error) {
	type opened struct {
		path string
		r    *sgfile.Reader
	}
	paths := make([]string, 0, len(modules)*len(disks))
	for _, m := range modules {
		for _, d := range disks {
			paths = append(paths, candidatePath(template, m, d, pattern))
		}
	}
	results := make([]*opened, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			r, err := sgfile.Open(path)
			if err != nil {
				logf(logger, "sgplan: skipping %s: %v", path, err)
				return
			}
			results[i] = &opened{path: path, r: r}
		}(i, path)
	}
	wg.Wait()

	shards := make([]*readShard, 0, len(paths))
	for _, o := range results {
		if o == nil {
			continue
		}
		shards = append(shards, &readShard{path: o.path, tag: shardTag(o.path), r: o.r})
	}

	slices.SortFunc(shards, func(a, b *readShard) bool {
		return firstKey(a).Less(firstKey(b))
	})

	return &ReadPlan{shards: shards, logger: logger}, len(shards), nil
}

func firstKey(s *readShard) vdif.Key {
	if s.r.NumBlocks() == 0 {
		return vdif.Key{}
	}
	b, err := s.r.BlockBytes(0)
	if err != nil || len(b) < vdif.HeaderSize {
		return vdif.Key{}
	}
	return vdif.KeyOf(vdif.Parse(b))
}

// Close closes the SG accessor for every shard (§4.9 "Close read
// plan"). Any staging buffers still held are simply dropped: they
// are ordinary Go heap memory, not resources that need releasing.
func (p *ReadPlan) Close() error {
	var first error
	for _, s := range p.shards {
		if err := s.r.Close(); err != nil && first == nil {
			first = err
		}
		s.clear()
	}
	return first
}

// WritePlan is an (unordered — shards have no data yet) collection
// of write-mode shards.
type WritePlan struct {
	shards []*writeShard
	logger Logger

	// populated on the first call to WriteFrames, from the first
	// header in the first buffer written (§4.7 step 1).
	packetSize     int
	framesPerBlock int
}

// NumShards implements Plan.
func (p *WritePlan) NumShards() int { return len(p.shards) }

// MakeWritePlan creates (or truncates) one shard file per (module,
// disk) pair at mode 0664, maps an initial InitialBlocks*WBlockSize
// region for each, and returns the plan along with the number of
// shards successfully created. A shard whose create or initial map
// fails is dropped from the plan (§4.2); this is not fatal to the
// call as a whole.
func MakeWritePlan(template string, pattern string, modules, disks []int, logger Logger) (*WritePlan, int, error) {
	paths := make([]string, 0, len(modules)*len(disks))
	for _, m := range modules {
		for _, d := range disks {
			paths = append(paths, candidatePath(template, m, d, pattern))
		}
	}
	results := make([]*writeShard, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			w, err := sgfile.Create(path, 0664)
			if err != nil {
				logf(logger, "sgplan: failed to create %s: %v", path, err)
				return
			}
			results[i] = &writeShard{path: path, tag: shardTag(path), w: w}
		}(i, path)
	}
	wg.Wait()

	shards := make([]*writeShard, 0, len(paths))
	for _, s := range results {
		if s != nil {
			shards = append(shards, s)
		}
	}
	return &WritePlan{shards: shards, logger: logger}, len(shards), nil
}

// Close finalizes every write shard: shards with no bytes ever
// written are unlinked, others are shrunk to their exact written
// size (§4.9 "Close write plan"); both paths go through
// sgfile.Writer.Close.
func (p *WritePlan) Close() error {
	var mu sync.Mutex
	var first error
	var wg sync.WaitGroup
	for _, s := range p.shards {
		wg.Add(1)
		go func(s *writeShard) {
			defer wg.Done()
			if err := s.w.Close(); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	return first
}
