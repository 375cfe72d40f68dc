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

import "github.com/haystack-vlbi/sgplan/vdif"

// span is the (first, last) timestamp key pair used by the
// contiguity merger and the adjacency predicate. It is the
// time-ordering utility component named in §2 of the design.
type span struct {
	first, last vdif.Key
}

func spanOf(s *readShard) span {
	return span{first: vdif.KeyOf(s.firstHeader()), last: vdif.KeyOf(s.lastHeader())}
}

// adjacent reports whether span b is temporally contiguous with a,
// assuming a precedes b, per §4.6 of the design. It deliberately does
// not check that a.last.DF is the final frame of its second when b
// starts a new second — the per-second frame count isn't known to
// this package, which is a portability choice the design makes
// explicitly (and a Non-goal: "repairing cross-second continuity when
// the per-second frame count is unknown").
func adjacent(a, b span) bool {
	if a.first.Secs == a.last.Secs {
		// a does not span a second boundary
		return b.first.Secs == a.first.Secs &&
			b.first.DF >= a.first.DF &&
			b.first.DF <= a.last.DF+1
	}
	// a spans a second boundary
	if b.first.Secs == a.first.Secs && b.first.DF >= a.first.DF {
		return true
	}
	if b.first.Secs == a.last.Secs && b.first.DF <= a.last.DF+1 {
		return true
	}
	if a.first.Secs < b.first.Secs && b.first.Secs < a.last.Secs {
		return true
	}
	return false
}

// mergeOrder implements the contiguity merger of §4.5. It returns a
// mapping of length len(shards): the first k entries are indices (0
// based, unlike the spec's 1-based mapping, since this is an internal
// Go helper rather than the C source it was distilled from) of live
// shards in ascending time order forming a contiguous chain starting
// from the earliest timestamp; the remaining entries are the indices
// of every shard that is either dead or did not make it into the
// contiguous prefix, in no particular order.
func mergeOrder(shards []*readShard) (order []int, k int) {
	var live []int
	var dead []int
	for i, s := range shards {
		if s.frameCount > 0 {
			live = append(live, i)
		} else {
			dead = append(dead, i)
		}
	}
	// selection-sort the live prefix by (first_secs, df_num_insec)
	// ascending, per §4.5 step 2. A selection sort (rather than
	// sort.Slice) is used here deliberately: it is the smallest
	// correct implementation for what is, in practice, a handful of
	// shards (tens at most), and it mirrors the in-place swap
	// structure the design's source algorithm specifies.
	spans := make([]span, len(live))
	for i, idx := range live {
		spans[i] = spanOf(shards[idx])
	}
	for i := 0; i < len(live); i++ {
		min := i
		for j := i + 1; j < len(live); j++ {
			if spans[j].first.Less(spans[min].first) {
				min = j
			}
		}
		live[i], live[min] = live[min], live[i]
		spans[i], spans[min] = spans[min], spans[i]
	}

	k = len(live)
	for i := 1; i < len(live); i++ {
		if !adjacent(spans[i-1], spans[i]) {
			k = i
			break
		}
	}

	order = make([]int, 0, len(shards))
	order = append(order, live[:k]...)
	order = append(order, live[k:]...)
	order = append(order, dead...)
	return order, k
}
