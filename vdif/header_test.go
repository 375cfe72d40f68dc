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

package vdif

import "testing"

func TestParsePut(t *testing.T) {
	buf := make([]byte, HeaderSize)
	want := Header{SecsInRE: 100, DFNumInSec: 250, RefEpoch: 42, DFLen: 1028}
	Put(buf, want)
	got := Parse(buf)
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
	if got.ByteLen() != 1028*8 {
		t.Fatalf("ByteLen() = %d, want %d", got.ByteLen(), 1028*8)
	}
}

func TestPutPreservesOtherBits(t *testing.T) {
	buf := make([]byte, HeaderSize)
	for i := range buf {
		buf[i] = 0xff
	}
	Put(buf, Header{SecsInRE: 1, DFNumInSec: 2, RefEpoch: 3, DFLen: 4})
	got := Parse(buf)
	want := Header{SecsInRE: 1, DFNumInSec: 2, RefEpoch: 3, DFLen: 4}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	// the invalid/legacy bits in word 0 should still be set, since
	// Put must not clobber fields it doesn't own
	if buf[3]&0xc0 == 0 {
		t.Fatalf("Put clobbered bits outside SecsInRE")
	}
}

func TestKeyOrdering(t *testing.T) {
	cases := []struct {
		a, b Key
		less bool
	}{
		{Key{Secs: 100, DF: 0}, Key{Secs: 100, DF: 1}, true},
		{Key{Secs: 100, DF: 1}, Key{Secs: 100, DF: 0}, false},
		{Key{Secs: 99, DF: 99999}, Key{Secs: 100, DF: 0}, true},
		{Key{Secs: 100, DF: 0}, Key{Secs: 100, DF: 0}, false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.less {
			t.Errorf("%+v.Less(%+v) = %v, want %v", c.a, c.b, got, c.less)
		}
	}
}

func TestKeyOf(t *testing.T) {
	h := Header{SecsInRE: 7, DFNumInSec: 9}
	k := KeyOf(h)
	if k.Secs != 7 || k.DF != 9 {
		t.Fatalf("KeyOf(%+v) = %+v", h, k)
	}
}
