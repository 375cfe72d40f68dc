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

// Package vdif exposes the handful of VDIF (VLBI Data Interchange
// Format) header fields that the scatter-gather engine needs in order
// to order and size frames. It does not attempt to interpret the rest
// of the VDIF header (station ID, channel layout, sample encoding,
// extended user data, ...); that is out of scope for this module.
package vdif

import "encoding/binary"

// HeaderSize is the size in bytes of a VDIF header. Legacy
// (4-word) headers are not supported: the engine always expects
// the full 8-word header to precede a frame's payload.
const HeaderSize = 32

// Header holds the VDIF header fields consulted by the scatter-gather
// engine. All other header content (station ID, thread ID, sample
// encoding, extended user data words 4-7) is left untouched in the
// backing buffer and is never parsed here.
type Header struct {
	// SecsInRE is the number of seconds elapsed since RefEpoch.
	SecsInRE uint32
	// DFNumInSec is the index of this data frame within its second.
	DFNumInSec uint32
	// RefEpoch identifies which half-year epoch SecsInRE counts from.
	RefEpoch uint8
	// DFLen is the frame length in units of 8 bytes; the frame's
	// total byte length (header + payload) is DFLen*8.
	DFLen uint32
}

// ByteLen returns the total on-wire length of the frame described by
// h, including the header itself.
func (h Header) ByteLen() int {
	return int(h.DFLen) * 8
}

// PacketSize is an alias for ByteLen kept around because the spec's
// vocabulary calls this quantity "packet_size" when it is derived
// from the first frame of a stream (see §4.7 of the design).
func (h Header) PacketSize() int {
	return h.ByteLen()
}

// Parse reads a VDIF header from the first HeaderSize bytes of buf.
// It panics if buf is shorter than HeaderSize, mirroring the spec's
// assumption that callers only ever invoke this on block-aligned
// packet boundaries.
func Parse(buf []byte) Header {
	if len(buf) < HeaderSize {
		panic("vdif: buffer shorter than header size")
	}
	w0 := binary.LittleEndian.Uint32(buf[0:4])
	w1 := binary.LittleEndian.Uint32(buf[4:8])
	w2 := binary.LittleEndian.Uint32(buf[8:12])
	return Header{
		SecsInRE:   w0 & 0x3fffffff,
		DFNumInSec: w1 & 0x00ffffff,
		RefEpoch:   uint8((w1 >> 24) & 0x3f),
		DFLen:      w2 & 0x00ffffff,
	}
}

// Put encodes h into the first HeaderSize bytes of buf, preserving
// whatever bits of buf are not owned by the fields in Header (so
// callers that already have station ID / sample-encoding bits present
// in buf can call Put without clobbering them).
func Put(buf []byte, h Header) {
	if len(buf) < HeaderSize {
		panic("vdif: buffer shorter than header size")
	}
	w0 := binary.LittleEndian.Uint32(buf[0:4])
	w0 = (w0 &^ 0x3fffffff) | (h.SecsInRE & 0x3fffffff)
	binary.LittleEndian.PutUint32(buf[0:4], w0)

	w1 := binary.LittleEndian.Uint32(buf[4:8])
	w1 = (w1 &^ 0x00ffffff) | (h.DFNumInSec & 0x00ffffff)
	w1 = (w1 &^ (0x3f << 24)) | (uint32(h.RefEpoch&0x3f) << 24)
	binary.LittleEndian.PutUint32(buf[4:8], w1)

	w2 := binary.LittleEndian.Uint32(buf[8:12])
	w2 = (w2 &^ 0x00ffffff) | (h.DFLen & 0x00ffffff)
	binary.LittleEndian.PutUint32(buf[8:12], w2)
}

// Key is the (seconds, frame-index-within-second) pair used
// throughout the engine for ordering and adjacency comparisons.
type Key struct {
	Secs uint32
	DF   uint32
}

// KeyOf extracts the ordering key from a header.
func KeyOf(h Header) Key {
	return Key{Secs: h.SecsInRE, DF: h.DFNumInSec}
}

// Less reports whether a sorts strictly before b in (secs, df) order.
func (a Key) Less(b Key) bool {
	if a.Secs != b.Secs {
		return a.Secs < b.Secs
	}
	return a.DF < b.DF
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or
// greater than b, in the conventional sort.Interface sense.
func (a Key) Compare(b Key) int {
	switch {
	case a.Secs < b.Secs:
		return -1
	case a.Secs > b.Secs:
		return 1
	case a.DF < b.DF:
		return -1
	case a.DF > b.DF:
		return 1
	default:
		return 0
	}
}
