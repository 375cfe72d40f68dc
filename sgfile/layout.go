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

// Package sgfile is the thin boundary between the scatter-gather
// engine and a single shard's on-disk bytes: the "SG access layer
// adapter" named in the design (component 7). It owns a shard's
// memory map and on-disk header tags, and exposes only the narrow
// interface the engine core actually needs — open/close, block count,
// and block-by-index byte ranges (read mode), or append-with-resize
// (write mode). VDIF packet semantics beyond what's needed to size a
// block (§3's consumed header fields) stay in package vdif; deeper
// packet interpretation is explicitly out of scope here too.
package sgfile

import "encoding/binary"

// PacketFormat identifies the packet encoding recorded in a file
// header tag. This module only ever writes/reads PacketFormatVDIF.
type PacketFormat uint32

const PacketFormatVDIF PacketFormat = 1

const (
	syncWord    uint32 = 0x53474d31 // "SGM1"
	fileVersion uint32 = 1

	// FileHeaderTagSize is the on-disk size in bytes of the file
	// header tag (byte 0 of every SG file).
	FileHeaderTagSize = 32

	// WBlockHeaderTagSize ("wbht_size" in the design's vocabulary)
	// is the on-disk size in bytes of each write-block header tag.
	WBlockHeaderTagSize = 16
)

// FileHeaderTag is the fixed file-level header written once at the
// start of every SG file: sync word, format version, packet format,
// packet size, and the nominal per-block size.
type FileHeaderTag struct {
	SyncWord     uint32
	Version      uint32
	PacketFormat PacketFormat
	PacketSize   uint32
	BlockSize    uint32
}

func (t FileHeaderTag) encode() []byte {
	buf := make([]byte, FileHeaderTagSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.SyncWord)
	binary.LittleEndian.PutUint32(buf[4:8], t.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(t.PacketFormat))
	binary.LittleEndian.PutUint32(buf[12:16], t.PacketSize)
	binary.LittleEndian.PutUint32(buf[16:20], t.BlockSize)
	return buf
}

func decodeFileHeaderTag(buf []byte) (FileHeaderTag, error) {
	if len(buf) < FileHeaderTagSize {
		return FileHeaderTag{}, errShortHeader
	}
	t := FileHeaderTag{
		SyncWord:     binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		PacketFormat: PacketFormat(binary.LittleEndian.Uint32(buf[8:12])),
		PacketSize:   binary.LittleEndian.Uint32(buf[12:16]),
		BlockSize:    binary.LittleEndian.Uint32(buf[16:20]),
	}
	if t.SyncWord != syncWord {
		return FileHeaderTag{}, errBadSync
	}
	return t, nil
}

// WBlockHeaderTag precedes each write-block's packed packets.
type WBlockHeaderTag struct {
	BlockIndex uint32
	WBSize     uint32
}

func (t WBlockHeaderTag) encode() []byte {
	buf := make([]byte, WBlockHeaderTagSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.BlockIndex)
	binary.LittleEndian.PutUint32(buf[4:8], t.WBSize)
	return buf
}

func decodeWBlockHeaderTag(buf []byte) WBlockHeaderTag {
	return WBlockHeaderTag{
		BlockIndex: binary.LittleEndian.Uint32(buf[0:4]),
		WBSize:     binary.LittleEndian.Uint32(buf[4:8]),
	}
}
