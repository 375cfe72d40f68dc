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

// Command sgtool drives a scatter-gather VDIF Plan end to end against
// real files on disk: writing a packet stream out across shards,
// reading it back, or inspecting a single shard's on-disk layout. It
// is the ambient CLI surface around package sgplan — modeled on
// cmd/sdb's subcommand dispatch in the module this tool was adapted
// from. None of the core engine (package sgplan) depends on this
// package; sgtool is purely a consumer.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/haystack-vlbi/sgplan/sgfile"
	"github.com/haystack-vlbi/sgplan/sgplan"
	"github.com/haystack-vlbi/sgplan/vdif"
)

var (
	dashv bool
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func logger() sgplan.Logger {
	if !dashv {
		return nil
	}
	return log.New(os.Stderr, "sgtool: ", log.LstdFlags)
}

func cmdWrite(cfgPath, inputPath string) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		exitf("%s", err)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		exitf("reading %s: %s", inputPath, err)
	}
	if len(data) < vdif.HeaderSize {
		exitf("%s is too short to contain a VDIF frame", inputPath)
	}
	h := vdif.Parse(data)
	packetSize := h.ByteLen()
	if packetSize <= 0 || len(data)%packetSize != 0 {
		exitf("%s is not a whole number of %d-byte frames", inputPath, packetSize)
	}
	nFrames := len(data) / packetSize

	plan, opened, err := sgplan.MakeWritePlan(cfg.Template, cfg.Pattern, cfg.Modules, cfg.Disks, logger())
	if err != nil {
		exitf("make write plan: %s", err)
	}
	fmt.Printf("opened %d shard(s) for writing\n", opened)

	n, err := plan.WriteFrames(data, nFrames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write_frames: %s (wrote %d of %d frames)\n", err, n, nFrames)
	}
	if err := plan.Close(); err != nil {
		exitf("closing write plan: %s", err)
	}
	fmt.Printf("wrote %d of %d frames\n", n, nFrames)
}

func cmdRead(cfgPath, outputPath string) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		exitf("%s", err)
	}
	plan, opened, err := sgplan.MakeReadPlan(cfg.Template, cfg.Pattern, cfg.Modules, cfg.Disks, logger())
	if err != nil {
		exitf("make read plan: %s", err)
	}
	fmt.Printf("opened %d shard(s) for reading\n", opened)

	out, err := os.Create(outputPath)
	if err != nil {
		exitf("creating %s: %s", outputPath, err)
	}
	defer out.Close()

	total := 0
	for !plan.Drained() {
		buf, frames, err := plan.ReadNextBlock()
		if err != nil {
			exitf("read_next_block: %s", err)
		}
		if frames == 0 {
			break
		}
		if _, err := out.Write(buf); err != nil {
			exitf("writing %s: %s", outputPath, err)
		}
		total += frames
	}
	if err := plan.Close(); err != nil {
		exitf("closing read plan: %s", err)
	}
	fmt.Printf("read %d frames\n", total)
}

func cmdScan(cfgPath string) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		exitf("%s", err)
	}
	runID := uuid.New().String()
	plan, opened, err := sgplan.MakeReadPlan(cfg.Template, cfg.Pattern, cfg.Modules, cfg.Disks, logger())
	if err != nil {
		exitf("make read plan: %s", err)
	}
	fmt.Printf("[%s] opened %d shard(s)\n", runID, opened)
	calls, total := 0, 0
	for !plan.Drained() {
		_, frames, err := plan.ReadNextBlock()
		if err != nil {
			exitf("read_next_block: %s", err)
		}
		calls++
		total += frames
		fmt.Printf("[%s] call %d: %d frames\n", runID, calls, frames)
		if frames == 0 && !plan.Drained() {
			// live shards exist but are not yet contiguous; in a
			// real deployment the caller would wait for more data
			// to arrive on the lagging shard(s) before retrying.
			fmt.Printf("[%s] no progress and not drained; stopping scan\n", runID)
			break
		}
	}
	if err := plan.Close(); err != nil {
		exitf("closing read plan: %s", err)
	}
	fmt.Printf("[%s] %d frames over %d calls\n", runID, total, calls)
}

func cmdInspect(shardPath string) {
	r, err := sgfile.Open(shardPath)
	if err != nil {
		exitf("opening %s: %s", shardPath, err)
	}
	defer r.Close()
	fmt.Printf("%s: packet_size=%d blocks=%d\n", shardPath, r.PacketSize(), r.NumBlocks())
	for i := 0; i < r.NumBlocks(); i++ {
		frames, err := r.FrameCount(i)
		if err != nil {
			exitf("block %d: %s", i, err)
		}
		b, err := r.BlockBytes(i)
		if err != nil {
			exitf("block %d: %s", i, err)
		}
		var first, last vdif.Header
		if frames > 0 {
			first = vdif.Parse(b[:vdif.HeaderSize])
			last = vdif.Parse(b[(frames-1)*r.PacketSize() : (frames-1)*r.PacketSize()+vdif.HeaderSize])
		}
		fmt.Printf("  block %4d: %6d frames  first=(%d,%d) last=(%d,%d)\n",
			i, frames, first.SecsInRE, first.DFNumInSec, last.SecsInRE, last.DFNumInSec)
	}
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "    %s [-v] write <config.yaml> <input.vdif>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s [-v] read <config.yaml> <output.vdif>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s [-v] scan <config.yaml>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s inspect <shard-file>\n", os.Args[0])
		os.Exit(1)
	}
	switch args[0] {
	case "write":
		if len(args) != 3 {
			exitf("usage: write <config.yaml> <input.vdif>")
		}
		cmdWrite(args[1], args[2])
	case "read":
		if len(args) != 3 {
			exitf("usage: read <config.yaml> <output.vdif>")
		}
		cmdRead(args[1], args[2])
	case "scan":
		if len(args) != 2 {
			exitf("usage: scan <config.yaml>")
		}
		cmdScan(args[1])
	case "inspect":
		if len(args) != 2 {
			exitf("usage: inspect <shard-file>")
		}
		cmdInspect(args[1])
	default:
		exitf("commands: write, read, scan, inspect")
	}
}
