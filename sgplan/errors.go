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

import "errors"

// ErrWriteShort is returned from WriteFrames when a per-shard write
// worker could not grow its mapping or flush its bytes; frames
// written before the failing cycle are still reflected in the
// returned count. Per the design (§1, §7), zero shards opening
// successfully during plan construction is not an error condition —
// a Plan with no shards is valid and simply reads/writes nothing.
var ErrWriteShort = errors.New("sgplan: write-block resize or write failed, aborting cycle")
