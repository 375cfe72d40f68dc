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

// Logger is satisfied by *log.Logger; callers that want the engine's
// diagnostic output (skipped candidate shards, worker failures, short
// writes) wire up their own logger the same way tenant/dcache.Cache
// accepts an optional Logger in the module this package was adapted
// from. A nil Logger silently discards everything.
type Logger interface {
	Printf(format string, args ...interface{})
}

func logf(l Logger, format string, args ...interface{}) {
	if l != nil {
		l.Printf(format, args...)
	}
}
