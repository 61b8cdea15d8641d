// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package disk

import (
	"errors"
	"fmt"
)

var (
	ErrNotFormatted = errors.New("disk is not formatted")
	ErrNameInUse    = errors.New("filename already in use")
	ErrNoSpace      = errors.New("no space left on disk")
	ErrNotFound     = errors.New("file not found")
	ErrCorrupt      = errors.New("block chain is corrupt")
)

// TSB is a track/sector/block address identifying one disk record.
type TSB struct {
	Track  uint8
	Sector uint8
	Block  uint8
}

func (t TSB) String() string {
	return fmt.Sprintf("%d:%d:%d", t.Track, t.Sector, t.Block)
}

// Header sentinels. A record's header is either a pointer to the next
// block in the chain, EndTSB to terminate it, or NullTSB when unlinked.
// The MBR occupies 0:0:0, so no chain ever points there and the null
// value is unambiguous.
var (
	NullTSB = TSB{0, 0, 0}
	EndTSB  = TSB{9, 9, 9}
)

// Geometry fixes the shape of the TSB address space and the width of
// each record's data field.
type Geometry struct {
	Tracks   int
	Sectors  int
	Blocks   int
	DataSize int
}

var DefaultGeometry = Geometry{Tracks: 4, Sectors: 8, Blocks: 8, DataSize: 60}

// Records counts every addressable TSB.
func (g Geometry) Records() int {
	return g.Tracks * g.Sectors * g.Blocks
}

// Contains reports whether a TSB addresses a record under this geometry.
func (g Geometry) Contains(t TSB) bool {
	return int(t.Track) < g.Tracks &&
		int(t.Sector) < g.Sectors &&
		int(t.Block) < g.Blocks
}

// Next returns the lexicographic successor of a TSB and whether one
// exists. Successors never wrap back to the start of the disk.
func (g Geometry) Next(t TSB) (TSB, bool) {
	t.Block++

	if int(t.Block) == g.Blocks {
		t.Block = 0
		t.Sector++
	}

	if int(t.Sector) == g.Sectors {
		t.Sector = 0
		t.Track++
	}

	if int(t.Track) == g.Tracks {
		return TSB{}, false
	}

	return t, true
}

// Record is one fixed-width disk cell: an in-use flag, a chain header
// and a DataSize-wide data field.
type Record struct {
	Active bool
	Header TSB
	Data   []byte
}

func newRecord(dataSize int) Record {
	return Record{Data: make([]byte, dataSize)}
}

// zero resets the record completely: inactive, unlinked, data cleared.
func (r *Record) zero() {
	r.Active = false
	r.Header = NullTSB

	for i := range r.Data {
		r.Data[i] = 0x00
	}
}

// unlink resets the flag and header but preserves the data bytes.
func (r *Record) unlink() {
	r.Active = false
	r.Header = NullTSB
}
