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
	"bytes"
	"fmt"
	"strings"

	"github.com/lassandro/gosos/pkg/encoding"
)

// Driver implements the filesystem over the TSB store. Track 0 holds the
// directory, the remaining tracks hold chained data blocks. The record
// at 0:0:0 is the master boot record and never carries file state.
type Driver struct {
	geom      Geometry
	formatted bool
	recs      []Record

	// Trace, when set, receives diagnostics for unexpected conditions.
	Trace func(msg string)
}

func NewDriver(geom Geometry) *Driver {
	d := &Driver{
		geom: geom,
		recs: make([]Record, geom.Records()),
	}

	for i := range d.recs {
		d.recs[i] = newRecord(geom.DataSize)
	}

	return d
}

func (d *Driver) Geometry() Geometry {
	return d.geom
}

func (d *Driver) Formatted() bool {
	return d.formatted
}

// At returns the record stored at a TSB.
func (d *Driver) At(t TSB) Record {
	return *d.at(t)
}

func (d *Driver) at(t TSB) *Record {
	i := (int(t.Track)*d.geom.Sectors+int(t.Sector))*d.geom.Blocks +
		int(t.Block)
	return &d.recs[i]
}

// Format writes zero-records to every TSB except the MBR and readies the
// disk for file operations.
func (d *Driver) Format() {
	for _, t := range d.allTSBs() {
		if t == NullTSB {
			continue
		}

		d.at(t).zero()
	}

	mbr := d.at(NullTSB)
	mbr.zero()
	mbr.Active = true

	d.formatted = true
}

// FormatQuick resets every flag and header but preserves data bytes, so
// previously written content stays recoverable. Only an already
// formatted disk can be quick-formatted.
func (d *Driver) FormatQuick() error {
	if !d.formatted {
		return ErrNotFormatted
	}

	for _, t := range d.allTSBs() {
		if t == NullTSB {
			continue
		}

		d.at(t).unlink()
	}

	mbr := d.at(NullTSB)
	mbr.unlink()
	mbr.Active = true

	return nil
}

// Create allocates a directory entry and one terminated data block for a
// new empty file.
func (d *Driver) Create(name string) error {
	if !d.formatted {
		return ErrNotFormatted
	}

	enc, err := encoding.Pad(name, d.geom.DataSize)

	if err != nil {
		return err
	}

	if _, ok := d.findEntry(enc); ok {
		return ErrNameInUse
	}

	// A zero starting point scans the data tracks from the very first
	// block.
	first, ok := d.findFreeData(NullTSB)

	if !ok {
		return ErrNoSpace
	}

	entry, ok := d.findFreeEntry()

	if !ok {
		return ErrNoSpace
	}

	rec := d.at(entry)
	rec.Active = true
	rec.Header = first
	copy(rec.Data, enc)

	blk := d.at(first)
	blk.Active = true
	blk.Header = EndTSB

	return nil
}

// Read returns a file's content with trailing pad characters stripped.
func (d *Driver) Read(name string) ([]byte, error) {
	if !d.formatted {
		return nil, ErrNotFormatted
	}

	entry, err := d.lookup(name)

	if err != nil {
		return nil, err
	}

	var content []byte
	cur := d.at(entry).Header

	for steps := 0; ; steps++ {
		if steps > d.geom.Records() || !d.geom.Contains(cur) {
			d.trace(fmt.Sprintf("chain from %s exceeds disk size", entry))
			return nil, ErrCorrupt
		}

		rec := d.at(cur)
		content = append(content, rec.Data...)

		if rec.Header == EndTSB {
			break
		}

		cur = rec.Header
	}

	return encoding.TrimPad(content), nil
}

// Write replaces a file's content. Existing chain blocks are reused in
// order; the chain grows through forward free-block search and any
// leftover tail from a previously longer file is deactivated.
func (d *Driver) Write(name string, data []byte) error {
	if !d.formatted {
		return ErrNotFormatted
	}

	entry, err := d.lookup(name)

	if err != nil {
		return err
	}

	chunks := d.chunk(data)
	cur := d.at(entry).Header

	for i, chunk := range chunks {
		if !d.geom.Contains(cur) {
			d.trace(fmt.Sprintf("chain from %s exceeds disk size", entry))
			return ErrCorrupt
		}

		rec := d.at(cur)
		prev := rec.Header

		rec.Active = true
		copy(rec.Data, chunk)

		if i < len(chunks)-1 {
			next := prev

			if !d.isChained(prev) {
				free, ok := d.findFreeData(cur)

				if !ok {
					rec.Header = EndTSB
					return ErrNoSpace
				}

				next = free
				d.at(next).Active = true
			}

			rec.Header = next
			cur = next
			continue
		}

		if d.isChained(prev) {
			d.deactivate(prev)
		}

		rec.Header = EndTSB
	}

	return nil
}

// Delete removes a file's directory entry and deactivates its chain.
// Data bytes stay in place so a quick format can recover them.
func (d *Driver) Delete(name string) error {
	if !d.formatted {
		return ErrNotFormatted
	}

	entry, err := d.lookup(name)

	if err != nil {
		return err
	}

	rec := d.at(entry)
	first := rec.Header
	rec.Active = false

	if d.isChained(first) {
		d.deactivate(first)
	}

	return nil
}

// Copy duplicates a file's content under a new name.
func (d *Driver) Copy(existing, name string) error {
	content, err := d.Read(existing)

	if err != nil {
		return err
	}

	if err := d.Create(name); err != nil {
		return err
	}

	return d.Write(name, content)
}

// Rename rewrites a directory entry's name in place. The new name must
// not collide with any other file; data blocks are untouched.
func (d *Driver) Rename(old, name string) error {
	if !d.formatted {
		return ErrNotFormatted
	}

	entry, err := d.lookup(old)

	if err != nil {
		return err
	}

	enc, err := encoding.Pad(name, d.geom.DataSize)

	if err != nil {
		return err
	}

	if other, ok := d.findEntry(enc); ok && other != entry {
		return ErrNameInUse
	}

	copy(d.at(entry).Data, enc)
	return nil
}

// List returns the names of active files in TSB order. Hidden files,
// names beginning with '.', appear only when all is set.
func (d *Driver) List(all bool) ([]string, error) {
	if !d.formatted {
		return nil, ErrNotFormatted
	}

	names := []string{}

	for _, t := range d.directoryTSBs() {
		if t == NullTSB {
			continue
		}

		rec := d.at(t)

		if !rec.Active {
			continue
		}

		name := string(encoding.TrimPad(rec.Data))

		if name == "" {
			continue
		}

		if !all && strings.HasPrefix(name, ".") {
			continue
		}

		names = append(names, name)
	}

	return names, nil
}

// lookup resolves a filename to its directory entry TSB.
func (d *Driver) lookup(name string) (TSB, error) {
	enc, err := encoding.Pad(name, d.geom.DataSize)

	if err != nil {
		return TSB{}, err
	}

	entry, ok := d.findEntry(enc)

	if !ok {
		return TSB{}, ErrNotFound
	}

	return entry, nil
}

// findEntry scans the directory for an active entry matching a padded
// filename encoding.
func (d *Driver) findEntry(enc []byte) (TSB, bool) {
	for _, t := range d.directoryTSBs() {
		if t == NullTSB {
			continue
		}

		rec := d.at(t)

		if rec.Active && bytes.Equal(rec.Data, enc) {
			return t, true
		}
	}

	return TSB{}, false
}

// findFreeEntry scans the directory for the first inactive entry.
func (d *Driver) findFreeEntry() (TSB, bool) {
	for _, t := range d.directoryTSBs() {
		if !d.at(t).Active {
			return t, true
		}
	}

	return TSB{}, false
}

// findFreeData searches forward from the successor of a TSB for the
// first inactive data block. A directory-track starting point instead
// scans the data tracks from their first block inclusive; the search
// never re-enters track 0.
func (d *Driver) findFreeData(from TSB) (TSB, bool) {
	t := from

	if t.Track == 0 {
		t = TSB{Track: 1}

		if !d.at(t).Active {
			return t, true
		}
	}

	for {
		next, ok := d.geom.Next(t)

		if !ok {
			return TSB{}, false
		}

		if !d.at(next).Active {
			return next, true
		}

		t = next
	}
}

// isChained reports whether a header points to a further data block, as
// opposed to terminating or being unlinked.
func (d *Driver) isChained(h TSB) bool {
	return h != NullTSB && h != EndTSB && d.geom.Contains(h)
}

// deactivate clears the active flag along a chain, leaving headers and
// data in place.
func (d *Driver) deactivate(from TSB) {
	cur := from

	for steps := 0; cur != EndTSB; steps++ {
		if steps > d.geom.Records() || !d.geom.Contains(cur) {
			d.trace(fmt.Sprintf("deactivation from %s ran off the chain", from))
			return
		}

		rec := d.at(cur)

		if !rec.Active {
			return
		}

		rec.Active = false
		cur = rec.Header
	}
}

// chunk splits data into DataSize pieces, padding the last one. Empty
// data still produces a single all-pad chunk.
func (d *Driver) chunk(data []byte) [][]byte {
	size := d.geom.DataSize
	padded := make([]byte, 0, len(data)+size)
	padded = append(padded, data...)

	for len(padded)%size != 0 || len(padded) == 0 {
		padded = append(padded, encoding.PadByte)
	}

	chunks := make([][]byte, 0, len(padded)/size)

	for i := 0; i < len(padded); i += size {
		chunks = append(chunks, padded[i:i+size])
	}

	return chunks
}

// allTSBs returns every TSB in lexicographic order.
func (d *Driver) allTSBs() []TSB {
	out := make([]TSB, 0, d.geom.Records())

	for t := 0; t < d.geom.Tracks; t++ {
		for s := 0; s < d.geom.Sectors; s++ {
			for b := 0; b < d.geom.Blocks; b++ {
				out = append(out, TSB{uint8(t), uint8(s), uint8(b)})
			}
		}
	}

	return out
}

// directoryTSBs returns the track 0 TSBs in lexicographic order.
func (d *Driver) directoryTSBs() []TSB {
	out := make([]TSB, 0, d.geom.Sectors*d.geom.Blocks)

	for s := 0; s < d.geom.Sectors; s++ {
		for b := 0; b < d.geom.Blocks; b++ {
			out = append(out, TSB{0, uint8(s), uint8(b)})
		}
	}

	return out
}

func (d *Driver) trace(msg string) {
	if d.Trace != nil {
		d.Trace(msg)
	}
}
