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
	"io"

	"github.com/tchajed/marshal"
)

// Disk image frame: a geometry header followed by one fixed-width entry
// per record in TSB order. The record format on disk matches the
// in-memory one field for field, so images survive host restarts without
// reinterpretation.

const imageMagic = 0x676F736F73 // "gosos"

func (d *Driver) imageSize() uint64 {
	perRecord := uint64(4*8 + d.geom.DataSize)
	return uint64(6*8) + uint64(d.geom.Records())*perRecord
}

// WriteImage serializes the whole store, including format state.
func (d *Driver) WriteImage(w io.Writer) error {
	enc := marshal.NewEnc(d.imageSize())

	enc.PutInt(imageMagic)
	enc.PutInt(uint64(d.geom.Tracks))
	enc.PutInt(uint64(d.geom.Sectors))
	enc.PutInt(uint64(d.geom.Blocks))
	enc.PutInt(uint64(d.geom.DataSize))

	if d.formatted {
		enc.PutInt(1)
	} else {
		enc.PutInt(0)
	}

	for _, t := range d.allTSBs() {
		rec := d.at(t)

		if rec.Active {
			enc.PutInt(1)
		} else {
			enc.PutInt(0)
		}

		enc.PutInt(uint64(rec.Header.Track))
		enc.PutInt(uint64(rec.Header.Sector))
		enc.PutInt(uint64(rec.Header.Block))
		enc.PutBytes(rec.Data)
	}

	_, err := w.Write(enc.Finish())
	return err
}

// ReadImage reconstructs a driver from a serialized image.
func ReadImage(r io.Reader) (*Driver, error) {
	raw, err := io.ReadAll(r)

	if err != nil {
		return nil, err
	}

	if len(raw) < 6*8 {
		return nil, errors.New("disk image truncated")
	}

	dec := marshal.NewDec(raw)

	if dec.GetInt() != imageMagic {
		return nil, errors.New("not a disk image")
	}

	geom := Geometry{
		Tracks:   int(dec.GetInt()),
		Sectors:  int(dec.GetInt()),
		Blocks:   int(dec.GetInt()),
		DataSize: int(dec.GetInt()),
	}

	if geom.Tracks < 2 || geom.Sectors < 1 || geom.Blocks < 1 ||
		geom.DataSize < 1 {
		return nil, fmt.Errorf("invalid disk image geometry %+v", geom)
	}

	d := NewDriver(geom)

	if len(raw) != int(d.imageSize()) {
		return nil, errors.New("disk image truncated")
	}

	d.formatted = dec.GetInt() == 1

	for _, t := range d.allTSBs() {
		rec := d.at(t)

		rec.Active = dec.GetInt() == 1
		rec.Header = TSB{
			Track:  uint8(dec.GetInt()),
			Sector: uint8(dec.GetInt()),
			Block:  uint8(dec.GetInt()),
		}
		copy(rec.Data, dec.GetBytes(uint64(geom.DataSize)))
	}

	return d, nil
}
