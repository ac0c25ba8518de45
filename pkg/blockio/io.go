package blockio

import "github.com/eduos/kernel/pkg/errors"

// Read transfers n bytes starting at byte offset off into buf, composed
// from sector-aligned operations per spec.md §4.11: a prefix sector is
// read-modify-written (here, read-only, since Read never mutates the
// device) when off isn't sector-aligned, aligned middle sectors
// transfer whole, and a postfix sector is handled symmetrically. Zero
// length is a no-op that returns 0 without touching the device.
func (d *Device) Read(off, n uint64, buf []byte) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if off+n < off {
		return 0, errors.EOVERFLOW
	}
	if uint64(len(buf)) < n {
		return 0, errors.EINVAL
	}

	sector := make([]byte, SectorSize)
	written := uint64(0)
	lba := off / SectorSize
	pos := off % SectorSize

	for written < n {
		if err := d.ReadSector(lba, sector); err != nil {
			return int(written), err
		}
		take := SectorSize - pos
		if remaining := n - written; take > remaining {
			take = remaining
		}
		copy(buf[written:written+take], sector[pos:pos+take])
		written += take
		pos = 0
		lba++
	}
	return int(written), nil
}

// Write transfers n bytes from buf to byte offset off, composed from
// sector-aligned operations the same way Read is: a prefix/postfix
// partial sector is read, patched, and written back; aligned middle
// sectors transfer whole.
func (d *Device) Write(off, n uint64, buf []byte) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if off+n < off {
		return 0, errors.EOVERFLOW
	}
	if uint64(len(buf)) < n {
		return 0, errors.EINVAL
	}

	sector := make([]byte, SectorSize)
	done := uint64(0)
	lba := off / SectorSize
	pos := off % SectorSize

	for done < n {
		take := SectorSize - pos
		if remaining := n - done; take > remaining {
			take = remaining
		}
		if take < SectorSize {
			// Partial sector: read-modify-write.
			if err := d.ReadSector(lba, sector); err != nil {
				return int(done), err
			}
		}
		copy(sector[pos:pos+take], buf[done:done+take])
		if err := d.WriteSector(lba, sector); err != nil {
			return int(done), err
		}
		done += take
		pos = 0
		lba++
	}
	return int(done), nil
}
