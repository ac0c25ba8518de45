package blockio

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/eduos/kernel/pkg/errors"
)

// diskStore persists sector contents in a badger key-value store, one
// key per LBA, standing in for the physical platters behind the ATA
// PIO contract of spec.md §4.11. A zone/device never written reads
// back as a zero-filled sector, matching a freshly formatted disk.
type diskStore struct {
	db *badger.DB
}

func openDiskStore(dir string) (*diskStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(errors.EIO, err)
	}
	return &diskStore{db: db}, nil
}

func (d *diskStore) close() error {
	return d.db.Close()
}

func sectorKey(lba uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, lba)
	return key
}

// readSector copies the stored sector for lba into buf, which must be
// exactly SectorSize bytes. An LBA never written reads as all zeros.
func (d *diskStore) readSector(lba uint64, buf []byte) error {
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sectorKey(lba))
		if err == badger.ErrKeyNotFound {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		if err != nil {
			return err
		}
		got, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		copy(buf, got)
		return nil
	})
	if err != nil {
		return errors.Join(errors.EIO, err)
	}
	return nil
}

// writeSector persists buf (exactly SectorSize bytes) as lba's sector.
func (d *diskStore) writeSector(lba uint64, buf []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sectorKey(lba), append([]byte(nil), buf...))
	})
	if err != nil {
		return errors.Join(errors.EIO, err)
	}
	return nil
}
