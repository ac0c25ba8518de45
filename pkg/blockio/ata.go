// Package blockio implements the single-sector ATA read/write contract
// of spec.md §4.11: select drive, write LBA and sector count, issue
// the command, wait for BSY=0 & DRQ=1 (or an error), then transfer one
// 512-byte sector. The DMA path is specified but left unimplemented:
// spec.md notes it is "currently disabled" because the IRQ path is
// unreliable under emulation, so only PIO is wired up (see DESIGN.md).
package blockio

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
)

// SectorSize is the fixed ATA sector size in bytes.
const SectorSize = 512

// StatusFunc reports a drive's controller status for the BSY/DRQ poll
// loop: busy, data-request-ready, and a hard device error.
type StatusFunc func() (busy, drq bool, deviceErr bool)

// alwaysReady is the default StatusFunc for a simulated drive that
// never has to wait.
func alwaysReady() (bool, bool, bool) { return false, true, false }

// Device is one (bus, drive) ATA unit.
type Device struct {
	mu     klock.Spinlock // held for the duration of one operation, per spec.md §4.11
	store  *diskStore
	status StatusFunc
}

// Open creates a Device backed by a badger store rooted at dir.
func Open(dir string) (*Device, error) {
	store, err := openDiskStore(dir)
	if err != nil {
		return nil, err
	}
	return &Device{store: store, status: alwaysReady}, nil
}

// Close releases the backing store.
func (d *Device) Close() error {
	return d.store.close()
}

// SetStatusFunc overrides the BSY/DRQ status source, used by tests to
// simulate a slow or failing drive without real hardware.
func (d *Device) SetStatusFunc(fn StatusFunc) {
	if fn == nil {
		fn = alwaysReady
	}
	d.status = fn
}

// awaitReady implements "wait for BSY=0 & DRQ=1 or error" via
// exponential backoff, returning ETIMEDOUT if the drive never becomes
// ready and EIO if it reports a hard error.
func (d *Device) awaitReady() error {
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		busy, drq, deviceErr := d.status()
		if deviceErr {
			return struct{}{}, backoff.Permanent(errors.EIO)
		}
		if busy || !drq {
			return struct{}{}, errors.New("ata: drive not ready")
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(8),
		backoff.WithMaxElapsedTime(2*time.Second),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.EIO) {
		return errors.EIO
	}
	return errors.ETIMEDOUT
}

// ReadSector reads LBA's 512-byte sector into buf. The device lock is
// held for the duration of the operation, per spec.md §4.11.
func (d *Device) ReadSector(lba uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return errors.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.awaitReady(); err != nil {
		return err
	}
	return d.store.readSector(lba, buf)
}

// WriteSector writes buf (exactly one sector) to lba.
func (d *Device) WriteSector(lba uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return errors.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.awaitReady(); err != nil {
		return err
	}
	return d.store.writeSector(lba, buf)
}
