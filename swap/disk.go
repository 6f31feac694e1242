package swap

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Disk is the block-device collaborator contract (spec.md §6): sector-
// granular read/write plus a sector count, grounded on
// biscuit/src/fs/blk.go's Disk_i interface.
type Disk interface {
	// Size returns the device's capacity in sectors.
	Size() int

	// ReadSector reads one SECTOR_SIZE-byte sector into buf.
	ReadSector(sector int, buf []byte) error

	// WriteSector writes one SECTOR_SIZE-byte sector from buf.
	WriteSector(sector int, buf []byte) error
}

// HostDisk implements Disk over a regular host file, standing in for the
// swap device's block channel (spec.md §6's disk_get/disk_read/disk_write).
// Sector I/O goes through golang.org/x/sys/unix.Pread/Pwrite, and the file
// is sized up-front with unix.Ftruncate — the host-process equivalent of
// attaching a fixed-size block device.
type HostDisk struct {
	f       *os.File
	sectors int
}

// NewHostDisk creates (or truncates) path to hold numSectors sectors and
// returns a Disk backed by it.
func NewHostDisk(path string, numSectors int) (*HostDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "swap: open device %s", path)
	}
	size := int64(numSectors) * SECTOR_SIZE
	if err := unix.Ftruncate(int(f.Fd()), size); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "swap: size device %s to %d bytes", path, size)
	}
	return &HostDisk{f: f, sectors: numSectors}, nil
}

// Close releases the underlying file descriptor.
func (d *HostDisk) Close() error {
	return d.f.Close()
}

// Size returns the device's capacity in sectors.
func (d *HostDisk) Size() int {
	return d.sectors
}

func (d *HostDisk) checkSector(sector int, buf []byte) error {
	if len(buf) != SECTOR_SIZE {
		return fmt.Errorf("swap: buffer must be exactly %d bytes, got %d", SECTOR_SIZE, len(buf))
	}
	if sector < 0 || sector >= d.sectors {
		return fmt.Errorf("swap: sector %d out of range [0,%d)", sector, d.sectors)
	}
	return nil
}

// ReadSector reads sector into buf via a positioned pread, avoiding any
// shared file offset races between concurrent callers.
func (d *HostDisk) ReadSector(sector int, buf []byte) error {
	if err := d.checkSector(sector, buf); err != nil {
		return err
	}
	off := int64(sector) * SECTOR_SIZE
	n, err := unix.Pread(int(d.f.Fd()), buf, off)
	if err != nil {
		return errors.Wrapf(err, "swap: read sector %d", sector)
	}
	if n != SECTOR_SIZE {
		return fmt.Errorf("swap: short read at sector %d: got %d bytes", sector, n)
	}
	return nil
}

// WriteSector writes buf to sector via a positioned pwrite.
func (d *HostDisk) WriteSector(sector int, buf []byte) error {
	if err := d.checkSector(sector, buf); err != nil {
		return err
	}
	off := int64(sector) * SECTOR_SIZE
	n, err := unix.Pwrite(int(d.f.Fd()), buf, off)
	if err != nil {
		return errors.Wrapf(err, "swap: write sector %d", sector)
	}
	if n != SECTOR_SIZE {
		return fmt.Errorf("swap: short write at sector %d: wrote %d bytes", sector, n)
	}
	return nil
}

// MemDisk is an in-memory Disk used by tests that want swap round-trip
// behavior without touching the filesystem.
type MemDisk struct {
	sectors [][SECTOR_SIZE]byte
}

// NewMemDisk creates an in-memory disk of numSectors sectors, all zeroed.
func NewMemDisk(numSectors int) *MemDisk {
	return &MemDisk{sectors: make([][SECTOR_SIZE]byte, numSectors)}
}

func (d *MemDisk) Size() int { return len(d.sectors) }

func (d *MemDisk) ReadSector(sector int, buf []byte) error {
	if len(buf) != SECTOR_SIZE {
		return fmt.Errorf("swap: buffer must be exactly %d bytes", SECTOR_SIZE)
	}
	if sector < 0 || sector >= len(d.sectors) {
		return fmt.Errorf("swap: sector %d out of range", sector)
	}
	copy(buf, d.sectors[sector][:])
	return nil
}

func (d *MemDisk) WriteSector(sector int, buf []byte) error {
	if len(buf) != SECTOR_SIZE {
		return fmt.Errorf("swap: buffer must be exactly %d bytes", SECTOR_SIZE)
	}
	if sector < 0 || sector >= len(d.sectors) {
		return fmt.Errorf("swap: sector %d out of range", sector)
	}
	copy(d.sectors[sector][:], buf)
	return nil
}
