package swap

import (
	"bytes"
	"testing"
)

func TestMemDiskRoundTrip(t *testing.T) {
	d := NewMemDisk(4)
	if d.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", d.Size())
	}

	want := bytes.Repeat([]byte{0xAB}, SECTOR_SIZE)
	if err := d.WriteSector(2, want); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	got := make([]byte, SECTOR_SIZE)
	if err := d.ReadSector(2, got); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("ReadSector did not return the bytes last written")
	}

	untouched := make([]byte, SECTOR_SIZE)
	if err := d.ReadSector(0, untouched); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(untouched, make([]byte, SECTOR_SIZE)) {
		t.Fatal("sector 0 should still be zeroed")
	}
}

func TestMemDiskBoundsChecked(t *testing.T) {
	d := NewMemDisk(1)
	buf := make([]byte, SECTOR_SIZE)

	if err := d.ReadSector(-1, buf); err == nil {
		t.Fatal("ReadSector(-1, ...) should fail")
	}
	if err := d.ReadSector(1, buf); err == nil {
		t.Fatal("ReadSector(1, ...) should fail on a 1-sector disk")
	}
	if err := d.WriteSector(0, buf[:SECTOR_SIZE-1]); err == nil {
		t.Fatal("WriteSector with a short buffer should fail")
	}
}
