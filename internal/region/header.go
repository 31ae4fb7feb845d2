package region

import (
	"errors"
	"fmt"
)

const (
	sizeBits = 8
	sizeMask = 1<<sizeBits - 1

	// MaxSize is the largest entry size, in sectors, a header word can hold.
	MaxSize = sizeMask
	// MaxOffset is the largest entry offset, in sectors, a header word can hold.
	MaxOffset = 1<<(32-sizeBits) - 1

	// DefaultSectorSize is the allocation granule used by the cubic format.
	DefaultSectorSize = 512

	lengthPrefix = 4
)

var (
	// ErrEntryTooLarge is returned when an entry needs more than MaxSize sectors.
	ErrEntryTooLarge = errors.New("region: entry exceeds maximum sector count")
	// ErrRegionFull is returned when an entry would start past MaxOffset.
	ErrRegionFull = errors.New("region: entry offset exceeds maximum")
	// ErrCorruptEntry is returned when a header word points outside the file
	// or the stored length does not fit the allocated sectors.
	ErrCorruptEntry = errors.New("region: corrupt entry")
	// ErrReadOnly is returned by mutating calls on a read region.
	ErrReadOnly = errors.New("region: region is read-only")
)

// EntryLocation is the unpacked form of a header word.
type EntryLocation struct {
	// Offset is the first sector of the entry.
	Offset int
	// Size is the number of sectors allocated to the entry.
	Size int
}

// Pack encodes loc as size | offset<<8.
//
// Postcondition: Unpack(Pack(loc)) == loc when err is nil.
func Pack(loc EntryLocation) (uint32, error) {
	if loc.Size < 0 || loc.Size > MaxSize {
		return 0, fmt.Errorf("%w: size %d, max %d", ErrEntryTooLarge, loc.Size, MaxSize)
	}
	if loc.Offset < 0 || loc.Offset > MaxOffset {
		return 0, fmt.Errorf("%w: offset %d, max %d", ErrRegionFull, loc.Offset, MaxOffset)
	}
	return uint32(loc.Size) | uint32(loc.Offset)<<sizeBits, nil
}

// Unpack decodes a header word.
func Unpack(word uint32) EntryLocation {
	return EntryLocation{Offset: int(word >> sizeBits), Size: int(word & sizeMask)}
}

// headerSectors is the number of sectors occupied by a keyCount-word header.
func headerSectors(keyCount, sectorSize int) int {
	return ceilDiv(keyCount*4, sectorSize)
}

// entrySectors is the number of sectors needed by an entry of n payload bytes.
func entrySectors(n, sectorSize int) int {
	return ceilDiv(n+lengthPrefix, sectorSize)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
