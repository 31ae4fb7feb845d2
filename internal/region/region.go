package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Region is one backing store of entries addressed by index.
//
// Implementations are not safe for concurrent mutation; Provider serializes
// access with a per-region read/write lock.
type Region interface {
	// WriteValue stores data at index, replacing any previous entry.
	WriteValue(index int, data []byte) error
	// Delete removes the entry at index if present.
	Delete(index int) error
	// LoadValue returns the entry at index and whether it was present.
	LoadValue(index int) ([]byte, bool, error)
	// HasValue reports whether an entry is present at index.
	HasValue(index int) (bool, error)
	// ForEachKey calls fn for every present index without loading payloads.
	ForEachKey(fn func(index int) error) error
	// Close flushes buffered entries and releases the backing file.
	Close() error
}

// ReadRegion is an immutable, fully in-memory view of a region file. It is
// safe for concurrent use once opened.
type ReadRegion struct {
	path       string
	sectorSize int
	keyCount   int
	data       []byte
}

var _ Region = (*ReadRegion)(nil)

// OpenReadRegion reads the region file at path into memory.
//
// Precondition: sectorSize > 0; keyCount > 0.
// Postcondition: Returns a region whose reads never touch the file again.
func OpenReadRegion(path string, keyCount, sectorSize int) (*ReadRegion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading region %s: %w", path, err)
	}
	return &ReadRegion{path: path, sectorSize: sectorSize, keyCount: keyCount, data: data}, nil
}

func (r *ReadRegion) word(index int) uint32 {
	if index < 0 || index >= r.keyCount {
		return 0
	}
	at := index * 4
	if at+4 > len(r.data) {
		return 0
	}
	return binary.BigEndian.Uint32(r.data[at : at+4])
}

// HasValue reports whether the header word for index is non-zero.
func (r *ReadRegion) HasValue(index int) (bool, error) {
	return r.word(index) != 0, nil
}

// LoadValue returns a copy of the entry at index.
//
// A header word pointing past the end of the file, or a length prefix larger
// than its allocation, yields ErrCorruptEntry for that entry only.
func (r *ReadRegion) LoadValue(index int) ([]byte, bool, error) {
	w := r.word(index)
	if w == 0 {
		return nil, false, nil
	}
	loc := Unpack(w)
	start := loc.Offset * r.sectorSize
	end := start + loc.Size*r.sectorSize
	if loc.Size == 0 || loc.Offset < headerSectors(r.keyCount, r.sectorSize) || end > len(r.data) {
		return nil, false, fmt.Errorf("%w: %s index %d: offset %d size %d, file is %d bytes",
			ErrCorruptEntry, filepath.Base(r.path), index, loc.Offset, loc.Size, len(r.data))
	}
	n := int(binary.BigEndian.Uint32(r.data[start : start+lengthPrefix]))
	if n < 0 || n+lengthPrefix > end-start {
		return nil, false, fmt.Errorf("%w: %s index %d: length %d exceeds %d sectors",
			ErrCorruptEntry, filepath.Base(r.path), index, n, loc.Size)
	}
	out := make([]byte, n)
	copy(out, r.data[start+lengthPrefix:start+lengthPrefix+n])
	return out, true, nil
}

// ForEachKey visits every index with a non-zero header word in index order.
func (r *ReadRegion) ForEachKey(fn func(index int) error) error {
	for i := 0; i < r.keyCount; i++ {
		if r.word(i) == 0 {
			continue
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// WriteValue always fails with ErrReadOnly.
func (r *ReadRegion) WriteValue(int, []byte) error { return ErrReadOnly }

// Delete always fails with ErrReadOnly.
func (r *ReadRegion) Delete(int) error { return ErrReadOnly }

// Close drops the in-memory copy.
func (r *ReadRegion) Close() error {
	r.data = nil
	return nil
}

// WriteRegion buffers every entry in memory and writes the whole file on
// Close. Entries already present in the file are loaded on the first mutation
// so that re-opening a flushed region keeps its contents.
type WriteRegion struct {
	path       string
	sectorSize int
	keyCount   int
	entries    [][]byte // length-prefixed, sector-padded
	used       int      // sectors held by entries
	corrupt    map[int]error
}

var _ Region = (*WriteRegion)(nil)

// NewWriteRegion prepares a write region for path. The file is not touched
// until the first mutation.
//
// Precondition: sectorSize > 0; keyCount > 0.
func NewWriteRegion(path string, keyCount, sectorSize int) *WriteRegion {
	return &WriteRegion{path: path, sectorSize: sectorSize, keyCount: keyCount}
}

// ensureLoaded reads the existing file once. A header word that points
// outside the file is recorded as corrupt and the remaining entries still
// load, so a later Close keeps them.
func (w *WriteRegion) ensureLoaded() error {
	if w.entries != nil {
		return nil
	}
	entries := make([][]byte, w.keyCount)
	data, err := os.ReadFile(w.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading existing region %s: %w", w.path, err)
	}
	used := 0
	var corrupt map[int]error
	if len(data) >= w.keyCount*4 {
		first := headerSectors(w.keyCount, w.sectorSize)
		for i := 0; i < w.keyCount; i++ {
			loc := Unpack(binary.BigEndian.Uint32(data[i*4:]))
			if loc.Size == 0 {
				continue
			}
			start := loc.Offset * w.sectorSize
			end := start + loc.Size*w.sectorSize
			if end > len(data) || loc.Offset < first ||
				int(binary.BigEndian.Uint32(data[start:]))+lengthPrefix > end-start {
				if corrupt == nil {
					corrupt = make(map[int]error)
				}
				corrupt[i] = fmt.Errorf("%w: %s index %d: offset %d size %d, file is %d bytes",
					ErrCorruptEntry, filepath.Base(w.path), i, loc.Offset, loc.Size, len(data))
				continue
			}
			buf := make([]byte, end-start)
			copy(buf, data[start:end])
			entries[i] = buf
			used += loc.Size
		}
	}
	w.entries, w.used, w.corrupt = entries, used, corrupt
	return nil
}

// WriteValue buffers data at index.
//
// Capacity is checked here rather than at Close: ErrEntryTooLarge and
// ErrRegionFull leave the region unchanged so the caller can route the entry
// to an overflow store.
func (w *WriteRegion) WriteValue(index int, data []byte) error {
	if index < 0 || index >= w.keyCount {
		return fmt.Errorf("region: index %d out of range [0, %d)", index, w.keyCount)
	}
	if err := w.ensureLoaded(); err != nil {
		return err
	}
	sectors := entrySectors(len(data), w.sectorSize)
	if sectors > MaxSize {
		return fmt.Errorf("%w: %d bytes need %d sectors", ErrEntryTooLarge, len(data), sectors)
	}
	used := w.used + sectors
	if old := w.entries[index]; old != nil {
		used -= len(old) / w.sectorSize
	}
	if headerSectors(w.keyCount, w.sectorSize)+used-1 > MaxOffset {
		return fmt.Errorf("%w: %s holds %d sectors", ErrRegionFull, filepath.Base(w.path), used)
	}

	buf := make([]byte, sectors*w.sectorSize)
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[lengthPrefix:], data)
	w.entries[index] = buf
	w.used = used
	delete(w.corrupt, index)
	return nil
}

// Delete removes the buffered entry at index.
func (w *WriteRegion) Delete(index int) error {
	if index < 0 || index >= w.keyCount {
		return nil
	}
	if err := w.ensureLoaded(); err != nil {
		return err
	}
	if old := w.entries[index]; old != nil {
		w.used -= len(old) / w.sectorSize
		w.entries[index] = nil
	}
	delete(w.corrupt, index)
	return nil
}

// LoadValue returns the buffered entry at index. An index whose header word
// was corrupt yields ErrCorruptEntry until it is written or deleted.
func (w *WriteRegion) LoadValue(index int) ([]byte, bool, error) {
	if err := w.ensureLoaded(); err != nil {
		return nil, false, err
	}
	if err, ok := w.corrupt[index]; ok {
		return nil, false, err
	}
	if index < 0 || index >= w.keyCount || w.entries[index] == nil {
		return nil, false, nil
	}
	buf := w.entries[index]
	n := int(binary.BigEndian.Uint32(buf))
	if n+lengthPrefix > len(buf) {
		return nil, false, fmt.Errorf("%w: %s index %d", ErrCorruptEntry, filepath.Base(w.path), index)
	}
	out := make([]byte, n)
	copy(out, buf[lengthPrefix:lengthPrefix+n])
	return out, true, nil
}

// HasValue reports whether an entry is buffered at index.
func (w *WriteRegion) HasValue(index int) (bool, error) {
	if err := w.ensureLoaded(); err != nil {
		return false, err
	}
	if err, ok := w.corrupt[index]; ok {
		return false, err
	}
	return index >= 0 && index < w.keyCount && w.entries[index] != nil, nil
}

// ForEachKey visits every buffered or corrupt index in index order.
func (w *WriteRegion) ForEachKey(fn func(index int) error) error {
	if err := w.ensureLoaded(); err != nil {
		return err
	}
	for i, e := range w.entries {
		if _, bad := w.corrupt[i]; e == nil && !bad {
			continue
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// Close packs the header from a running sector counter that starts right
// after the header, then writes the header followed by every entry in index
// order. Missing and corrupt entries get a zero header word. The file is not
// truncated.
func (w *WriteRegion) Close() error {
	if w.entries == nil {
		return nil
	}
	header := make([]byte, w.keyCount*4)
	pos := headerSectors(w.keyCount, w.sectorSize)
	for i, e := range w.entries {
		if e == nil {
			continue
		}
		n := len(e) / w.sectorSize
		word, err := Pack(EntryLocation{Offset: pos, Size: n})
		if err != nil {
			return fmt.Errorf("packing %s index %d: %w", filepath.Base(w.path), i, err)
		}
		binary.BigEndian.PutUint32(header[i*4:], word)
		pos += n
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening region %s: %w", w.path, err)
	}
	// The header is padded out to its full sector count.
	padded := make([]byte, headerSectors(w.keyCount, w.sectorSize)*w.sectorSize)
	copy(padded, header)
	if _, err := f.Write(padded); err != nil {
		f.Close()
		return fmt.Errorf("writing region header %s: %w", w.path, err)
	}
	for _, e := range w.entries {
		if e == nil {
			continue
		}
		if _, err := f.Write(e); err != nil {
			f.Close()
			return fmt.Errorf("writing region %s: %w", w.path, err)
		}
	}
	w.entries = nil
	w.used = 0
	w.corrupt = nil
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing region %s: %w", w.path, err)
	}
	return nil
}
