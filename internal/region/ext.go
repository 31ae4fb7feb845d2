package region

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// extSuffix names the overflow directory next to a region file.
const extSuffix = ".ext"

// ExtRegion is the unbounded overflow store for one region: a directory
// holding one file per index. Entries too large for the packed header, or
// past its offset budget, live here.
type ExtRegion struct {
	dir string
}

var _ Region = (*ExtRegion)(nil)

// NewExtRegion returns the overflow store rooted at dir. The directory is
// created on the first write.
func NewExtRegion(dir string) *ExtRegion {
	return &ExtRegion{dir: dir}
}

func (e *ExtRegion) file(index int) string {
	return filepath.Join(e.dir, strconv.Itoa(index))
}

// WriteValue writes data to the index's file.
func (e *ExtRegion) WriteValue(index int, data []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("creating ext dir %s: %w", e.dir, err)
	}
	if err := os.WriteFile(e.file(index), data, 0o644); err != nil {
		return fmt.Errorf("writing ext entry %s: %w", e.file(index), err)
	}
	return nil
}

// Delete removes the index's file if present.
func (e *ExtRegion) Delete(index int) error {
	err := os.Remove(e.file(index))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing ext entry %s: %w", e.file(index), err)
	}
	return nil
}

// LoadValue reads the index's file.
func (e *ExtRegion) LoadValue(index int) ([]byte, bool, error) {
	data, err := os.ReadFile(e.file(index))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading ext entry %s: %w", e.file(index), err)
	}
	return data, true, nil
}

// HasValue reports whether the index's file exists.
func (e *ExtRegion) HasValue(index int) (bool, error) {
	_, err := os.Stat(e.file(index))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ForEachKey visits every numerically named file in ascending index order.
func (e *ExtRegion) ForEachKey(fn func(index int) error) error {
	entries, err := os.ReadDir(e.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing ext dir %s: %w", e.dir, err)
	}
	var indices []int
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		i, err := strconv.Atoi(de.Name())
		if err != nil {
			continue
		}
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; every write goes straight to disk.
func (e *ExtRegion) Close() error { return nil }
