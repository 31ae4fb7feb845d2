package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// Directory names of the two layers under a dimension root.
const (
	ColumnDir = "region2d"
	CubeDir   = "region3d"
)

// Section is one layer (columns or cubes) of a save: the region files plus
// their ".ext" overflow directories.
type Section struct {
	layout  Layout
	regions *Provider
	ext     *Provider
}

// NewSection composes a layer from its two providers.
//
// Precondition: layout, regions, and ext must be non-nil.
func NewSection(layout Layout, regions, ext *Provider) *Section {
	return &Section{layout: layout, regions: regions, ext: ext}
}

// Layout returns the section's coordinate layout.
func (s *Section) Layout() Layout { return s.layout }

// Save stores data for pos. Entries that do not fit the packed header are
// written to the overflow store instead, and any stale copy in the region is
// removed.
func (s *Section) Save(pos geom.Vec3, data []byte) error {
	key, idx := s.layout.Locate(pos)
	err := s.regions.GetOrCreate(key, func(r Region) error {
		return r.WriteValue(idx, data)
	})
	if !errors.Is(err, ErrEntryTooLarge) && !errors.Is(err, ErrRegionFull) {
		return err
	}
	if _, err := s.regions.UpdateExisting(key, func(r Region) error { return r.Delete(idx) }); err != nil {
		return err
	}
	return s.ext.GetOrCreate(key, func(r Region) error {
		return r.WriteValue(idx, data)
	})
}

// Delete removes pos from the region and from the overflow store. Stores
// that were never written are left alone.
func (s *Section) Delete(pos geom.Vec3) error {
	key, idx := s.layout.Locate(pos)
	del := func(r Region) error { return r.Delete(idx) }
	if _, err := s.regions.UpdateExisting(key, del); err != nil {
		return err
	}
	_, err := s.ext.UpdateExisting(key, del)
	return err
}

// Load returns the entry for pos, trying the region before the overflow store.
func (s *Section) Load(pos geom.Vec3) ([]byte, bool, error) {
	key, idx := s.layout.Locate(pos)
	var (
		data []byte
		ok   bool
	)
	load := func(r Region) error {
		var err error
		data, ok, err = r.LoadValue(idx)
		return err
	}
	if _, err := s.regions.GetExisting(key, load); err != nil {
		return nil, false, err
	}
	if ok {
		return data, true, nil
	}
	if _, err := s.ext.GetExisting(key, load); err != nil {
		return nil, false, err
	}
	return data, ok, nil
}

// Has reports whether pos is present in either store.
func (s *Section) Has(pos geom.Vec3) (bool, error) {
	key, idx := s.layout.Locate(pos)
	var ok bool
	has := func(r Region) error {
		var err error
		ok, err = r.HasValue(idx)
		return err
	}
	if _, err := s.regions.GetExisting(key, has); err != nil || ok {
		return ok, err
	}
	_, err := s.ext.GetExisting(key, has)
	return ok, err
}

// ForEachRegion visits every region key present in either store, once.
func (s *Section) ForEachRegion(fn func(RegionKey) error) error {
	seen := make(map[RegionKey]bool)
	visit := func(k RegionKey) error {
		if seen[k] {
			return nil
		}
		seen[k] = true
		return fn(k)
	}
	if err := s.regions.ForEachRegion(visit); err != nil {
		return err
	}
	return s.ext.ForEachRegion(visit)
}

// ForEachKeyIn visits every entry position stored in region key, region
// entries first, skipping overflow entries that shadow a region entry.
func (s *Section) ForEachKeyIn(key RegionKey, fn func(geom.Vec3) error) error {
	seen := make(map[int]bool)
	if _, err := s.regions.GetExisting(key, func(r Region) error {
		return r.ForEachKey(func(i int) error {
			seen[i] = true
			return fn(s.layout.Position(key, i))
		})
	}); err != nil {
		return err
	}
	_, err := s.ext.GetExisting(key, func(r Region) error {
		return r.ForEachKey(func(i int) error {
			if seen[i] {
				return nil
			}
			return fn(s.layout.Position(key, i))
		})
	})
	return err
}

// Close closes both providers, reporting every failure.
func (s *Section) Close() error {
	return multierr.Combine(s.regions.Close(), s.ext.Close())
}

// SaveOptions configures OpenSave.
type SaveOptions struct {
	// Write opens write regions and creates the directory layout.
	Write      bool
	SectorSize int
	CacheSize  int
}

// Save is the storage of one dimension: a column section over region2d and a
// cube section over region3d.
type Save struct {
	Root    string
	Columns *Section
	Cubes   *Section
}

// OpenSave opens the save rooted at root.
//
// Precondition: root must exist when opts.Write is false.
// Postcondition: In write mode root/region2d and root/region3d exist.
func OpenSave(root string, opts SaveOptions) (*Save, error) {
	if opts.SectorSize <= 0 {
		opts.SectorSize = DefaultSectorSize
	}
	col := filepath.Join(root, ColumnDir)
	cube := filepath.Join(root, CubeDir)
	if opts.Write {
		for _, d := range []string{col, cube} {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", d, err)
			}
		}
	} else if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("opening save %s: %w", root, err)
	}

	section := func(dir string, layout Layout) *Section {
		return NewSection(layout,
			NewProvider(FileFactory{Dir: dir, Layout: layout, SectorSize: opts.SectorSize, Write: opts.Write}, opts.CacheSize),
			NewProvider(ExtFactory{Dir: dir, Layout: layout}, opts.CacheSize),
		)
	}
	return &Save{
		Root:    root,
		Columns: section(col, Column),
		Cubes:   section(cube, Cube),
	}, nil
}

// Close flushes both sections.
func (s *Save) Close() error {
	return multierr.Combine(s.Columns.Close(), s.Cubes.Close())
}

// AnvilDir is the vanilla region directory under a dimension root.
const AnvilDir = "region"

// OpenAnvil opens the vanilla region files under root/region read-only.
// Oversized chunks kept by newer servers as "c.x.z.mcc" files are not read.
func OpenAnvil(root string, cacheSize int) *Section {
	dir := filepath.Join(root, AnvilDir)
	return NewSection(Anvil,
		NewProvider(FileFactory{Dir: dir, Layout: Anvil, SectorSize: AnvilSectorSize}, cacheSize),
		NewProvider(ExtFactory{Dir: dir, Layout: Anvil}, cacheSize),
	)
}
