package cubic

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
)

// CopyLevelInfo copies every file of the save at src that is not region data
// into dst, keeping the directory structure. Existing files are overwritten.
func CopyLevelInfo(src, dst string) error {
	return copyTree(src, dst, func(rel string, d fs.DirEntry) bool {
		name := d.Name()
		return d.IsDir() && (name == region.ColumnDir || name == region.CubeDir || strings.HasSuffix(name, ".ext"))
	})
}

// ConvertAnvilLevelInfo writes dst/level.dat from the vanilla src/level.dat,
// marked as a cubic world, and copies every other file except vanilla region
// directories and existing cubic data.
func ConvertAnvilLevelInfo(src, dst string, dims *codec.Dimensions) error {
	raw, err := os.ReadFile(filepath.Join(src, "level.dat"))
	if err != nil {
		return fmt.Errorf("reading level.dat: %w", err)
	}
	root, err := nbt.Read(nbt.FamilyCubic, raw)
	if err != nil {
		return fmt.Errorf("decoding level.dat: %w", err)
	}
	data, ok := root.Compound("Data")
	if !ok {
		return errors.New("level.dat has no Data compound")
	}
	data.Put("isCubicWorld", nbt.Byte(1))
	if gen, _ := data.StringValue("generatorName"); strings.EqualFold(gen, "default") {
		data.Put("generatorName", nbt.String("VanillaCubic"))
	}
	out, err := nbt.Write(nbt.FamilyCubic, root)
	if err != nil {
		return fmt.Errorf("encoding level.dat: %w", err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dst, "level.dat"), out, 0o644); err != nil {
		return fmt.Errorf("writing level.dat: %w", err)
	}

	if dims == nil {
		dims = codec.DefaultDimensions()
	}
	regionDirs := map[string]bool{}
	for _, d := range dims.All() {
		regionDirs[filepath.Join(filepath.FromSlash(d.Directory), region.AnvilDir)] = true
	}
	return copyTree(src, dst, func(rel string, d fs.DirEntry) bool {
		if d.IsDir() {
			return regionDirs[rel]
		}
		return strings.Contains(d.Name(), "level.dat") || d.Name() == "cubicChunksData.dat"
	})
}

// copyTree copies src into dst, skipping entries for which skip returns true
// and never descending into dst itself. rel is relative to src.
func copyTree(src, dst string, skip func(rel string, d fs.DirEntry) bool) error {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == absDst {
				return filepath.SkipDir
			}
			if rel != "." && skip(rel, d) {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() || skip(rel, d) {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(from, to string) (err error) {
	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("copying level info: %w", err)
	}
	defer in.Close()
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("copying level info: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("copying level info: %w", cerr)
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", from, err)
	}
	return nil
}
