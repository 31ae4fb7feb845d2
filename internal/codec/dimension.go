// Package codec defines the data handed between format plugins and the
// conversion pipeline: dimensions, column payloads, and the reader, converter,
// and writer contracts.
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Dimension is a named sub-world stored under Directory, relative to the save
// root. The primary dimension has an empty Directory.
type Dimension struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// Path returns the dimension's root inside the save at root.
func (d Dimension) Path(root string) string {
	if d.Directory == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(d.Directory))
}

func (d Dimension) String() string {
	if d.Directory == "" {
		return d.Name
	}
	return d.Name + " (" + d.Directory + ")"
}

// Built-in dimensions.
var (
	Overworld = Dimension{Name: "Overworld", Directory: ""}
	Nether    = Dimension{Name: "The Nether", Directory: "DIM-1"}
	End       = Dimension{Name: "The End", Directory: "DIM1"}
)

// Dimensions is an ordered, duplicate-free set of dimensions. It is built once
// at startup and passed to the plugins that need it.
type Dimensions struct {
	list []Dimension
}

// NewDimensions returns a set of dims in order.
//
// Precondition: names and directories are unique; a directory may not escape
// the save root.
func NewDimensions(dims ...Dimension) (*Dimensions, error) {
	var errs []string
	names := make(map[string]bool, len(dims))
	dirs := make(map[string]bool, len(dims))
	for _, d := range dims {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("dimension in %q has no name", d.Directory))
		}
		if names[d.Name] {
			errs = append(errs, fmt.Sprintf("duplicate dimension name %q", d.Name))
		}
		if dirs[d.Directory] {
			errs = append(errs, fmt.Sprintf("duplicate dimension directory %q", d.Directory))
		}
		if filepath.IsAbs(d.Directory) || strings.Contains(d.Directory, "..") {
			errs = append(errs, fmt.Sprintf("dimension directory %q escapes the save", d.Directory))
		}
		names[d.Name] = true
		dirs[d.Directory] = true
	}
	if len(errs) > 0 {
		return nil, errors.New("invalid dimensions: " + strings.Join(errs, "; "))
	}
	return &Dimensions{list: append([]Dimension(nil), dims...)}, nil
}

// DefaultDimensions returns the overworld, nether, and end.
func DefaultDimensions() *Dimensions {
	return &Dimensions{list: []Dimension{Overworld, Nether, End}}
}

// With returns a new set extended by extra.
func (s *Dimensions) With(extra ...Dimension) (*Dimensions, error) {
	return NewDimensions(append(s.All(), extra...)...)
}

// All returns the dimensions in declaration order.
func (s *Dimensions) All() []Dimension {
	return append([]Dimension(nil), s.list...)
}

// ByDirectory finds the dimension stored in dir.
func (s *Dimensions) ByDirectory(dir string) (Dimension, bool) {
	for _, d := range s.list {
		if d.Directory == dir {
			return d, true
		}
	}
	return Dimension{}, false
}
