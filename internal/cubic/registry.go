package cubic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/pipeline"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
)

// Settings is everything a converter needs to build a run.
type Settings struct {
	Src      string
	Dst      string
	Fallback string

	Dimensions *codec.Dimensions
	Tasks      []edittask.Task
	Config     edittask.Config
	// FixMissingTileEntities is passed to anvil2cc.
	FixMissingTileEntities bool

	Save     region.SaveOptions
	Pipeline pipeline.Options
	Logger   *zap.Logger
}

// Runner is a built conversion.
type Runner interface {
	Run(ctx context.Context) error
	Progress() pipeline.Progress
}

// Converter builds a Runner for one named conversion.
type Converter struct {
	Name        string
	Description string
	// Tasks reports whether the converter uses the edit-task list.
	Tasks bool
	// Fallback reports whether the converter needs a fallback source.
	Fallback bool
	Build    func(s Settings) (Runner, error)
	// LevelInfo writes the destination's non-region files after a run. Nil
	// copies them with CopyLevelInfo.
	LevelInfo func(s Settings) error
}

// ConvertLevelInfo runs c's level info step.
func (c *Converter) ConvertLevelInfo(s Settings) error {
	if c.LevelInfo != nil {
		return c.LevelInfo(s)
	}
	return CopyLevelInfo(s.Src, s.Dst)
}

// Registry maps converter names to their builders.
type Registry struct {
	byName map[string]*Converter
}

// NewRegistry builds a registry from convs.
//
// Precondition: names are unique and every converter has a Build function.
func NewRegistry(convs []Converter) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Converter, len(convs))}
	for i := range convs {
		c := &convs[i]
		if c.Build == nil {
			return nil, fmt.Errorf("converter %q has no builder", c.Name)
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate converter %q", c.Name)
		}
		r.byName[c.Name] = c
	}
	return r, nil
}

// DefaultRegistry returns the built-in converters.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinConverters())
	if err != nil {
		panic(fmt.Sprintf("cubic: built-in converters: %v", err))
	}
	return r
}

// Get returns the converter called name.
func (r *Registry) Get(name string) (*Converter, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build validates s against the named converter and builds its run.
func (r *Registry) Build(name string, s Settings) (Runner, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown converter %q (have %v)", name, r.Names())
	}
	var errs []error
	if s.Src == "" {
		errs = append(errs, errors.New("no source save"))
	}
	if s.Dst == "" {
		errs = append(errs, errors.New("no destination save"))
	}
	if c.Fallback && s.Fallback == "" {
		errs = append(errs, fmt.Errorf("converter %s needs a fallback save", name))
	}
	if s.Src != "" && s.Src == s.Dst {
		errs = append(errs, errors.New("source and destination are the same save"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Pipeline.Logger == nil {
		s.Pipeline.Logger = s.Logger
	}
	return c.Build(s)
}

func (s Settings) readerOptions() ReaderOptions {
	opts := ReaderOptions{Dimensions: s.Dimensions, Save: s.Save, Logger: s.Logger}
	if len(s.Tasks) > 0 {
		opts.RegionFilter = TaskRegionFilter(s.Tasks)
	}
	return opts
}

// BuiltinConverters returns the vanilla-to-cube and cube-to-cube conversions.
func BuiltinConverters() []Converter {
	return []Converter{
		{
			Name:        "anvil2cc",
			Description: "split a vanilla Anvil save into cubes",
			Build: func(s Settings) (Runner, error) {
				r := NewAnvilReader(s.Src, ReaderOptions{Dimensions: s.Dimensions, Save: s.Save, Logger: s.Logger})
				c := &Anvil2CC{FixMissingTileEntities: s.FixMissingTileEntities}
				w := NewWriter(s.Dst, s.Save, s.Logger)
				return pipeline.New[codec.AnvilColumn, codec.CubicColumn](r, c, w, s.Pipeline), nil
			},
			LevelInfo: func(s Settings) error {
				return ConvertAnvilLevelInfo(s.Src, s.Dst, s.Dimensions)
			},
		},
		{
			Name:        "cc2cc",
			Description: "copy a cube-split save",
			Build: func(s Settings) (Runner, error) {
				r := NewReader(s.Src, ReaderOptions{Dimensions: s.Dimensions, Save: s.Save, Logger: s.Logger})
				w := NewWriter(s.Dst, s.Save, s.Logger)
				return pipeline.New[codec.CubicColumn, codec.CubicColumn](r, PassThrough, w, s.Pipeline), nil
			},
		},
		{
			Name:        "relocating",
			Description: "copy a cube-split save, applying edit tasks",
			Tasks:       true,
			Build: func(s Settings) (Runner, error) {
				r := NewReader(s.Src, s.readerOptions())
				c := NewRelocating(s.Tasks, s.Config, s.Logger)
				w := NewPriorityWriter(s.Dst, s.Save, s.Logger)
				return pipeline.New[codec.CubicColumn, codec.PriorityColumn](r, c, w, s.Pipeline), nil
			},
		},
		{
			Name:        "merging",
			Description: "merge an edited save over a fallback save inside the task boxes",
			Tasks:       true,
			Fallback:    true,
			Build: func(s Settings) (Runner, error) {
				r := NewDualSourceReader(s.Src, s.Fallback, s.readerOptions())
				w := NewWriter(s.Dst, s.Save, s.Logger)
				return pipeline.New[codec.DualSourceColumn, codec.CubicColumn](r, NewMerging(s.Tasks), w, s.Pipeline), nil
			},
		},
	}
}
