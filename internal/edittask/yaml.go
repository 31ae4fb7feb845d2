package edittask

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// yamlTaskFile is the top-level YAML structure for task lists.
type yamlTaskFile struct {
	Config yamlConfig `yaml:"config"`
	Tasks  []yamlTask `yaml:"tasks"`
}

type yamlConfig struct {
	RelightSrc *bool `yaml:"relight_src"`
	RelightDst *bool `yaml:"relight_dst"`
}

// yamlTask is the YAML representation of one task. Fields not used by Op are
// ignored.
type yamlTask struct {
	Op         string    `yaml:"op"`
	Box        yamlBox   `yaml:"box"`
	Offset     []int     `yaml:"offset"`
	To         []int     `yaml:"to"`
	ID         int       `yaml:"id"`
	Meta       int       `yaml:"meta"`
	InID       int       `yaml:"in_id"`
	InMeta     yamlMeta  `yaml:"in_meta"`
	OutID      int       `yaml:"out_id"`
	OutMeta    int       `yaml:"out_meta"`
	Origin     []int     `yaml:"origin"`
	Degrees    int       `yaml:"degrees"`
	Path       string    `yaml:"path"`
	Dimension  string    `yaml:"dimension"`
	At         []int     `yaml:"at"`
	Transform  []float64 `yaml:"transform"`
	SkipAir    bool      `yaml:"skip_air"`
	RelightSrc *bool     `yaml:"relight_src"`
	RelightDst *bool     `yaml:"relight_dst"`
}

// yamlBox accepts either six integers or the word "all".
type yamlBox struct {
	set bool
	box geom.BoundingBox
}

func (b *yamlBox) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && strings.EqualFold(n.Value, "all") {
		b.set, b.box = true, geom.AllBox()
		return nil
	}
	var c []int
	if err := n.Decode(&c); err != nil {
		return fmt.Errorf("box: %w", err)
	}
	if len(c) != 6 {
		return fmt.Errorf("line %d: box needs 6 integers, got %d", n.Line, len(c))
	}
	b.set, b.box = true, geom.Box(c[0], c[1], c[2], c[3], c[4], c[5])
	return nil
}

// yamlMeta accepts a metadata value or "*".
type yamlMeta struct{ v int }

func (m *yamlMeta) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Value == "*" {
		m.v = AnyMeta
		return nil
	}
	return n.Decode(&m.v)
}

func vec3(name string, c []int) (geom.Vec3, error) {
	if len(c) != 3 {
		return geom.Vec3{}, fmt.Errorf("%s needs 3 integers, got %d", name, len(c))
	}
	return geom.V(c[0], c[1], c[2]), nil
}

// LoadYAMLFile reads a YAML task list.
//
// Precondition: path must point to a YAML task file.
// Postcondition: Returns the tasks in file order, preceded by a config task
// when the file sets any config key.
func (p *Parser) LoadYAMLFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}
	q := *p
	if q.BaseDir == "" {
		q.BaseDir = filepath.Dir(path)
	}
	tasks, err := q.LoadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// LoadYAML parses a YAML task list from bytes.
func (p *Parser) LoadYAML(data []byte) ([]Task, error) {
	var file yamlTaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task YAML: %w", err)
	}
	var tasks []Task
	if file.Config.RelightSrc != nil || file.Config.RelightDst != nil {
		tasks = append(tasks, ConfigTask(file.Config.RelightSrc, file.Config.RelightDst))
	}
	for i, yt := range file.Tasks {
		t, err := p.convertYAMLTask(yt)
		if err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i+1, yt.Op, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (p *Parser) convertYAMLTask(yt yamlTask) (Task, error) {
	op := strings.ToLower(yt.Op)
	if cmd, ok := p.Registry.Resolve(op); ok {
		op = cmd.Name
	}
	needsBox := op != "schematic" && op != "config"
	if needsBox && !yt.Box.set {
		return Task{}, fmt.Errorf("%w: missing box", ErrSyntax)
	}
	box := yt.Box.box

	switch op {
	case "keep":
		return Keep(box), nil
	case "remove":
		return Remove(box), nil
	case "retrack":
		return Retrack(box), nil
	case "cut":
		if yt.Offset == nil && yt.To == nil {
			return Cut(box, nil), nil
		}
		off, err := yt.offset(box)
		if err != nil {
			return Task{}, err
		}
		return Cut(box, &off), nil
	case "copy", "move":
		off, err := yt.offset(box)
		if err != nil {
			return Task{}, err
		}
		if op == "copy" {
			return Copy(box, off), nil
		}
		return Move(box, off), nil
	case "set":
		return Set(box, yt.ID, yt.Meta)
	case "replace":
		return Replace(box, yt.InID, yt.InMeta.v, yt.OutID, yt.OutMeta)
	case "rotate":
		origin, err := vec3("origin", yt.Origin)
		if err != nil {
			return Task{}, err
		}
		return Rotate(box, origin, yt.Degrees)
	case "schematic":
		return p.yamlSchematic(yt)
	case "config":
		return ConfigTask(yt.RelightSrc, yt.RelightDst), nil
	}
	return Task{}, fmt.Errorf("%w: unknown op %q", ErrSyntax, yt.Op)
}

func (yt yamlTask) offset(box geom.BoundingBox) (geom.Vec3, error) {
	switch {
	case yt.Offset != nil && yt.To != nil:
		return geom.Vec3{}, fmt.Errorf("%w: both offset and to given", ErrSyntax)
	case yt.To != nil:
		to, err := vec3("to", yt.To)
		if err != nil {
			return geom.Vec3{}, err
		}
		return to.Sub(box.Min), nil
	}
	return vec3("offset", yt.Offset)
}

func (p *Parser) yamlSchematic(yt yamlTask) (Task, error) {
	if yt.Path == "" {
		return Task{}, fmt.Errorf("%w: missing path", ErrSyntax)
	}
	var m geom.Matrix4
	switch {
	case yt.Transform != nil:
		if len(yt.Transform) != 16 {
			return Task{}, fmt.Errorf("transform needs 16 numbers, got %d", len(yt.Transform))
		}
		m = geom.FromRows(yt.Transform)
	default:
		at, err := vec3("at", yt.At)
		if err != nil {
			return Task{}, err
		}
		m = geom.Translation(at)
	}
	s, err := p.openSchematic(yt.Path)
	if err != nil {
		return Task{}, err
	}
	return Paste(s, m, yt.SkipAir, yt.Dimension)
}
