package edittask

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/schematic"
)

// ErrSyntax is wrapped by every script parse error.
var ErrSyntax = errors.New("edittask: syntax error")

// LineError reports the 1-based line of a failing script command.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseResult holds the command word and arguments of one script line.
type ParseResult struct {
	// Command is the first word of the line, lowercased.
	Command string
	Args    []string
}

// ParseLine splits a script line into a command and arguments.
//
// Postcondition: Command is empty for blank lines and comments.
func ParseLine(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return ParseResult{}
	}
	fields := strings.Fields(line)
	return ParseResult{Command: strings.ToLower(fields[0]), Args: fields[1:]}
}

// Parser reads line scripts into tasks.
type Parser struct {
	Registry *Registry
	// BaseDir resolves relative schematic paths. Empty means the working directory.
	BaseDir string
	// LoadSchematic reads a schematic file. Nil uses schematic.Load.
	LoadSchematic func(path string) (*schematic.Schematic, error)
}

// NewParser returns a parser using the built-in commands.
func NewParser(baseDir string) *Parser {
	return &Parser{Registry: DefaultRegistry(), BaseDir: baseDir}
}

// Parse reads every command in r.
//
// Postcondition: on error, the error is a *LineError naming the first bad line.
func (p *Parser) Parse(r io.Reader) ([]Task, error) {
	var tasks []Task
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		res := ParseLine(sc.Text())
		if res.Command == "" {
			continue
		}
		built, err := p.build(res)
		if err != nil {
			return nil, &LineError{Line: n, Text: strings.TrimSpace(sc.Text()), Err: err}
		}
		tasks = append(tasks, built...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading task script: %w", err)
	}
	return tasks, nil
}

// ParseFile parses the script at path. Schematic paths resolve against the
// script's directory when BaseDir is empty.
func (p *Parser) ParseFile(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task script: %w", err)
	}
	defer f.Close()
	q := *p
	if q.BaseDir == "" {
		q.BaseDir = filepath.Dir(path)
	}
	tasks, err := q.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

func (p *Parser) build(res ParseResult) ([]Task, error) {
	cmd, ok := p.Registry.Resolve(res.Command)
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrSyntax, res.Command)
	}
	a := &Args{list: res.Args}
	tasks, err := cmd.Build(p, a)
	if err == nil {
		err = a.Done()
	}
	if err != nil {
		if cmd.Usage != "" {
			return nil, fmt.Errorf("%w (usage: %s %s)", err, cmd.Name, cmd.Usage)
		}
		return nil, err
	}
	return tasks, nil
}

func (p *Parser) openSchematic(path string) (*schematic.Schematic, error) {
	if !filepath.IsAbs(path) && p.BaseDir != "" {
		path = filepath.Join(p.BaseDir, path)
	}
	if p.LoadSchematic != nil {
		return p.LoadSchematic(path)
	}
	return schematic.Load(path)
}

// Args is a cursor over the arguments of one command.
type Args struct {
	list []string
	i    int
}

// Peek returns the next argument lowercased without consuming it, or "".
func (a *Args) Peek() string {
	if a.i >= len(a.list) {
		return ""
	}
	return strings.ToLower(a.list[a.i])
}

// Next consumes one argument.
func (a *Args) Next(what string) (string, error) {
	if a.i >= len(a.list) {
		return "", fmt.Errorf("%w: missing %s", ErrSyntax, what)
	}
	s := a.list[a.i]
	a.i++
	return s, nil
}

// Keyword consumes the next argument, which must equal one of words.
func (a *Args) Keyword(words ...string) (string, error) {
	s, err := a.Next(strings.Join(words, "|"))
	if err != nil {
		return "", err
	}
	for _, w := range words {
		if strings.EqualFold(s, w) {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: expected %s, got %q", ErrSyntax, strings.Join(words, "|"), s)
}

// Int consumes an integer argument.
func (a *Args) Int(what string) (int, error) {
	s, err := a.Next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrSyntax, what, s)
	}
	return v, nil
}

// Float consumes a numeric argument.
func (a *Args) Float(what string) (float64, error) {
	s, err := a.Next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrSyntax, what, s)
	}
	return v, nil
}

// Vec consumes three integers.
func (a *Args) Vec(what string) (geom.Vec3, error) {
	var c [3]int
	for i, axis := range []string{"x", "y", "z"} {
		v, err := a.Int(what + " " + axis)
		if err != nil {
			return geom.Vec3{}, err
		}
		c[i] = v
	}
	return geom.V(c[0], c[1], c[2]), nil
}

// Box consumes "all" or six integers.
func (a *Args) Box() (geom.BoundingBox, error) {
	if a.Peek() == "all" {
		a.i++
		return geom.AllBox(), nil
	}
	lo, err := a.Vec("box corner")
	if err != nil {
		return geom.BoundingBox{}, err
	}
	hi, err := a.Vec("box corner")
	if err != nil {
		return geom.BoundingBox{}, err
	}
	return geom.NewBox(lo, hi), nil
}

// Offset consumes "to x y z" or "by x y z" relative to box.
func (a *Args) Offset(box geom.BoundingBox) (geom.Vec3, error) {
	kw, err := a.Keyword("to", "by")
	if err != nil {
		return geom.Vec3{}, err
	}
	v, err := a.Vec(kw)
	if err != nil {
		return geom.Vec3{}, err
	}
	if kw == "to" {
		return v.Sub(box.Min), nil
	}
	return v, nil
}

// Done fails if arguments remain.
func (a *Args) Done() error {
	if a.i < len(a.list) {
		return fmt.Errorf("%w: unexpected %q", ErrSyntax, strings.Join(a.list[a.i:], " "))
	}
	return nil
}
