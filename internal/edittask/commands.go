package edittask

import (
	"fmt"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// BuiltinCommands returns the script commands understood by DefaultRegistry.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "keep", Usage: "<box>|all", Build: buildKeep},
		{Name: "cut", Usage: "<box>|all [to|by <x y z>]", Build: buildCut},
		{Name: "copy", Aliases: []string{"cp"}, Usage: "<box> to|by <x y z>", Build: buildCopy},
		{Name: "move", Aliases: []string{"mv"}, Usage: "<box> to|by <x y z>", Build: buildMove},
		{Name: "remove", Aliases: []string{"rm", "del"}, Usage: "<box>", Build: buildRemove},
		{Name: "set", Usage: "<box> <id> <meta>", Build: buildSet},
		{Name: "replace", Usage: "<box> like <id> <meta|*> with <id> <meta>", Build: buildReplace},
		{Name: "rotate", Usage: "<box> around <x y z> <degrees>", Build: buildRotate},
		{Name: "retrack", Aliases: []string{"relight"}, Usage: "<box>", Build: buildRetrack},
		{Name: "schematic", Usage: "<path> dim <dir|0> at <x y z>|transform <16 numbers> [skipAir]", Build: buildSchematic},
		{Name: "config", Usage: "relight [src|dst] on|off", Build: buildConfig},
	}
}

func one(t Task) []Task { return []Task{t} }

func buildKeep(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	return one(Keep(box)), nil
}

func buildCut(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	if a.Peek() == "" {
		return one(Cut(box, nil)), nil
	}
	off, err := a.Offset(box)
	if err != nil {
		return nil, err
	}
	return one(Cut(box, &off)), nil
}

func buildCopy(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	off, err := a.Offset(box)
	if err != nil {
		return nil, err
	}
	return one(Copy(box, off)), nil
}

func buildMove(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	off, err := a.Offset(box)
	if err != nil {
		return nil, err
	}
	return one(Move(box, off)), nil
}

func buildRemove(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	return one(Remove(box)), nil
}

func buildRetrack(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	return one(Retrack(box)), nil
}

func buildSet(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	id, err := a.Int("block id")
	if err != nil {
		return nil, err
	}
	meta, err := a.Int("block meta")
	if err != nil {
		return nil, err
	}
	t, err := Set(box, id, meta)
	if err != nil {
		return nil, err
	}
	return one(t), nil
}

func buildReplace(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	if _, err := a.Keyword("like"); err != nil {
		return nil, err
	}
	inID, err := a.Int("block id")
	if err != nil {
		return nil, err
	}
	inMeta := AnyMeta
	if a.Peek() == "*" {
		a.i++
	} else if inMeta, err = a.Int("block meta"); err != nil {
		return nil, err
	}
	if _, err := a.Keyword("with"); err != nil {
		return nil, err
	}
	outID, err := a.Int("block id")
	if err != nil {
		return nil, err
	}
	outMeta, err := a.Int("block meta")
	if err != nil {
		return nil, err
	}
	t, err := Replace(box, inID, inMeta, outID, outMeta)
	if err != nil {
		return nil, err
	}
	return one(t), nil
}

func buildRotate(_ *Parser, a *Args) ([]Task, error) {
	box, err := a.Box()
	if err != nil {
		return nil, err
	}
	if _, err := a.Keyword("around"); err != nil {
		return nil, err
	}
	origin, err := a.Vec("origin")
	if err != nil {
		return nil, err
	}
	deg, err := a.Int("degrees")
	if err != nil {
		return nil, err
	}
	t, err := Rotate(box, origin, deg)
	if err != nil {
		return nil, err
	}
	return one(t), nil
}

func buildSchematic(p *Parser, a *Args) ([]Task, error) {
	path, err := a.Next("schematic path")
	if err != nil {
		return nil, err
	}
	if _, err := a.Keyword("dim"); err != nil {
		return nil, err
	}
	dir, err := a.Next("dimension directory")
	if err != nil {
		return nil, err
	}
	if dir == "0" {
		dir = ""
	}
	kw, err := a.Keyword("at", "transform")
	if err != nil {
		return nil, err
	}
	var m geom.Matrix4
	if kw == "at" {
		at, err := a.Vec("position")
		if err != nil {
			return nil, err
		}
		m = geom.Translation(at)
	} else {
		vals := make([]float64, 16)
		for i := range vals {
			if vals[i], err = a.Float(fmt.Sprintf("matrix element %d", i+1)); err != nil {
				return nil, err
			}
		}
		m = geom.FromRows(vals)
	}
	skipAir := false
	if a.Peek() == "skipair" {
		a.i++
		skipAir = true
	}
	s, err := p.openSchematic(path)
	if err != nil {
		return nil, err
	}
	t, err := Paste(s, m, skipAir, dir)
	if err != nil {
		return nil, err
	}
	return one(t), nil
}

func buildConfig(_ *Parser, a *Args) ([]Task, error) {
	if _, err := a.Keyword("relight"); err != nil {
		return nil, err
	}
	target := "both"
	switch a.Peek() {
	case "src", "dst":
		target = a.Peek()
		a.i++
	}
	state, err := a.Keyword("on", "off")
	if err != nil {
		return nil, err
	}
	on := state == "on"
	switch target {
	case "src":
		return one(ConfigTask(&on, nil)), nil
	case "dst":
		return one(ConfigTask(nil, &on)), nil
	}
	src, dst := on, on
	return one(ConfigTask(&src, &dst)), nil
}
