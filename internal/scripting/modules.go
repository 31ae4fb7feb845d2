package scripting

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// taskList collects the tasks a script builds, in call order.
type taskList struct {
	tasks []edittask.Task
}

func (tl *taskList) add(t edittask.Task) { tl.tasks = append(tl.tasks, t) }

// registerModules registers the tasks.* builders and log.* functions into L.
// Built tasks are appended to tl.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: tasks and log globals are defined in L.
func registerModules(L *lua.LState, tl *taskList, logger *zap.Logger) {
	tasks := L.NewTable()
	L.SetFuncs(tasks, map[string]lua.LGFunction{
		"keep": func(L *lua.LState) int {
			tl.add(edittask.Keep(checkBox(L, 1)))
			return 0
		},
		"cut": func(L *lua.LState) int {
			box := checkBox(L, 1)
			var off *geom.Vec3
			if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
				v := checkVec(L, 2)
				off = &v
			}
			tl.add(edittask.Cut(box, off))
			return 0
		},
		"copy": func(L *lua.LState) int {
			tl.add(edittask.Copy(checkBox(L, 1), checkVec(L, 2)))
			return 0
		},
		"move": func(L *lua.LState) int {
			tl.add(edittask.Move(checkBox(L, 1), checkVec(L, 2)))
			return 0
		},
		"remove": func(L *lua.LState) int {
			tl.add(edittask.Remove(checkBox(L, 1)))
			return 0
		},
		"set": func(L *lua.LState) int {
			t, err := edittask.Set(checkBox(L, 1), L.CheckInt(2), L.CheckInt(3))
			tl.add(raise(L, t, err))
			return 0
		},
		"replace": func(L *lua.LState) int {
			inMeta := edittask.AnyMeta
			if v := L.Get(3); v != lua.LNil {
				if s, ok := v.(lua.LString); !ok || string(s) != "*" {
					inMeta = L.CheckInt(3)
				}
			}
			t, err := edittask.Replace(checkBox(L, 1), L.CheckInt(2), inMeta, L.CheckInt(4), L.CheckInt(5))
			tl.add(raise(L, t, err))
			return 0
		},
		"rotate": func(L *lua.LState) int {
			t, err := edittask.Rotate(checkBox(L, 1), checkVec(L, 2), L.CheckInt(3))
			tl.add(raise(L, t, err))
			return 0
		},
		"retrack": func(L *lua.LState) int {
			tl.add(edittask.Retrack(checkBox(L, 1)))
			return 0
		},
		"config": func(L *lua.LState) int {
			key := strings.ToLower(L.CheckString(1))
			on := L.CheckBool(2)
			switch key {
			case "relight":
				tl.add(edittask.ConfigTask(&on, &on))
			case "relight_src":
				tl.add(edittask.ConfigTask(&on, nil))
			case "relight_dst":
				tl.add(edittask.ConfigTask(nil, &on))
			default:
				L.ArgError(1, "unknown config key "+key+" (want relight, relight_src or relight_dst)")
			}
			return 0
		},
	})
	L.SetField(tasks, "ALL", lua.LString("all"))
	L.SetGlobal("tasks", tasks)

	log := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		L.SetField(log, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetGlobal("log", log)
}

func raise(L *lua.LState, t edittask.Task, err error) edittask.Task {
	if err != nil {
		L.RaiseError("%v", err)
	}
	return t
}

// checkBox reads argument n as "all" or a table of six integers.
func checkBox(L *lua.LState, n int) geom.BoundingBox {
	if s, ok := L.Get(n).(lua.LString); ok && strings.EqualFold(string(s), "all") {
		return geom.AllBox()
	}
	c := checkInts(L, n, 6, "box")
	return geom.Box(c[0], c[1], c[2], c[3], c[4], c[5])
}

// checkVec reads argument n as a table of three integers.
func checkVec(L *lua.LState, n int) geom.Vec3 {
	c := checkInts(L, n, 3, "vector")
	return geom.V(c[0], c[1], c[2])
}

func checkInts(L *lua.LState, n, count int, what string) []int {
	tbl := L.CheckTable(n)
	if tbl.Len() != count {
		L.ArgError(n, what+" needs "+lua.LNumber(count).String()+" numbers")
	}
	out := make([]int, count)
	for i := range out {
		v, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok || float64(v) != float64(int(v)) {
			L.ArgError(n, what+" must hold integers")
		}
		out[i] = int(v)
	}
	return out
}
