package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/gpupulse/internal/event/events"
)

// Script errors.
var (
	// ErrScriptClosed is returned when an evaluation is attempted after Close.
	ErrScriptClosed = errors.New("script rule is closed")

	// ErrNoEvaluate is returned when a script does not define an evaluate function.
	ErrNoEvaluate = errors.New("script does not define evaluate")
)

// DefaultEvalTimeout bounds one scripted predicate evaluation.
const DefaultEvalTimeout = 100 * time.Millisecond

// ScriptRule evaluates a Lua predicate against each sample. The script
// must define a global evaluate function taking a sample table and
// returning a boolean, optionally followed by a message string:
//
//	function evaluate(s)
//	    return s.utilization > 80 and s.temperature > 70, "hot and busy"
//	end
//
// The sample table carries device, utilization, memory_used,
// memory_total, memory_utilization, temperature, power_draw and
// fan_speed.
//
// The interpreter is sandboxed: only the base, table, string and math
// libraries are opened, so a script cannot reach the filesystem or the
// OS. Each evaluation runs under a deadline; a script that loops is cut
// off and reported as an evaluation error. gopher-lua states are not
// goroutine-safe, so a mutex serializes evaluations.
type ScriptRule struct {
	name    string
	level   events.Severity
	timeout time.Duration

	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// ScriptOption configures a ScriptRule.
type ScriptOption func(*ScriptRule)

// WithEvalTimeout bounds a single evaluate call.
func WithEvalTimeout(d time.Duration) ScriptOption {
	return func(r *ScriptRule) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewScriptRule loads code into a sandboxed interpreter and verifies it
// defines evaluate.
func NewScriptRule(name, code string, level events.Severity, opts ...ScriptOption) (*ScriptRule, error) {
	r := &ScriptRule{
		name:    name,
		level:   level,
		timeout: DefaultEvalTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script %q: %w", name, err)
	}

	if fn := L.GetGlobal("evaluate"); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script %q: %w", name, ErrNoEvaluate)
	}

	r.state = L
	return r, nil
}

// openSafeLibraries opens only safe Lua standard libraries. io, os,
// debug and package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// Name returns the rule's name.
func (r *ScriptRule) Name() string {
	return r.name
}

// Severity returns the severity of alerts this rule raises.
func (r *ScriptRule) Severity() events.Severity {
	return r.level
}

// Evaluate runs the script's predicate against the sample.
func (r *ScriptRule) Evaluate(ctx context.Context, sample events.GPUSample) (Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Verdict{}, ErrScriptClosed
	}

	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.state.SetContext(evalCtx)
	defer r.state.RemoveContext()

	verdict, err := r.eval(sample)
	if err != nil {
		// Discard whatever the failed call left on the stack.
		r.state.SetTop(0)
		return Verdict{}, fmt.Errorf("script %q: %w", r.name, err)
	}
	return verdict, nil
}

// eval pushes the sample table, calls evaluate and collects the verdict.
func (r *ScriptRule) eval(sample events.GPUSample) (v Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()

	L := r.state

	tbl := L.NewTable()
	L.SetField(tbl, "device", lua.LNumber(sample.Device))
	L.SetField(tbl, "utilization", lua.LNumber(sample.Utilization))
	L.SetField(tbl, "memory_used", lua.LNumber(sample.MemoryUsed))
	L.SetField(tbl, "memory_total", lua.LNumber(sample.MemoryTotal))
	L.SetField(tbl, "memory_utilization", lua.LNumber(sample.MemoryUtilization()))
	L.SetField(tbl, "temperature", lua.LNumber(sample.Temperature))
	L.SetField(tbl, "power_draw", lua.LNumber(sample.PowerDraw))
	L.SetField(tbl, "fan_speed", lua.LNumber(sample.FanSpeed))

	top := L.GetTop()
	L.Push(L.GetGlobal("evaluate"))
	L.Push(tbl)

	if perr := L.PCall(1, lua.MultRet, nil); perr != nil {
		return Verdict{}, perr
	}

	nret := L.GetTop() - top
	v = Verdict{Metric: "script"}
	if nret >= 1 {
		v.Firing = lua.LVAsBool(L.Get(top + 1))
	}
	if nret >= 2 {
		if msg, ok := L.Get(top + 2).(lua.LString); ok {
			v.Message = string(msg)
		}
	}
	L.Pop(nret)

	return v, nil
}

// Close releases the interpreter. Evaluate returns ErrScriptClosed
// afterwards.
func (r *ScriptRule) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.state.Close()
	r.closed = true
	return nil
}

// IsClosed returns true if the interpreter has been released.
func (r *ScriptRule) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
