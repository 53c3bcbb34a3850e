// Package hooks runs user Lua scripts against the session event stream.
//
// A script defines any of the following global functions; missing ones are skipped:
//
//	on_device(dev)          -- dev = {address, name, connected, authenticated, rssi, class}
//	on_connected(address)
//	on_disconnected(address)
//	on_scan(started)
//	on_error(message, status)
//
// print() output is written to the engine's writer instead of the process stdout.
package hooks

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/radio"
)

// ErrClosed is returned when the engine was closed
var ErrClosed = errors.New("hook engine closed")

// ScriptError describes a Lua failure
type ScriptError struct {
	Type     string // "syntax", "runtime", "api"
	Function string
	Message  string
	Line     int
	Source   string
}

func (e *ScriptError) Error() string {
	parts := []string{}
	if e.Source != "" {
		parts = append(parts, "in "+e.Source)
	}
	if e.Function != "" {
		parts = append(parts, e.Function)
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Lua %s error: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("Lua %s error (%s): %s", e.Type, strings.Join(parts, ", "), e.Message)
}

// Is matches another *ScriptError of the same type
func (e *ScriptError) Is(target error) bool {
	var other *ScriptError
	if errors.As(target, &other) {
		return e.Type == other.Type
	}
	return false
}

// Engine owns one Lua state. All calls into the state are serialized.
type Engine struct {
	mu     sync.Mutex
	state  *lua.State
	source string
	out    io.Writer
	logger *logrus.Logger

	dispatched atomic.Int64
	failures   atomic.Int64
}

// New creates an engine whose print() writes to out (os.Stdout when nil)
func New(logger *logrus.Logger, out io.Writer) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if out == nil {
		out = os.Stdout
	}

	e := &Engine{out: out, logger: logger}
	e.state = lua.NewState()
	e.state.OpenLibs()
	e.registerPrint()
	return e
}

func (e *Engine) registerPrint() {
	e.state.PushGoFunction(func(L *lua.State) int {
		top := L.GetTop()
		parts := make([]string, 0, top)

		for i := 1; i <= top; i++ {
			switch {
			case L.IsNil(i):
				parts = append(parts, "nil")
			case L.IsBoolean(i):
				parts = append(parts, fmt.Sprintf("%t", L.ToBoolean(i)))
			case L.IsNumber(i):
				parts = append(parts, fmt.Sprintf("%v", L.ToNumber(i)))
			case L.IsString(i):
				parts = append(parts, L.ToString(i))
			default:
				L.GetGlobal("tostring")
				L.PushValue(i)
				L.Call(1, 1)
				parts = append(parts, L.ToString(-1))
				L.Pop(1)
			}
		}

		fmt.Fprintln(e.out, strings.Join(parts, "\t"))
		return 0
	})
	e.state.SetGlobal("print")
}

// LoadFile reads and runs a script file
func (e *Engine) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.Load(string(content), path)
}

// Load runs script once so its top-level code can define the hook functions.
func (e *Engine) Load(script, name string) error {
	if strings.TrimSpace(script) == "" {
		return &ScriptError{Type: "api", Message: "empty script", Source: name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return ErrClosed
	}

	if status := e.state.LoadString(script); status != 0 {
		msg := e.state.ToString(-1)
		e.state.Pop(1)
		return newScriptError("syntax", "", name, msg)
	}
	if err := e.state.Call(0, 0); err != nil {
		return newScriptError("runtime", "", name, err.Error())
	}

	e.source = name
	e.logger.WithField("script", name).Info("Hook script loaded")
	return nil
}

// Defines reports whether the script defines the named hook function
func (e *Engine) Defines(function string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false
	}
	e.state.GetGlobal(function)
	defer e.state.Pop(1)
	return e.state.IsFunction(-1)
}

// Dispatch calls the hook matching ev. Events without a defined hook are ignored.
func (e *Engine) Dispatch(ev bridge.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	L := e.state
	if L == nil {
		return ErrClosed
	}

	function := hookName(ev.Kind)
	L.GetGlobal(function)
	if !L.IsFunction(-1) {
		L.Pop(1)
		return nil
	}

	nargs := 1
	switch ev.Kind {
	case bridge.KindDeviceObserved:
		pushDevice(L, ev.Device)
	case bridge.KindConnected, bridge.KindDisconnected:
		L.PushString(radio.FormatAddress(ev.Address))
	case bridge.KindScanStarted, bridge.KindScanStopped:
		L.PushBoolean(ev.Kind == bridge.KindScanStarted)
	case bridge.KindError:
		L.PushString(ev.Message)
		L.PushInteger(int64(ev.Status))
		nargs = 2
	}

	e.dispatched.Add(1)
	if err := L.Call(nargs, 0); err != nil {
		e.failures.Add(1)
		return newScriptError("runtime", function, e.source, err.Error())
	}
	return nil
}

// Hook adapts the engine to a session event hook. Script failures are logged.
func (e *Engine) Hook() func(bridge.Event) {
	return func(ev bridge.Event) {
		if err := e.Dispatch(ev); err != nil && !errors.Is(err, ErrClosed) {
			e.logger.WithError(err).WithField("event", ev.Kind).Warn("Hook failed")
		}
	}
}

// Global reads a string, number or boolean global; other types yield nil.
func (e *Engine) Global(name string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}

	e.state.GetGlobal(name)
	defer e.state.Pop(1)

	switch {
	case e.state.IsNumber(-1):
		return e.state.ToNumber(-1)
	case e.state.IsString(-1):
		return e.state.ToString(-1)
	case e.state.IsBoolean(-1):
		return e.state.ToBoolean(-1)
	default:
		return nil
	}
}

// Stats returns how many hooks ran and how many of them failed
func (e *Engine) Stats() (dispatched, failed int64) {
	return e.dispatched.Load(), e.failures.Load()
}

// Close releases the Lua state
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
}

func hookName(kind bridge.Kind) string {
	switch kind {
	case bridge.KindDeviceObserved:
		return "on_device"
	case bridge.KindConnected:
		return "on_connected"
	case bridge.KindDisconnected:
		return "on_disconnected"
	case bridge.KindScanStarted, bridge.KindScanStopped:
		return "on_scan"
	default:
		return "on_error"
	}
}

func pushDevice(L *lua.State, d bridge.Device) {
	L.NewTable()
	L.PushString(radio.FormatAddress(d.Address))
	L.SetField(-2, "address")
	L.PushString(d.Name)
	L.SetField(-2, "name")
	L.PushBoolean(d.Connected)
	L.SetField(-2, "connected")
	L.PushBoolean(d.Authenticated)
	L.SetField(-2, "authenticated")
	L.PushInteger(int64(d.SignalStrength))
	L.SetField(-2, "rssi")
	L.PushInteger(int64(d.DeviceClass))
	L.SetField(-2, "class")
}

// newScriptError extracts the line number from messages shaped like
// `[string "..."]:3: attempt to call a nil value`.
func newScriptError(errType, function, source, msg string) *ScriptError {
	se := &ScriptError{Type: errType, Function: function, Source: source, Message: msg}

	if idx := strings.Index(msg, "]:"); idx >= 0 {
		rest := msg[idx+2:]
		if parts := strings.SplitN(rest, ":", 2); len(parts) == 2 {
			var line int
			if n, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &line); err == nil && n == 1 {
				se.Line = line
				se.Message = strings.TrimSpace(firstLine(parts[1]))
			}
		}
	}
	return se
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
