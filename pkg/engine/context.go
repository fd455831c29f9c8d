// Package engine is a high-level wrapper around an embedded
// JavaScript/EcmaScript interpreter.
//
// The focus is extension/plug-in use cases: loading code, calling functions
// and getting their result back as neutral Go values. The interpreter itself
// (bytecode execution, garbage collection, the object model) is consumed from
// github.com/dop251/goja, not implemented here.
package engine

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"
	"github.com/dukgo/dukgo/pkg/pool"
)

// Context corresponds to a thread of script execution. A Context is not safe
// for concurrent use; confine it to a single goroutine or serialise access.
type Context struct {
	rt   *goja.Runtime
	opts options
	log  *slog.Logger
	pool *pool.Pool
}

// New creates a fresh context with its own global object.
func New(opts ...Option) *Context {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{
		rt:   goja.New(),
		opts: o,
		log:  o.resolveLogger(),
		pool: o.pool,
	}
	if o.debug {
		c.log.Debug("context created", "debug", true, "spam", o.spam, "trace", o.trace)
	}
	return c
}

// Runtime exposes the underlying engine runtime for integrations that need
// to go beyond the neutral Value surface (module loaders, native bindings).
func (c *Context) Runtime() *goja.Runtime { return c.rt }

// Eval evaluates the given script string and converts the completion value.
// Script exceptions come back as *JSError; the context stays usable after a
// failure.
func (c *Context) Eval(src string) (Value, error) {
	return c.evalNamed("<eval>", src)
}

// EvalFile loads and evaluates the script at path.
func (c *Context) EvalFile(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("engine: read %s: %w", path, err)
	}
	return c.evalNamed(path, string(data))
}

func (c *Context) evalNamed(name, src string) (Value, error) {
	if c.opts.trace {
		c.log.Debug("eval", "name", name, "bytes", len(src))
	}
	res, err := c.rt.RunScript(name, src)
	if err != nil {
		err = classifyError(err)
		if c.opts.trace {
			c.log.Debug("eval failed", "name", name, "err", err)
		}
		return Value{}, err
	}
	return c.wrapResult(res)
}

// CallGlobal calls the named global function with the supplied arguments.
// A missing global yields ErrNoSuchGlobal; a global that is not callable
// fails the way the engine would, with a TypeError.
func (c *Context) CallGlobal(name string, args ...Value) (Value, error) {
	if c.opts.trace {
		c.log.Debug("call global", "name", name, "args", len(args))
	}
	target := c.rt.GlobalObject().Get(name)
	if target == nil || goja.IsUndefined(target) {
		return Value{}, fmt.Errorf("%w: %s", ErrNoSuchGlobal, name)
	}
	fn, ok := goja.AssertFunction(target)
	if !ok {
		return Value{}, &JSError{
			Kind:    ErrKindType,
			Message: fmt.Sprintf("TypeError: %s is not a function", name),
		}
	}
	jsArgs := make([]goja.Value, 0, len(args))
	for _, arg := range args {
		if c.opts.spam {
			c.log.Debug("push arg", "kind", arg.Kind().String())
		}
		jsArgs = append(jsArgs, c.toJS(arg))
	}
	res, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return Value{}, classifyError(err)
	}
	return c.wrapResult(res)
}

// SetGlobal binds a neutral value to a name on the global object.
func (c *Context) SetGlobal(name string, v Value) error {
	if err := c.rt.Set(name, c.toJS(v)); err != nil {
		return fmt.Errorf("engine: set global %s: %w", name, err)
	}
	return nil
}

// Global reads a global by name. The second result is false when the name is
// not defined.
func (c *Context) Global(name string) (Value, bool, error) {
	raw := c.rt.GlobalObject().Get(name)
	if raw == nil {
		return Value{}, false, nil
	}
	v, err := FromJS(raw)
	if err != nil {
		return Value{}, true, err
	}
	return v, true, nil
}

// Interrupt cancels script execution in flight. Safe to call from another
// goroutine. The interrupted Eval or CallGlobal returns a *JSError with
// ErrKindInterrupted; the context is reusable afterwards.
func (c *Context) Interrupt(reason string) {
	c.rt.Interrupt(reason)
}

// ClearInterrupt re-arms the context after an Interrupt.
func (c *Context) ClearInterrupt() {
	c.rt.ClearInterrupt()
}

func (c *Context) wrapResult(res goja.Value) (Value, error) {
	v, err := FromJS(res)
	if err != nil {
		return Value{}, err
	}
	if c.opts.spam {
		c.log.Debug("result", "kind", v.Kind().String())
	}
	return v, nil
}
