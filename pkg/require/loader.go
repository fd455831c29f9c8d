// Package require implements a Node-style module loader for an engine
// Context: a global `require` function with a live `require.cache`, module
// objects carrying id/filename/exports/loaded, and support for .js, .json
// and Go-native core modules.
package require

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dop251/goja"
	"github.com/dukgo/dukgo/pkg/engine"
	"github.com/dukgo/dukgo/pkg/pool"
)

// CoreModule is a Go-native module. It receives the module object with a
// fresh `exports` property already set and populates it (or replaces
// `module.exports` outright).
type CoreModule func(rt *goja.Runtime, module *goja.Object) error

// ErrModuleNotFound is wrapped into resolution failures.
var ErrModuleNotFound = errors.New("require: module not found")

// Loader resolves and evaluates modules for a single Context. A Loader is
// bound to one Context by Install and is not safe for concurrent use, the
// same as the Context itself.
type Loader struct {
	searchPaths []string
	core        map[string]CoreModule
	srcPool     *pool.Pool
	log         *slog.Logger
	readFile    func(string) ([]byte, error)

	rt        *goja.Runtime
	cache     *goja.Object
	jsonParse goja.Callable
	sources   map[string]pool.Ref
}

// Option configures a Loader.
type Option func(*Loader)

// WithSearchPath appends a resolution root. Roots are tried in order.
func WithSearchPath(dir string) Option {
	return func(l *Loader) {
		if dir != "" {
			l.searchPaths = append(l.searchPaths, dir)
		}
	}
}

// WithCoreModule registers a Go-native module under the given bare name.
// Core modules short-circuit filesystem resolution.
func WithCoreModule(name string, mod CoreModule) Option {
	return func(l *Loader) {
		if name != "" && mod != nil {
			l.core[name] = mod
		}
	}
}

// WithSourcePool keeps loaded module sources in a fixed pool instead of the
// garbage-collected heap.
func WithSourcePool(p *pool.Pool) Option {
	return func(l *Loader) { l.srcPool = p }
}

// WithLogger enables load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.log = logger
		}
	}
}

// NewLoader constructs a loader. Without search paths it resolves bare ids
// against the current directory.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		core:     make(map[string]CoreModule),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		readFile: os.ReadFile,
		sources:  make(map[string]pool.Ref),
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.searchPaths) == 0 {
		l.searchPaths = []string{"."}
	}
	return l
}

// Install defines the global `require` on the context. Subsequent loads
// share one cache; modules receive their own `require` bound to their
// directory.
func (l *Loader) Install(ctx *engine.Context) error {
	if l.rt != nil {
		return fmt.Errorf("require: loader already installed")
	}
	rt := ctx.Runtime()
	l.rt = rt
	l.cache = rt.NewObject()

	jsonObj := rt.Get("JSON")
	if jsonObj == nil {
		return fmt.Errorf("require: runtime has no JSON object")
	}
	parse, ok := goja.AssertFunction(jsonObj.ToObject(rt).Get("parse"))
	if !ok {
		return fmt.Errorf("require: JSON.parse is not callable")
	}
	l.jsonParse = parse

	topLevel, err := l.makeRequire("")
	if err != nil {
		return err
	}
	if err := rt.Set("require", topLevel); err != nil {
		return fmt.Errorf("require: install global: %w", err)
	}
	return nil
}

// Require loads a module from Go, as if a top-level script had called
// require(request), and returns its exports as a neutral value.
func (l *Loader) Require(request string) (engine.Value, error) {
	if l.rt == nil {
		return engine.Value{}, fmt.Errorf("require: loader not installed")
	}
	exports, err := l.load("", request)
	if err != nil {
		return engine.Value{}, err
	}
	return engine.FromJS(exports)
}

// makeRequire builds a require function bound to the requiring module.
// The cache and resolve properties are shared across all of them.
func (l *Loader) makeRequire(parentID string) (*goja.Object, error) {
	rt := l.rt
	fn := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		request := call.Argument(0).String()
		exports, err := l.load(parentID, request)
		if err != nil {
			l.throw(err)
		}
		return exports
	})
	obj := fn.ToObject(rt)
	if err := obj.Set("cache", l.cache); err != nil {
		return nil, fmt.Errorf("require: bind cache: %w", err)
	}
	resolve := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		request := call.Argument(0).String()
		id, _, err := l.resolve(parentID, request)
		if err != nil {
			l.throw(err)
		}
		return rt.ToValue(id)
	})
	if err := obj.Set("resolve", resolve); err != nil {
		return nil, fmt.Errorf("require: bind resolve: %w", err)
	}
	return obj, nil
}

// throw rethrows script exceptions as-is and wraps loader errors so they
// surface as catchable exceptions inside the runtime.
func (l *Loader) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(l.rt.NewGoError(err))
}

func (l *Loader) load(parentID, request string) (goja.Value, error) {
	if mod, ok := l.core[request]; ok {
		return l.loadCore(request, mod)
	}

	id, fullPath, err := l.resolve(parentID, request)
	if err != nil {
		return nil, err
	}

	if cached := l.cache.Get(id); cached != nil && !goja.IsUndefined(cached) && !goja.IsNull(cached) {
		l.log.Debug("require cache hit", "id", id)
		return cached.ToObject(l.rt).Get("exports"), nil
	}

	src, err := l.readSource(id, fullPath)
	if err != nil {
		return nil, err
	}
	l.log.Debug("require load", "id", id, "path", fullPath, "bytes", len(src))

	module, childRequire, err := l.newModule(id)
	if err != nil {
		return nil, err
	}

	// Cached before evaluation so cyclic requires observe partial exports.
	if err := l.cache.Set(id, module); err != nil {
		return nil, fmt.Errorf("require: cache %s: %w", id, err)
	}

	if isJSONID(id) {
		err = l.evalJSON(module, src)
	} else {
		err = l.evalScript(module, childRequire, id, src)
	}
	if err != nil {
		// Failed loads are never cached.
		_ = l.cache.Delete(id)
		return nil, err
	}
	if err := module.Set("loaded", true); err != nil {
		return nil, fmt.Errorf("require: mark loaded %s: %w", id, err)
	}
	return module.Get("exports"), nil
}

func (l *Loader) loadCore(name string, mod CoreModule) (goja.Value, error) {
	if cached := l.cache.Get(name); cached != nil && !goja.IsUndefined(cached) && !goja.IsNull(cached) {
		return cached.ToObject(l.rt).Get("exports"), nil
	}
	module, _, err := l.newModule(name)
	if err != nil {
		return nil, err
	}
	if err := mod(l.rt, module); err != nil {
		return nil, fmt.Errorf("require: core module %s: %w", name, err)
	}
	if err := module.Set("loaded", true); err != nil {
		return nil, fmt.Errorf("require: mark loaded %s: %w", name, err)
	}
	if err := l.cache.Set(name, module); err != nil {
		return nil, fmt.Errorf("require: cache %s: %w", name, err)
	}
	return module.Get("exports"), nil
}

// newModule builds the module object. id and filename are the same
// root-relative path, per the loader convention this reimplements.
func (l *Loader) newModule(id string) (*goja.Object, *goja.Object, error) {
	rt := l.rt
	module := rt.NewObject()
	exports := rt.NewObject()
	childRequire, err := l.makeRequire(id)
	if err != nil {
		return nil, nil, err
	}
	for name, val := range map[string]goja.Value{
		"id":       rt.ToValue(id),
		"filename": rt.ToValue(id),
		"exports":  exports,
		"loaded":   rt.ToValue(false),
		"require":  childRequire,
	} {
		if err := module.Set(name, val); err != nil {
			return nil, nil, fmt.Errorf("require: module %s: set %s: %w", id, name, err)
		}
	}
	return module, childRequire, nil
}

func (l *Loader) evalJSON(module *goja.Object, src []byte) error {
	parsed, err := l.jsonParse(goja.Undefined(), l.rt.ToValue(string(src)))
	if err != nil {
		return fmt.Errorf("require: parse json module: %w", err)
	}
	return module.Set("exports", parsed)
}

// evalScript runs the source inside the Node wrapper function so the module
// sees its own exports/require/module/__filename/__dirname bindings.
func (l *Loader) evalScript(module, childRequire *goja.Object, id string, src []byte) error {
	wrapped := "(function(exports, require, module, __filename, __dirname) {\n" +
		string(src) + "\n})"
	fnVal, err := l.rt.RunScript(id, wrapped)
	if err != nil {
		return fmt.Errorf("require: compile %s: %w", id, err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return fmt.Errorf("require: wrapper for %s did not produce a function", id)
	}
	exports := module.Get("exports")
	_, err = fn(exports,
		exports,
		childRequire,
		module,
		l.rt.ToValue(id),
		l.rt.ToValue(dirOf(id)),
	)
	if err != nil {
		return err
	}
	return nil
}

// readSource reads the module file, retaining the bytes in the source pool
// when one is configured.
func (l *Loader) readSource(id, fullPath string) ([]byte, error) {
	if ref, ok := l.sources[id]; ok {
		return l.srcPool.Bytes(ref), nil
	}
	data, err := l.readFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("require: read %s: %w", fullPath, err)
	}
	if l.srcPool != nil {
		ref, perr := l.srcPool.Store(data)
		if perr == nil {
			l.sources[id] = ref
			return l.srcPool.Bytes(ref), nil
		}
		// Pool full: fall back to the heap copy.
		l.log.Debug("source pool store failed", "id", id, "err", perr)
	}
	return data, nil
}

// EvictSource drops a module's pooled source, freeing its slot. Used when a
// module is removed from the cache for good.
func (l *Loader) EvictSource(id string) {
	ref, ok := l.sources[id]
	if !ok {
		return
	}
	delete(l.sources, id)
	l.srcPool.Free(ref)
}
