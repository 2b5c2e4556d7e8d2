// Package extwasm exposes the exported functions of a WebAssembly module as
// qrtext intrinsics.
//
// Every exported function whose parameters and single result are plain
// numbers becomes an intrinsic of the same name. Its signature is derived
// from the wasm types: i32 and i64 map to integer, f32 and f64 to float.
// Functions with other types or several results are skipped.
//
// # Example
//
//	mod, err := extwasm.LoadFile(ctx, "robot.wasm", extwasm.WithPrefix("hw_"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close(ctx)
//	tb := qrtext.New(qrtext.WithIntrinsics(mod.Intrinsics()...))
package extwasm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// Options configures module loading.
type Options struct {
	// Prefix is prepended to every intrinsic name.
	Prefix string
	// WASI instantiates the WASI preview 1 host module before the module
	// itself, for binaries produced by toolchains that import it.
	WASI bool
	// Only restricts the exported functions to register. Empty means all.
	Only []string
	// Logger for structured logging.
	Logger *slog.Logger
}

// Option configures module loading.
type Option func(*Options)

// WithPrefix sets a prefix for the intrinsic names.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithWASI enables the WASI preview 1 host module.
func WithWASI() Option {
	return func(o *Options) {
		o.WASI = true
	}
}

// WithOnly registers only the named exports.
func WithOnly(names ...string) Option {
	return func(o *Options) {
		o.Only = append(o.Only, names...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Module is an instantiated WebAssembly module.
//
// Calls into the module are serialized: a wasm instance has a single
// linear memory and stack.
type Module struct {
	runtime    wazero.Runtime
	module     api.Module
	intrinsics []functions.IntrinsicDef
	logger     *slog.Logger

	mu sync.Mutex
}

// LoadFile reads and instantiates the module at path.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extwasm: %w", err)
	}
	return Load(ctx, bin, opts...)
}

// Load compiles and instantiates a module from its binary form.
func Load(ctx context.Context, bin []byte, opts ...Option) (*Module, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	r := wazero.NewRuntime(ctx)
	if options.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("extwasm: instantiate WASI: %w", err)
		}
	}

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("extwasm: compile: %w", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("extwasm: instantiate: %w", err)
	}

	m := &Module{runtime: r, module: mod, logger: options.Logger}

	only := make(map[string]bool, len(options.Only))
	for _, name := range options.Only {
		only[name] = true
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		if len(only) == 0 || only[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		def := exports[name]
		sig, ok := signature(def)
		if !ok {
			m.logger.Debug("skipping wasm export", "name", name,
				"params", def.ParamTypes(), "results", def.ResultTypes())
			continue
		}
		m.intrinsics = append(m.intrinsics, functions.IntrinsicDef{
			Name:      options.Prefix + name,
			Signature: sig,
			Fn:        m.call(name, def.ParamTypes(), def.ResultTypes()),
		})
	}
	m.logger.Debug("wasm module loaded", "exports", len(exports), "intrinsics", len(m.intrinsics))
	return m, nil
}

// Intrinsics returns the intrinsic definitions of the usable exports,
// ordered by name.
func (m *Module) Intrinsics() []functions.IntrinsicDef {
	out := make([]functions.IntrinsicDef, len(m.intrinsics))
	copy(out, m.intrinsics)
	return out
}

// Close releases the module and its runtime. Intrinsics of a closed module
// fail when called.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtime.Close(ctx)
}

func (m *Module) call(name string, params, results []api.ValueType) functions.IntrinsicFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		if len(args) != len(params) {
			return nil, fmt.Errorf("%s: %d arguments expected, got %d", name, len(params), len(args))
		}
		stack := make([]uint64, len(params))
		for i, t := range params {
			v, err := encode(t, args[i])
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
			}
			stack[i] = v
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		fn := m.module.ExportedFunction(name)
		if fn == nil {
			return nil, fmt.Errorf("%s: module is closed", name)
		}
		out, err := fn.Call(ctx, stack...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(results) == 0 {
			return nil, nil
		}
		return decode(results[0], out[0]), nil
	}
}

// signature derives the intrinsic signature of a wasm function.
func signature(def api.FunctionDefinition) (string, bool) {
	if len(def.ResultTypes()) > 1 {
		return "", false
	}
	var params []string
	for _, t := range def.ParamTypes() {
		c, ok := typeCode(t)
		if !ok {
			return "", false
		}
		params = append(params, c)
	}
	sig := "<" + strings.Join(params, "-")
	if len(def.ResultTypes()) == 1 {
		c, ok := typeCode(def.ResultTypes()[0])
		if !ok {
			return "", false
		}
		sig += ":" + c
	}
	return sig + ">", true
}

func typeCode(t api.ValueType) (string, bool) {
	switch t {
	case api.ValueTypeI32, api.ValueTypeI64:
		return "i", true
	case api.ValueTypeF32, api.ValueTypeF64:
		return "n", true
	}
	return "", false
}

func encode(t api.ValueType, v any) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		n, err := extutil.ToInt(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeI32(int32(n)), nil
	case api.ValueTypeI64:
		n, err := extutil.ToInt(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32:
		f, err := extutil.ToFloat(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := extutil.ToFloat(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported wasm type %s", api.ValueTypeName(t))
}

func decode(t api.ValueType, v uint64) any {
	switch t {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(v))
	case api.ValueTypeI64:
		return int64(v)
	case api.ValueTypeF32:
		return float64(api.DecodeF32(v))
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	}
	return nil
}
