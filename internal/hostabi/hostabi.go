// Package hostabi is the Export Descriptor ABI (C2 of SPEC_FULL.md): the
// surface a host program actually writes against to advertise functions,
// constants, statics, types and operators into an engine's Type Registry
// (internal/types). internal/types owns the low-level Cell/Type/Registry
// mechanics; hostabi is the ergonomic builder layer on top of it, addressed
// as "package.item" per spec.md §4.2.
package hostabi

import (
	"fmt"
	"sort"

	"adastra/internal/types"
)

// Host is one embedding program's export surface: a Type Registry. Once the
// Registry is frozen (see Freeze), every Register* call made through it
// fails with types.ErrFrozen.
type Host struct {
	Registry *types.Registry
}

// NewHost wraps a fresh, unfrozen Registry.
func NewHost() *Host {
	return &Host{Registry: types.NewRegistry()}
}

// Package starts a fluent export builder for one named package
// (spec.md §3 "Package: a named collection of exported items").
func (h *Host) Package(name string) *PackageBuilder {
	return &PackageBuilder{host: h, name: name}
}

// PackageBuilder accumulates descriptors for one package before registering
// them all against the Host's Registry. Errors are accumulated rather than
// returned eagerly so a host can chain calls and check once at the end —
// the pattern spec.md §4.2 implies for bulk export registration.
type PackageBuilder struct {
	host *Host
	name string
	errs []error
}

// Type registers a Descriptor under this package, keyed by hostIdentity for
// later Registry.Lookup (typically a *reflect.Type or a sentinel pointer the
// host keeps around).
func (b *PackageBuilder) Type(d types.Descriptor, hostIdentity any) *PackageBuilder {
	d.Package = b.name
	if _, err := b.host.Registry.RegisterType(d, hostIdentity); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Func registers one exported function.
func (b *PackageBuilder) Func(fn *types.Function) *PackageBuilder {
	fn.Package = b.name
	if err := b.host.Registry.RegisterFunction(fn); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Const registers one exported constant.
func (b *PackageBuilder) Const(name string, value any) *PackageBuilder {
	if err := b.host.Registry.RegisterConstant(b.name, name, value); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Static registers one exported mutable package-level binding.
func (b *PackageBuilder) Static(s *types.Static) *PackageBuilder {
	if err := b.host.Registry.RegisterStatic(b.name, s); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build finalizes the package, returning every registration error observed
// (nil if none). A host typically calls this once per package at startup,
// before creating any Source Module.
func (b *PackageBuilder) Build() error {
	if len(b.errs) == 0 {
		return nil
	}
	if len(b.errs) == 1 {
		return b.errs[0]
	}
	msg := fmt.Sprintf("%d export registration error(s):", len(b.errs))
	for _, e := range b.errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// Freeze closes the Registry to further exports; a host that tries to export
// afterward gets types.ErrFrozen from every Register* call. Creating a Source
// Module does not call it: the host calls it explicitly (cmd/adastra does so
// in coreEngine, before building the globals).
func (h *Host) Freeze() { h.Registry.Freeze() }

// Describe renders every package's exported surface, grouped by package and
// sorted by name, for diagnostics and introspection.
func (h *Host) Describe() []PackageSummary {
	names := h.Registry.Packages()
	sort.Strings(names)
	out := make([]PackageSummary, 0, len(names))
	for _, name := range names {
		pkg := h.Registry.Package(name)
		if pkg == nil {
			continue
		}
		s := PackageSummary{Name: name}
		for fname := range pkg.Functions {
			s.Functions = append(s.Functions, fname)
		}
		for cname := range pkg.Constants {
			s.Constants = append(s.Constants, cname)
		}
		for sname := range pkg.Statics {
			s.Statics = append(s.Statics, sname)
		}
		for tname := range pkg.Types {
			s.Types = append(s.Types, tname)
		}
		sort.Strings(s.Functions)
		sort.Strings(s.Constants)
		sort.Strings(s.Statics)
		sort.Strings(s.Types)
		out = append(out, s)
	}
	return out
}

// PackageSummary is a read-only snapshot of one package's exports, returned
// by Describe (editor completions read Registry.Package directly).
type PackageSummary struct {
	Name      string
	Functions []string
	Constants []string
	Statics   []string
	Types     []string
}

// nativeFunc adapts a *types.Function's bare Call field to types.Callable
// so an exported host function flows through OpCall/OpGetGlobal exactly
// like a script closure (spec.md §4.2 "package.item" addressing).
type nativeFunc struct{ fn *types.Function }

func (n *nativeFunc) Call(args []any) (any, error) { return n.fn.Call(args) }
func (n *nativeFunc) String() string                { return n.fn.Package + "." + n.fn.Name }

// Globals materializes every registered package's functions, constants and
// statics into the flat "package.item"-keyed map vm.Run/vm.New expect
// (spec.md §4.2). Called once at engine startup, after Freeze.
func (h *Host) Globals(core *types.Core) map[string]types.Cell {
	out := make(map[string]types.Cell)
	for _, name := range h.Registry.Packages() {
		pkg := h.Registry.Package(name)
		if pkg == nil {
			continue
		}
		for fname, fn := range pkg.Functions {
			out[name+"."+fname] = types.NewCell(core.Func, []any{&nativeFunc{fn: fn}})
		}
		for cname, val := range pkg.Constants {
			out[name+"."+cname] = wrapNative(core, val)
		}
		for sname, s := range pkg.Statics {
			out[name+"."+sname] = wrapNative(core, s.Value)
		}
	}
	return out
}

// wrapNative boxes a bare host constant/static value into the Cell of its
// matching Core primitive. Host types register through RegisterType and
// are addressed via their own Descriptor, not through this path.
func wrapNative(core *types.Core, v any) types.Cell {
	switch x := v.(type) {
	case int64:
		return types.NewCell(core.Int, []any{x})
	case int:
		return types.NewCell(core.Int, []any{int64(x)})
	case float64:
		return types.NewCell(core.Float, []any{x})
	case string:
		return types.NewCell(core.String, []any{x})
	case bool:
		return types.NewCell(core.Bool, []any{x})
	default:
		return types.NilCell(core.Nil)
	}
}
