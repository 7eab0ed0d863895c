package types

import (
	"fmt"
	"sync"
)

// Registry is the process-wide, append-only Type/Package table (spec.md
// §3 "Package", §4.2 "Export Descriptor ABI"). It freezes when Freeze is
// called; creating a Source Module does not call Freeze.
type Registry struct {
	mu      sync.RWMutex
	frozen  bool
	types   map[ID]*Type
	byName  map[string]*Type // "package.Name" -> Type
	byHost  map[any]*Type    // host-native identity (e.g. a reflect.Type) -> Type
	pkgs    map[string]*Package
}

// Package is a named collection of exported items (spec.md §3).
type Package struct {
	Name      string
	Functions map[string]*Function
	Constants map[string]any
	Statics   map[string]*Static
	Types     map[string]*Type
}

// Function is one exported host function descriptor (spec.md §4.2).
type Function struct {
	Name       string
	Package    string
	ParamTypes []*Type // nil element means "dynamic"
	AccessModes []AccessMode
	ReturnType *Type // nil means "dynamic"
	Doc        string
	Call       func(args []any) (any, error)
}

// Static is a mutable package-level binding (spec.md §3 "statics").
type Static struct {
	Name  string
	Type  *Type
	Value any
}

// NewRegistry creates an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[ID]*Type),
		byName: make(map[string]*Type),
		byHost: make(map[any]*Type),
		pkgs:   make(map[string]*Package),
	}
}

// ErrFrozen is returned by any mutating call made after Freeze.
var ErrFrozen = fmt.Errorf("type registry is frozen")

// RegisterType builds an immutable *Type from d and adds it to the
// registry, keyed by its host-native identity for later lookup. Name
// collisions within a package are fatal (spec.md §4.2); collisions across
// packages are tolerated.
func (r *Registry) RegisterType(d Descriptor, hostIdentity any) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil, ErrFrozen
	}
	qualified := d.Package + "." + d.Name
	if _, exists := r.byName[qualified]; exists {
		return nil, fmt.Errorf("type registration collision: %s already registered in package %q", d.Name, d.Package)
	}
	t := &Type{
		ID:           newID(qualified),
		Name:         qualified,
		Package:      d.Package,
		Family:       d.Family,
		Doc:          d.Doc,
		CloneFn:      d.CloneFn,
		EqualFn:      d.EqualFn,
		LessFn:       d.LessFn,
		HashFn:       d.HashFn,
		DisplayFn:    d.DisplayFn,
		DebugFn:      d.DebugFn,
		BinaryOps:    d.BinaryOps,
		UnaryOps:     d.UnaryOps,
		NilTestFn:    d.NilTestFn,
		IterBoundsFn: d.IterBoundsFn,
		Fields:       d.Fields,
		Methods:      d.Methods,
		Cast:         d.Cast,
		InvokeFn:     d.InvokeFn,
	}
	r.types[t.ID] = t
	r.byName[qualified] = t
	if hostIdentity != nil {
		r.byHost[hostIdentity] = t
	}
	pkg := r.packageLocked(d.Package)
	pkg.Types[d.Name] = t
	return t, nil
}

// RegisterFunction adds a package-global function descriptor. Collisions
// within the package are fatal.
func (r *Registry) RegisterFunction(fn *Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	pkg := r.packageLocked(fn.Package)
	if _, exists := pkg.Functions[fn.Name]; exists {
		return fmt.Errorf("function registration collision: %s.%s already registered", fn.Package, fn.Name)
	}
	pkg.Functions[fn.Name] = fn
	return nil
}

// RegisterConstant adds a package-global constant.
func (r *Registry) RegisterConstant(pkgName, name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	pkg := r.packageLocked(pkgName)
	if _, exists := pkg.Constants[name]; exists {
		return fmt.Errorf("constant registration collision: %s.%s already registered", pkgName, name)
	}
	pkg.Constants[name] = value
	return nil
}

// RegisterStatic adds a package-global mutable static.
func (r *Registry) RegisterStatic(pkgName string, s *Static) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	pkg := r.packageLocked(pkgName)
	if _, exists := pkg.Statics[s.Name]; exists {
		return fmt.Errorf("static registration collision: %s.%s already registered", pkgName, s.Name)
	}
	pkg.Statics[s.Name] = s
	return nil
}

func (r *Registry) packageLocked(name string) *Package {
	pkg, ok := r.pkgs[name]
	if !ok {
		pkg = &Package{
			Name:      name,
			Functions: make(map[string]*Function),
			Constants: make(map[string]any),
			Statics:   make(map[string]*Static),
			Types:     make(map[string]*Type),
		}
		r.pkgs[name] = pkg
	}
	return pkg
}

// Freeze makes the registry read-only. Nothing calls it automatically;
// the host calls it (through hostabi.Host.Freeze) once its exports are in.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the unique Type registered under a host-native identity.
func (r *Registry) Lookup(hostIdentity any) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byHost[hostIdentity]
	return t, ok
}

// LookupByName returns the Type registered under "package.Name".
func (r *Registry) LookupByName(qualified string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[qualified]
	return t, ok
}

// Package returns the named package, or nil if it was never touched.
func (r *Registry) Package(name string) *Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pkgs[name]
}

// Packages returns every package name registered so far.
func (r *Registry) Packages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pkgs))
	for name := range r.pkgs {
		names = append(names, name)
	}
	return names
}
