// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package universe implements the Value Universe: a reflected registry
// of host types and host functions that the rest of the runtime is
// compiled against.
//
// A Type is derived once from a Go reflect.Type (first registration
// wins) and carries the same facts the original mirror.h TypeLibrary
// attaches to a type: its kind, its size, its fields (for record
// kinds) and, when the type is not trivial, the host-supplied
// construct/copy/move/assign operations (of which default-construct
// and copy-assign are the ones the interpreter calls).
//
// A Function is derived from a Go func value. Its parameters are
// marshalled according to their indirection: pointer parameters are
// references (borrowed, never copied); non-pointer parameters are
// by-value and are moved out of their slot when invoked, leaving a
// default-constructed sentinel behind (see program.Execute and
// SPEC_FULL.md's Open Question (a)).
package universe

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind classifies a Type the way the host's reflection does.
type Kind int

const (
	Fundamental Kind = iota
	Class
	Union
	Enum
	Array
	Pointer
	FunctionKind
)

func (k Kind) String() string {
	switch k {
	case Fundamental:
		return "fundamental"
	case Class:
		return "class"
	case Union:
		return "union"
	case Enum:
		return "enum"
	case Array:
		return "array"
	case Pointer:
		return "pointer"
	case FunctionKind:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Indirection describes how a value is passed: directly, or through a
// borrowed reference. RValueRef exists for data-model fidelity with
// the source (see spec §3 Qualified Type) but this registry never
// derives it automatically from a Go signature — there is no Go
// syntax that distinguishes an rvalue reference from an lvalue
// reference the way C++ does, and no function in this package sets
// it.
type Indirection int

const (
	None Indirection = iota
	LValueRef
	RValueRef
)

func (i Indirection) String() string {
	switch i {
	case None:
		return "value"
	case LValueRef:
		return "lvalue-ref"
	case RValueRef:
		return "rvalue-ref"
	default:
		return fmt.Sprintf("Indirection(%d)", int(i))
	}
}

// QualifiedType is a Type plus the const/volatile/indirection
// qualifiers that apply at a particular use site (a pin, a parameter,
// a return).
type QualifiedType struct {
	Type        *Type
	Const       bool
	Volatile    bool
	Indirection Indirection
}

func (qt QualifiedType) String() string {
	s := qt.Type.String()
	if qt.Const {
		s = "const " + s
	}
	if qt.Volatile {
		s = "volatile " + s
	}
	switch qt.Indirection {
	case LValueRef:
		s += "&"
	case RValueRef:
		s += "&&"
	}
	return s
}

// Field is one named, typed member of a Class or Union Type. Field
// order is significant: it defines Split/Build pin order (spec §4.2).
type Field struct {
	Name  string
	Type  QualifiedType
	index []int // reflect field index path, for FieldByIndex
}

// Access returns the addressable field value within base, which must
// itself be addressable (typically slots[i].Addr().Elem() from the
// interpreter). The returned Value aliases base's storage; it is not
// a copy.
func (f Field) Access(base reflect.Value) reflect.Value {
	return base.FieldByIndex(f.index)
}

// Operations holds the five non-trivial operations a Class or Union
// Type may need: default-construct, copy-construct, move-construct,
// copy-assign, move-assign. Only DefaultConstruct and CopyAssign are
// called (by Type.DefaultConstruct and Type.CopyAssign); either may be
// nil, in which case the generic reflect-based behaviour (zero value,
// plain Set) is used. The other three are stored but never called.
type Operations struct {
	DefaultConstruct func() reflect.Value
	CopyConstruct    func(src reflect.Value) reflect.Value
	MoveConstruct    func(src reflect.Value) reflect.Value
	CopyAssign       func(dst, src reflect.Value)
	MoveAssign       func(dst, src reflect.Value)
}

// Type represents one entry in the Value Universe: a size, a kind,
// and — for record kinds — an ordered field list.
type Type struct {
	id       int64
	name     string
	goType   reflect.Type
	size     uintptr
	kind     Kind
	elem     *Type // Array, Pointer element type
	params   []QualifiedType
	result   QualifiedType
	hasResult bool
	fields   []Field
	trivial  bool
	ops      *Operations
}

// ID is the type's stable, process-wide identity. Identity is 1:1
// with a host Go type: registering the same reflect.Type twice
// returns the same *Type (spec §3 Type invariant, tested in
// TestRegisterTypeIdempotent).
func (t *Type) ID() int64 { return t.id }

func (t *Type) String() string {
	if t.name != "" {
		return t.name
	}
	return t.goType.String()
}

// GoType returns the underlying host reflect.Type this Type was
// derived from.
func (t *Type) GoType() reflect.Type { return t.goType }

// Size is the type's size in bytes.
func (t *Type) Size() uintptr { return t.size }

// Kind classifies the type.
func (t *Type) Kind() Kind { return t.kind }

// Elem returns the element type for Array and Pointer kinds, or nil.
func (t *Type) Elem() *Type { return t.elem }

// Fields returns the ordered field list for Class and Union kinds, or
// nil for any other kind.
func (t *Type) Fields() []Field { return t.fields }

// Params returns the parameter types for a FunctionKind Type.
func (t *Type) Params() []QualifiedType { return t.params }

// Result returns the return type for a FunctionKind Type and whether
// that type has a (non-void) result at all.
func (t *Type) Result() (QualifiedType, bool) { return t.result, t.hasResult }

// Trivial reports whether the type requires none of the five
// non-trivial operations (it can be default-constructed, copied and
// moved with a plain Go assignment).
func (t *Type) Trivial() bool { return t.trivial }

// Ops returns the operations installed with SetOperations, or nil if
// none were installed (Class and Union types are non-trivial even
// then).
func (t *Type) Ops() *Operations { return t.ops }

// DefaultConstruct returns a fresh, addressable, zero/default value
// of this type, using the registered DefaultConstruct operation if
// one exists.
func (t *Type) DefaultConstruct() reflect.Value {
	if t.ops != nil && t.ops.DefaultConstruct != nil {
		v := t.ops.DefaultConstruct()
		return addressable(v)
	}
	return reflect.New(t.goType).Elem()
}

// CopyAssign assigns src into dst in place, using the registered
// CopyAssign operation if one exists.
func (t *Type) CopyAssign(dst, src reflect.Value) {
	if t.ops != nil && t.ops.CopyAssign != nil {
		t.ops.CopyAssign(dst, src)
		return
	}
	dst.Set(src)
}

func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	addr := reflect.New(v.Type()).Elem()
	addr.Set(v)
	return addr
}

// Function is a reflected callable: it takes a pointer array (each
// entry a pointer to an addressable Program slot) and yields an owned
// return value.
type Function struct {
	Name       string
	ParamNames []string
	Type       *Type // Kind() == FunctionKind

	invoke func(args []reflect.Value) (reflect.Value, error)
}

// Invoke calls the function with args, one pointer to a slot per
// declared parameter (args[i].Elem() is the parameter's current
// value). By-value parameters are moved out of their slot as a side
// effect: the slot is reset to its type's default-constructed value
// after the call reads it (spec §9 Open Question (a), decision (ii)).
//
// Invoke returns the invalid Value for a void-returning function.
func (f *Function) Invoke(args []reflect.Value) (reflect.Value, error) {
	return f.invoke(args)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry is the Value Universe: a process-wide set of registered
// Types and Functions. It is read-only once populated; registration
// is expected to happen during host start-up before any graph is
// compiled (spec §5).
type Registry struct {
	mu sync.Mutex

	nextID int64
	byGo   map[reflect.Type]*Type

	functions map[string]*Function

	immediateParsers map[*Type]func(text string) (reflect.Value, error)
}

// NewRegistry returns an empty Value Universe.
func NewRegistry() *Registry {
	return &Registry{
		byGo:             make(map[reflect.Type]*Type),
		functions:        make(map[string]*Function),
		immediateParsers: make(map[*Type]func(text string) (reflect.Value, error)),
	}
}

// RegisterType registers the Go type of example and returns its Type.
// A typed nil pointer such as (*Foo)(nil) registers the pointer type
// *Foo (of kind Pointer, with Foo registered as its element). Registration is idempotent: the
// second call with the same reflect.Type returns the exact same Type,
// with the same field order (spec §3 Type invariant).
func (r *Registry) RegisterType(example any) *Type {
	rt := reflect.TypeOf(example)
	return r.registerGoType(rt)
}

func (r *Registry) registerGoType(rt reflect.Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerGoTypeLocked(rt)
}

func (r *Registry) registerGoTypeLocked(rt reflect.Type) *Type {
	if t, ok := r.byGo[rt]; ok {
		return t
	}

	t := &Type{
		id:     r.nextID,
		goType: rt,
		size:   rt.Size(),
	}
	r.nextID++

	// Register before recursing into fields/elements so that
	// self-referential types (a record containing a pointer to
	// itself) terminate.
	r.byGo[rt] = t

	switch rt.Kind() {
	case reflect.Struct:
		t.kind = Class
		t.fields = make([]Field, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			ft := r.registerGoTypeLocked(sf.Type)
			t.fields = append(t.fields, Field{
				Name:  sf.Name,
				Type:  QualifiedType{Type: ft},
				index: []int{i},
			})
		}
	case reflect.Array, reflect.Slice:
		t.kind = Array
		t.elem = r.registerGoTypeLocked(rt.Elem())
	case reflect.Ptr:
		t.kind = Pointer
		t.elem = r.registerGoTypeLocked(rt.Elem())
	case reflect.Func:
		t.kind = FunctionKind
		for i := 0; i < rt.NumIn(); i++ {
			t.params = append(t.params, r.qualifiedTypeLocked(rt.In(i)))
		}
		if rt.NumOut() > 0 && !(rt.NumOut() == 1 && rt.Out(0) == errorType) {
			t.result = r.qualifiedTypeLocked(rt.Out(0))
			t.hasResult = true
		}
	default:
		if isInteger(rt.Kind()) && rt.PkgPath() != "" {
			// A defined (named) integer type outside the predeclared
			// set reads as an enum — the closest Go has to the
			// source's enum kind (spec §3 Type Kind).
			t.kind = Enum
		} else {
			t.kind = Fundamental
		}
	}

	t.trivial = t.kind != Class && t.kind != Union
	return t
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func (r *Registry) qualifiedTypeLocked(rt reflect.Type) QualifiedType {
	indirection := None
	base := rt
	if rt.Kind() == reflect.Ptr {
		indirection = LValueRef
		base = rt.Elem()
	}
	return QualifiedType{
		Type:        r.registerGoTypeLocked(base),
		Indirection: indirection,
	}
}

// SetOperations installs the non-trivial operations for t, marking it
// non-trivial. Use this for record types that need custom
// construction/copy/move behaviour instead of the generic
// reflect-based defaults.
func (r *Registry) SetOperations(t *Type, ops *Operations) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ops = ops
	t.trivial = false
}

// RegisterImmediateParser installs a parser for textual immediates of
// type t, for use when a literal wire targets a pin of a type other
// than the two built in to the Compiler (integer, real). This is the
// extension point named in spec §9 Open Question (b).
func (r *Registry) RegisterImmediateParser(t *Type, parse func(text string) (reflect.Value, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.immediateParsers[t] = parse
}

// ImmediateParser returns the parser registered for t, if any.
func (r *Registry) ImmediateParser(t *Type) (func(text string) (reflect.Value, error), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.immediateParsers[t]
	return p, ok
}

// RegisterFunction reflects fn (which must be a Go func value) into a
// Function named name, with paramNames labelling its parameters in
// order (len(paramNames) must equal fn's arity). Every parameter type
// (after removing one layer of pointer indirection) must already be
// registered; an unregistered parameter type is a programmer error
// and RegisterFunction panics, per spec §4.1's "fails fast" policy.
//
// If fn's last return value is of type error, it is treated specially:
// it is not part of the reflected return type, and is instead
// returned from Function.Invoke, propagating unmodified out of the
// eventual Program.Execute (spec §7).
func (r *Registry) RegisterFunction(fn any, name string, paramNames ...string) *Function {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		panic(fmt.Sprintf("universe: RegisterFunction(%s): not a function", name))
	}
	if len(paramNames) != rt.NumIn() {
		panic(fmt.Sprintf("universe: RegisterFunction(%s): got %d parameter names, want %d", name, len(paramNames), rt.NumIn()))
	}

	returnsError := rt.NumOut() > 0 && rt.Out(rt.NumOut()-1) == errorType
	valueOuts := rt.NumOut()
	if returnsError {
		valueOuts--
	}
	if valueOuts > 1 {
		panic(fmt.Sprintf("universe: RegisterFunction(%s): functions may return at most one value (plus an optional trailing error)", name))
	}

	r.mu.Lock()
	params := make([]QualifiedType, rt.NumIn())
	paramTypes := make([]*Type, rt.NumIn())
	for i := 0; i < rt.NumIn(); i++ {
		pt := rt.In(i)
		base := pt
		indirection := None
		if pt.Kind() == reflect.Ptr {
			indirection = LValueRef
			base = pt.Elem()
		}
		bt, ok := r.byGo[base]
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("universe: RegisterFunction(%s): parameter %d (%s) has no registered Type", name, i, base))
		}
		params[i] = QualifiedType{Type: bt, Indirection: indirection}
		paramTypes[i] = bt
	}

	var result QualifiedType
	hasResult := valueOuts == 1
	if hasResult {
		rtOut := rt.Out(0)
		bt, ok := r.byGo[rtOut]
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("universe: RegisterFunction(%s): return type %s has no registered Type", name, rtOut))
		}
		result = QualifiedType{Type: bt}
	}

	ftype := &Type{
		id:        r.nextID,
		goType:    rt,
		kind:      FunctionKind,
		params:    params,
		result:    result,
		hasResult: hasResult,
		trivial:   true,
	}
	r.nextID++

	fn2 := &Function{
		Name:       name,
		ParamNames: append([]string(nil), paramNames...),
		Type:       ftype,
		invoke:     makeInvoker(rv, rt, paramTypes, returnsError),
	}
	r.functions[name] = fn2
	r.mu.Unlock()

	return fn2
}

// RegisterMethod registers method exactly as RegisterFunction
// registers a free function; it adds no receiver handling of its own.
// Parameter 0 is the receiver only when method is a method expression
// (e.g. reflect.TypeOf(Point{}).Method(0).Func.Interface()) or another
// func whose first Go parameter is the receiver. A bound method value
// (v.M) has no receiver parameter.
func (r *Registry) RegisterMethod(method any, name string, paramNames ...string) *Function {
	return r.RegisterFunction(method, name, paramNames...)
}

// ClassBuilder provides the fluent "bind_class<C>(name).method(...)"
// registration style described in spec §4.1, built on top of
// RegisterType/RegisterMethod/RegisterFunction.
type ClassBuilder struct {
	r    *Registry
	Type *Type
}

// BindClass registers the Go type of example as a named class and
// returns a builder for attaching methods and constructors to it.
// Field order is taken directly from the Go struct's declared field
// order, as RegisterType already does.
func (r *Registry) BindClass(example any, name string) *ClassBuilder {
	t := r.RegisterType(example)
	r.mu.Lock()
	t.name = name
	r.mu.Unlock()
	return &ClassBuilder{r: r, Type: t}
}

// Method registers a bound method value against the class, under the
// given name, and returns the builder for further chaining.
func (b *ClassBuilder) Method(method any, name string, paramNames ...string) *ClassBuilder {
	b.r.RegisterMethod(method, name, paramNames...)
	return b
}

// Constructor registers a free function that builds a new instance of
// the class, under the given name, and returns the builder for
// further chaining.
func (b *ClassBuilder) Constructor(fn any, name string, paramNames ...string) *ClassBuilder {
	b.r.RegisterFunction(fn, name, paramNames...)
	return b
}

func makeInvoker(rv reflect.Value, rt reflect.Type, paramTypes []*Type, returnsError bool) func(args []reflect.Value) (reflect.Value, error) {
	n := rt.NumIn()
	return func(args []reflect.Value) (reflect.Value, error) {
		if len(args) != n {
			panic(fmt.Sprintf("universe: call with %d arguments, want %d", len(args), n))
		}

		in := make([]reflect.Value, n)
		for i := 0; i < n; i++ {
			pt := rt.In(i)
			if pt.Kind() == reflect.Ptr {
				// Reference parameter: pass the address through,
				// unmodified. The callee borrows it for the
				// duration of the call and must not retain it.
				in[i] = args[i]
				continue
			}

			// By-value parameter: copy the current slot value out
			// for the call, then move it out of the slot by
			// resetting the slot to its default-constructed state.
			cur := args[i].Elem()
			copyVal := reflect.New(pt).Elem()
			copyVal.Set(cur)
			in[i] = copyVal

			args[i].Elem().Set(paramTypes[i].DefaultConstruct())
		}

		out := rv.Call(in)
		var callErr error
		if returnsError {
			last := out[len(out)-1]
			if !last.IsNil() {
				callErr = last.Interface().(error)
			}
			out = out[:len(out)-1]
		}

		if len(out) == 0 {
			return reflect.Value{}, callErr
		}
		return out[0], callErr
	}
}
