package provides

// Generic type expressions.  Go's reflect package cannot represent an
// unresolved generic type, so the resolution algebra operates over this
// explicit model instead.  Equality is structural except for capture
// variables, which compare by identity.

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/muir/reflectutils"
)

// Type is a generic type expression: a raw class, a parameterized type,
// a wildcard, a type variable, or an array.  Implementations are
// *Raw, *Parameterized, *Wildcard, *Variable, and *Array.
type Type interface {
	typeNode()
	String() string
}

var (
	_ Type = &Raw{}
	_ Type = &Parameterized{}
	_ Type = &Wildcard{}
	_ Type = &Variable{}
	_ Type = &Array{}
)

// Raw identifies a class with no type arguments applied.  Exactly one of
// Class and Opaque is set.  A type whose class description cannot be
// retrieved is carried as an opaque reflect.Type and passes through the
// algebra unchanged.
type Raw struct {
	Class  *Class
	Opaque reflect.Type
}

// Parameterized is a generic class applied to type arguments, such as
// List[string].  Owner is the enclosing type for nested classes and may
// be nil.
type Parameterized struct {
	Owner Type
	Class *Class
	Args  []Type
}

// Wildcard is an unknown type bounded from below and/or above.  An
// unbounded wildcard has Upper equal to [AnyType] and no Lower bounds.
type Wildcard struct {
	Lower []Type
	Upper []Type
}

// Variable is a type variable.  Declared variables belong to the type
// parameter list of a Class and compare by declaring class and name.
// Capture variables are minted during capture conversion and compare by
// identity: two independent captures are never equal, even with
// identical bounds.
type Variable struct {
	Name   string
	Bounds []Type
	// Decl identifies the declaring context.  It must be comparable;
	// in practice it is a *Class.  Capture variables leave it nil.
	Decl any

	capture uuid.UUID
}

// Array is an array (or Go slice) of some component type.
type Array struct {
	Elem Type
}

func (*Raw) typeNode()           {}
func (*Parameterized) typeNode() {}
func (*Wildcard) typeNode()      {}
func (*Variable) typeNode()      {}
func (*Array) typeNode()         {}

// AnyType is the top type: the implicit upper bound of unbounded
// wildcards and unbounded type variables.
var AnyType = &Raw{Opaque: reflect.TypeOf((*any)(nil)).Elem()}

// RawOf returns the raw type expression for a class.
func RawOf(c *Class) *Raw {
	if c == nil {
		panic("provides: RawOf called with nil class")
	}
	return &Raw{Class: c}
}

// OpaqueOf returns a raw type expression wrapping a Go type that has no
// class description.
func OpaqueOf(t reflect.Type) *Raw {
	if t == nil {
		panic("provides: OpaqueOf called with nil type")
	}
	return &Raw{Opaque: t}
}

// Parameterize applies type arguments to a generic class.  The number
// of arguments must match the class's type parameters.
func Parameterize(c *Class, args ...Type) *Parameterized {
	if len(args) != len(c.TypeParams) {
		panic(fmt.Sprintf("provides: %s wants %d type arguments, got %d",
			c.Name, len(c.TypeParams), len(args)))
	}
	return &Parameterized{Class: c, Args: args}
}

// ArrayOf returns the array type with the given component type.
func ArrayOf(elem Type) *Array {
	return &Array{Elem: elem}
}

// Unbounded returns a fresh "?" wildcard.
func Unbounded() *Wildcard {
	return &Wildcard{Upper: []Type{AnyType}}
}

// Extends returns a "? extends ..." wildcard.
func Extends(upper ...Type) *Wildcard {
	return &Wildcard{Upper: upper}
}

// Super returns a "? super ..." wildcard.  Its upper bound is AnyType.
func Super(lower ...Type) *Wildcard {
	return &Wildcard{Lower: lower, Upper: []Type{AnyType}}
}

// IsCapture reports whether v was minted by capture conversion.
func (v *Variable) IsCapture() bool {
	return v.capture != uuid.Nil
}

// EqualTypes reports structural equality between two type expressions.
// Two parameterized types are equal iff their classes, owners, and all
// arguments are equal.  Capture variables are equal only to themselves.
func EqualTypes(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case *Raw:
		bt, ok := b.(*Raw)
		if !ok {
			return false
		}
		if at.Class != nil || bt.Class != nil {
			return at.Class == bt.Class
		}
		return at.Opaque == bt.Opaque
	case *Parameterized:
		bt, ok := b.(*Parameterized)
		if !ok {
			return false
		}
		return at.Class == bt.Class &&
			EqualTypes(at.Owner, bt.Owner) &&
			equalTypeLists(at.Args, bt.Args)
	case *Wildcard:
		bt, ok := b.(*Wildcard)
		if !ok {
			return false
		}
		return equalTypeLists(at.Lower, bt.Lower) &&
			equalTypeLists(at.Upper, bt.Upper)
	case *Variable:
		bt, ok := b.(*Variable)
		if !ok {
			return false
		}
		if at.capture != uuid.Nil || bt.capture != uuid.Nil {
			return at.capture == bt.capture
		}
		return at.Decl == bt.Decl && at.Name == bt.Name
	case *Array:
		bt, ok := b.(*Array)
		if !ok {
			return false
		}
		return EqualTypes(at.Elem, bt.Elem)
	}
	return false
}

func equalTypeLists(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualTypes(a[i], b[i]) {
			return false
		}
	}
	return true
}

// containsType reports whether want is present in types, by EqualTypes.
func containsType(types []Type, want Type) bool {
	for _, t := range types {
		if EqualTypes(t, want) {
			return true
		}
	}
	return false
}

// dedupTypes returns types with structural duplicates removed,
// preserving first-occurrence order.
func dedupTypes(types []Type) []Type {
	out := make([]Type, 0, len(types))
	for _, t := range types {
		if !containsType(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// RawClassOf returns the class underlying a type expression: the class
// of a raw or parameterized type, or the element's class for arrays.
// Wildcards, variables, and opaque raw types have no class.
func RawClassOf(t Type) (*Class, bool) {
	switch tt := t.(type) {
	case *Raw:
		if tt.Class != nil {
			return tt.Class, true
		}
	case *Parameterized:
		return tt.Class, true
	case *Array:
		return RawClassOf(tt.Elem)
	}
	return nil, false
}

func (t *Raw) String() string {
	if t.Class != nil {
		return t.Class.Name
	}
	return reflectutils.TypeName(t.Opaque)
}

func (t *Parameterized) String() string {
	var sb strings.Builder
	if t.Owner != nil {
		sb.WriteString(t.Owner.String())
		sb.WriteString(".")
	}
	sb.WriteString(t.Class.Name)
	if len(t.Args) == 0 {
		return sb.String()
	}
	sb.WriteString("[")
	for i, arg := range t.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString("]")
	return sb.String()
}

func (t *Wildcard) String() string {
	if len(t.Lower) > 0 {
		return "? super " + joinTypes(t.Lower, " & ")
	}
	if len(t.Upper) == 0 || (len(t.Upper) == 1 && EqualTypes(t.Upper[0], AnyType)) {
		return "?"
	}
	return "? extends " + joinTypes(t.Upper, " & ")
}

func (t *Variable) String() string { return t.Name }

func (t *Array) String() string { return "[]" + t.Elem.String() }

func joinTypes(types []Type, sep string) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}
