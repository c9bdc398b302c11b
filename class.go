package provides

// Runtime descriptions of component classes and their members.  The
// discovery engine never looks members up reflectively at scan time: a
// Class carries an explicit member list, and each member carries the
// closures needed to invoke or read it later.

import (
	"fmt"
	"reflect"
)

// Class describes a (possibly generic) component class: its type
// parameters, generic supertypes, markers, and members.  Classes
// compare by identity.
type Class struct {
	Name string

	// TypeParams are the class's declared type variables.  Use
	// TypeParam to append one so that its declaring context is wired
	// correctly.
	TypeParams []*Variable

	// Super is the generic superclass, if any.  It may mention the
	// class's own type parameters, as in Stack[T] extends Vector[T].
	Super Type

	// Interfaces are the generic interfaces the class implements.
	Interfaces []Type

	Markers []Marker
	Members []*Member

	// Ctor describes the constructor the container's default
	// instantiation path would use, or nil if no usable constructor
	// exists.
	Ctor *Constructor

	// Abstract marks a class that cannot be instantiated directly.
	Abstract bool

	// Enumerated marks a class whose instances are a closed set of
	// predeclared values rather than constructor products.
	Enumerated bool

	// GoType is the backing Go type for classes synthesized through
	// the reflection bridge, or nil for hand-built descriptions.
	GoType reflect.Type
}

// Constructor describes one constructor of a class, in enough detail
// for the integration shim to predict whether default instantiation
// would succeed.
type Constructor struct {
	// Params are the constructor's parameter types.
	Params []Param
	// Private marks a constructor the container must not call.
	Private bool
	// Sole is true when this is the class's only constructor.
	Sole bool
	// New instantiates the class, resolving Params through the
	// container.  It is used by test fakes and host containers; the
	// discovery engine itself never calls it.
	New func(args []any) (any, error)
}

// MemberKind discriminates the four provider kinds.
type MemberKind int

const (
	StaticMethod MemberKind = iota
	InstanceMethod
	StaticField
	InstanceField
)

func (k MemberKind) String() string {
	switch k {
	case StaticMethod:
		return "static method"
	case InstanceMethod:
		return "instance method"
	case StaticField:
		return "static field"
	case InstanceField:
		return "instance field"
	}
	return fmt.Sprintf("MemberKind(%d)", int(k))
}

// Param is one method parameter: its declared (possibly generic) type
// and the qualifiers a lookup for it must match.
type Param struct {
	Type       Type
	Qualifiers []Qualifier
}

// Member is one method or field of a class.  Members compare by
// identity; the seen-provider registry keys on them.  Result is the
// declared (generic) return or field type.  Call is set for methods,
// Get for fields; the receiver is nil for static members.
type Member struct {
	Kind    MemberKind
	Name    string
	Owner   *Class
	Result  Type
	Params  []Param
	Markers []Marker

	Call func(recv any, args []any) (any, error)
	Get  func(recv any) (any, error)
}

// Static reports whether the member has no receiver.
func (m *Member) Static() bool {
	return m.Kind == StaticMethod || m.Kind == StaticField
}

// IsMethod reports whether the member is invoked rather than read.
func (m *Member) IsMethod() bool {
	return m.Kind == StaticMethod || m.Kind == InstanceMethod
}

func (m *Member) String() string {
	if m.Owner != nil {
		return fmt.Sprintf("%s %s.%s", m.Kind, m.Owner.Name, m.Name)
	}
	return fmt.Sprintf("%s %s", m.Kind, m.Name)
}

// NewClass starts a class description.  Type parameters, supertypes,
// markers, and members are filled in afterwards through the exported
// fields and the TypeParam / AddMember helpers.
func NewClass(name string) *Class {
	return &Class{Name: name}
}

// TypeParam declares a type variable on the class and returns it.  The
// variable's declaring context is the class, so two classes can both
// declare "T" without their variables unifying.  Bounds default to
// AnyType when none are given.
func (c *Class) TypeParam(name string, bounds ...Type) *Variable {
	if len(bounds) == 0 {
		bounds = []Type{AnyType}
	}
	v := &Variable{Name: name, Bounds: bounds, Decl: c}
	c.TypeParams = append(c.TypeParams, v)
	return v
}

// AddMember appends a member, wiring its owner, and returns it.
func (c *Class) AddMember(m *Member) *Member {
	m.Owner = c
	c.Members = append(c.Members, m)
	return m
}

// MarkerOn returns the first marker of type M on the class.
func MarkerOn[M Marker](c *Class) (M, bool) {
	return markerOf[M](c.Markers)
}

// instantiable predicts whether the container's default instantiation
// path would succeed for this class: a usable constructor exists and
// the class is neither abstract, enumerated, nor shaped like a utility
// class.
func (c *Class) instantiable() bool {
	if c.Ctor == nil || c.Abstract || c.Enumerated {
		return false
	}
	return !c.utilityClassShaped()
}

// utilityClassShaped reports the traditional utility-class pattern: a
// single private zero-argument constructor and only static members.
func (c *Class) utilityClassShaped() bool {
	if c.Ctor == nil || !c.Ctor.Private || !c.Ctor.Sole || len(c.Ctor.Params) != 0 {
		return false
	}
	for _, m := range c.Members {
		if !m.Static() {
			return false
		}
	}
	return true
}
