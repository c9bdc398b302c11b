package provides

// The resolution algebra.  ResolveType substitutes type variables in a
// dependent type using the type arguments found in a context type, with
// wildcard capture conversion applied to the context first so that two
// structurally-unrelated wildcards never unify.

import (
	"fmt"

	"github.com/google/uuid"
)

// ResolveType resolves type variables in dependentType using the type
// arguments carried by contextType.
//
// Example: with contextType Repo[string] and dependentType List[T]
// (where T is Repo's type parameter), the result is List[string].
//
// Unmapped variables pass through unchanged; callers detect leftovers
// with ContainsTypeVariable.
func ResolveType(contextType, dependentType Type) Type {
	if contextType == nil || dependentType == nil {
		panic("provides: ResolveType called with nil type")
	}
	mappings := newVariableMappings(contextType)
	resolver := &variableResolver{mappings: mappings}
	return resolver.resolve(dependentType)
}

// ContainsTypeVariable reports whether any node reachable from t is a
// type variable.  Self-referential bounds (T extends Comparable[T]) are
// handled with an explicit visited set.
func ContainsTypeVariable(t Type) bool {
	if t == nil {
		panic("provides: ContainsTypeVariable called with nil type")
	}
	d := &variableDetector{}
	return d.matches(t)
}

// typeSet is a visited set keyed by structural equality.  The graphs it
// guards are small; a linear scan beats maintaining a structural hash.
type typeSet struct {
	types []Type
}

// add returns true if t was not already present.
func (s *typeSet) add(t Type) bool {
	if containsType(s.types, t) {
		return false
	}
	s.types = append(s.types, t)
	return true
}

type variableDetector struct {
	seen typeSet
}

func (d *variableDetector) matches(t Type) bool {
	if !d.seen.add(t) {
		return false
	}
	switch tt := t.(type) {
	case *Variable:
		return true
	case *Raw:
		return false
	case *Wildcard:
		for _, lower := range tt.Lower {
			if d.matches(lower) {
				return true
			}
		}
		for _, upper := range tt.Upper {
			if d.matches(upper) {
				return true
			}
		}
		return false
	case *Parameterized:
		if tt.Owner != nil && d.matches(tt.Owner) {
			return true
		}
		for _, arg := range tt.Args {
			if d.matches(arg) {
				return true
			}
		}
		return false
	case *Array:
		return d.matches(tt.Elem)
	}
	return false
}

// wildcardCapturer replaces "?" wildcards with freshly minted capture
// variables.  Without this, resolving a mutator's parameter type
// against Box[?] would produce Box[?] again, and a later Satisfies
// check would wrongly accept an arbitrary Box[string] argument.  The
// capture variable's bounds are the wildcard's upper bounds combined
// with the declared bounds of the parameter position it occupies.
// Captures are numbered within one conversion so two captures with
// identical bounds still render distinctly in diagnostics.
type wildcardCapturer struct {
	extra   []Type
	counter *int
}

func captureWildcards(t Type) Type {
	var counter int
	return wildcardCapturer{counter: &counter}.transform(t)
}

func (w wildcardCapturer) transform(t Type) Type {
	switch tt := t.(type) {
	case *Variable, *Raw:
		return t
	case *Wildcard:
		if len(tt.Lower) > 0 {
			return t
		}
		return w.newCapture(tt.Upper)
	case *Parameterized:
		args := make([]Type, len(tt.Args))
		for i, arg := range tt.Args {
			inner := wildcardCapturer{counter: w.counter}
			if i < len(tt.Class.TypeParams) {
				inner.extra = tt.Class.TypeParams[i].Bounds
			}
			args[i] = inner.transform(arg)
		}
		var owner Type
		if tt.Owner != nil {
			owner = wildcardCapturer{counter: w.counter}.transform(tt.Owner)
		}
		return &Parameterized{Owner: owner, Class: tt.Class, Args: args}
	case *Array:
		return &Array{Elem: wildcardCapturer{counter: w.counter}.transform(tt.Elem)}
	}
	return t
}

func (w wildcardCapturer) newCapture(upper []Type) *Variable {
	bounds := make([]Type, 0, len(upper)+len(w.extra))
	bounds = append(bounds, upper...)
	bounds = append(bounds, w.extra...)
	bounds = dedupTypes(bounds)
	if len(bounds) > 1 {
		withoutAny := make([]Type, 0, len(bounds))
		for _, b := range bounds {
			if !EqualTypes(b, AnyType) {
				withoutAny = append(withoutAny, b)
			}
		}
		if len(withoutAny) > 0 {
			bounds = withoutAny
		}
	}
	*w.counter++
	name := fmt.Sprintf("capture#%d of ?", *w.counter)
	if !(len(bounds) == 1 && EqualTypes(bounds[0], AnyType)) {
		name += " extends " + joinTypes(bounds, " & ")
	}
	return &Variable{
		Name:    name,
		Bounds:  bounds,
		capture: uuid.New(),
	}
}

// varKey is the map key for a type variable: declaring context plus
// name for declared variables, unique ID for captures.
type varKey struct {
	decl    any
	name    string
	capture uuid.UUID
}

func keyFor(v *Variable) varKey {
	return varKey{decl: v.Decl, name: v.Name, capture: v.capture}
}

// variableMappings maps type variables to actual type arguments,
// gathered by walking a context type's hierarchy.  The first mapping
// recorded for a variable wins; later occurrences never overwrite it.
type variableMappings struct {
	seen typeSet
	vars map[varKey]Type
}

func newVariableMappings(contextType Type) *variableMappings {
	invariant := captureWildcards(contextType)
	vm := &variableMappings{vars: make(map[varKey]Type)}
	vm.add(invariant)
	return vm
}

// get chases variable-to-variable chains until it reaches a non-variable
// or an unmapped variable, which is returned as-is.
func (vm *variableMappings) get(t Type) Type {
	for {
		v, ok := t.(*Variable)
		if !ok {
			return t
		}
		mapped, found := vm.vars[keyFor(v)]
		if !found || mapped == t {
			return t
		}
		t = mapped
	}
}

func (vm *variableMappings) add(t Type) {
	if t == nil || !vm.seen.add(t) {
		return
	}
	switch tt := t.(type) {
	case *Variable:
		vm.addAll(tt.Bounds)
	case *Raw:
		if tt.Class == nil {
			return
		}
		if tt.Class.Super != nil {
			vm.add(tt.Class.Super)
		}
		vm.addAll(tt.Class.Interfaces)
	case *Wildcard:
		vm.addAll(tt.Upper)
	case *Parameterized:
		for i, param := range tt.Class.TypeParams {
			if i >= len(tt.Args) {
				break
			}
			key := keyFor(param)
			if _, present := vm.vars[key]; !present {
				vm.vars[key] = tt.Args[i]
			}
		}
		vm.add(RawOf(tt.Class))
		if tt.Owner != nil {
			vm.add(tt.Owner)
		}
	case *Array:
		vm.add(tt.Elem)
	}
}

func (vm *variableMappings) addAll(types []Type) {
	for _, t := range types {
		vm.add(t)
	}
}

// variableResolver rebuilds a type expression with every variable
// replaced by its mapping.
type variableResolver struct {
	mappings *variableMappings
}

func (r *variableResolver) resolve(t Type) Type {
	switch tt := t.(type) {
	case *Variable:
		return r.mappings.get(tt)
	case *Raw:
		return t
	case *Wildcard:
		return &Wildcard{
			Lower: r.resolveAll(tt.Lower),
			Upper: r.resolveAll(tt.Upper),
		}
	case *Parameterized:
		var owner Type
		if tt.Owner != nil {
			owner = r.resolve(tt.Owner)
		}
		return &Parameterized{
			Owner: owner,
			Class: tt.Class,
			Args:  r.resolveAll(tt.Args),
		}
	case *Array:
		return &Array{Elem: r.resolve(tt.Elem)}
	}
	return t
}

func (r *variableResolver) resolveAll(types []Type) []Type {
	resolved := make([]Type, len(types))
	for i, t := range types {
		resolved[i] = r.resolve(t)
	}
	return resolved
}

// AllTypes returns t followed by every supertype reachable through its
// raw class's hierarchy, with type variables resolved against the type
// they were reached from at each step.
func AllTypes(t Type) []Type {
	seen := &typeSet{}
	var walk func(Type)
	walk = func(cur Type) {
		if cur == nil || !seen.add(cur) {
			return
		}
		var class *Class
		switch ct := cur.(type) {
		case *Raw:
			class = ct.Class
		case *Parameterized:
			class = ct.Class
		}
		if class == nil {
			return
		}
		if class.Super != nil {
			walk(ResolveType(cur, class.Super))
		}
		for _, iface := range class.Interfaces {
			walk(ResolveType(cur, iface))
		}
	}
	walk(t)
	return seen.types
}

// Satisfies reports whether a value of type argument can be used where
// required is expected.  Type arguments of a required parameterized
// type must match exactly unless the required argument is a wildcard;
// in particular a capture variable accepts nothing but itself.
func Satisfies(required, argument Type) bool {
	if EqualTypes(required, argument) {
		return true
	}
	if EqualTypes(required, AnyType) {
		return true
	}
	switch req := required.(type) {
	case *Raw:
		if req.Class != nil {
			return supertypeWithClass(argument, req.Class) != nil
		}
		return goAssignable(req, argument)
	case *Parameterized:
		super := supertypeWithClass(argument, req.Class)
		if super == nil {
			return false
		}
		param, ok := super.(*Parameterized)
		if !ok {
			// raw use of a generic class
			return true
		}
		if len(param.Args) != len(req.Args) {
			return false
		}
		for i, want := range req.Args {
			if !argumentSatisfies(want, param.Args[i]) {
				return false
			}
		}
		return true
	case *Wildcard:
		for _, upper := range req.Upper {
			if !Satisfies(upper, argument) {
				return false
			}
		}
		for _, lower := range req.Lower {
			if !Satisfies(argument, lower) {
				return false
			}
		}
		return true
	case *Variable:
		// only identity, which EqualTypes already checked
		return false
	case *Array:
		arg, ok := argument.(*Array)
		return ok && Satisfies(req.Elem, arg.Elem)
	}
	return false
}

// argumentSatisfies checks one type-argument position: exact match, or
// a wildcard whose bounds admit the actual argument.
func argumentSatisfies(want, actual Type) bool {
	if EqualTypes(want, actual) {
		return true
	}
	if wc, ok := want.(*Wildcard); ok {
		return Satisfies(wc, actual)
	}
	return false
}

// supertypeWithClass finds the entry in argument's supertype closure
// whose raw class is class, or nil.
func supertypeWithClass(argument Type, class *Class) Type {
	for _, t := range AllTypes(argument) {
		switch tt := t.(type) {
		case *Raw:
			if tt.Class == class {
				return t
			}
		case *Parameterized:
			if tt.Class == class {
				return t
			}
		}
	}
	return nil
}

// goAssignable falls back to Go assignability for opaque raw types.
func goAssignable(req *Raw, argument Type) bool {
	arg, ok := argument.(*Raw)
	if !ok {
		return false
	}
	if arg.Opaque != nil {
		return arg.Opaque.AssignableTo(req.Opaque)
	}
	if arg.Class != nil && arg.Class.GoType != nil {
		return arg.Class.GoType.AssignableTo(req.Opaque)
	}
	return false
}
