package provides

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/muir/reflectutils"
)

// The reflection bridge synthesizes Class descriptions from Go types.
// Exported struct fields carrying a "provides" tag become instance
// field providers.  Anything the tag grammar cannot express, static
// members included, is declared by building a Class by hand instead.

const providesTag = "provides"

var classes struct {
	lock     sync.Mutex
	byGoType map[reflect.Type]*Class
}

// ClassFor synthesizes (or returns the interned) Class for T.
func ClassFor[T any]() (*Class, error) {
	return ClassOf(reflect.TypeOf((*T)(nil)).Elem())
}

// MustClassFor is ClassFor that panics on tag errors.
func MustClassFor[T any]() *Class {
	c, err := ClassFor[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// ClassOf synthesizes a Class description for a Go type.  One Class is
// interned per type: repeated calls return the same pointer, so
// identity-based member bookkeeping works across scans.  Pointer types
// describe their element type.
func ClassOf(rt reflect.Type) (*Class, error) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	classes.lock.Lock()
	defer classes.lock.Unlock()
	return classOfLocked(rt)
}

func classOfLocked(rt reflect.Type) (*Class, error) {
	if classes.byGoType == nil {
		classes.byGoType = make(map[reflect.Type]*Class)
	}
	if c, ok := classes.byGoType[rt]; ok {
		return c, nil
	}

	c := NewClass(reflectutils.TypeName(rt))
	c.GoType = rt
	// types may refer back to themselves through fields
	classes.byGoType[rt] = c

	if rt.Kind() == reflect.Struct {
		c.Ctor = &Constructor{
			Sole: true,
			New: func([]any) (any, error) {
				return reflect.New(rt).Interface(), nil
			},
		}
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if field.PkgPath != "" {
				continue
			}
			tag, ok := field.Tag.Lookup(providesTag)
			if !ok || tag == "-" {
				continue
			}
			m, err := fieldMember(c, field, tag)
			if err != nil {
				delete(classes.byGoType, rt)
				return nil, err
			}
			c.AddMember(m)
		}
		pt := reflect.PointerTo(rt)
		for i := 0; i < pt.NumMethod(); i++ {
			c.AddMember(methodMember(c, pt.Method(i)))
		}
	}

	return c, nil
}

// fieldMember builds the provider member for one tagged struct field.
func fieldMember(c *Class, field reflect.StructField, tag string) (*Member, error) {
	index := field.Index
	m := &Member{
		Kind:   InstanceField,
		Name:   field.Name,
		Owner:  c,
		Result: typeExprOf(field.Type),
		Get: func(recv any) (any, error) {
			v := reflect.ValueOf(recv)
			for v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return nil, fmt.Errorf("cannot read field %s of nil %s", field.Name, c.Name)
				}
				v = v.Elem()
			}
			return v.FieldByIndex(index).Interface(), nil
		},
	}
	marker, markers, err := parseTag(field.Name, c.Name, tag)
	if err != nil {
		return nil, err
	}
	m.Markers = append([]Marker{marker}, markers...)
	return m, nil
}

// methodMember describes one exported method.  Methods carry no
// provider tag, so they never become providers through the bridge, but
// dispose-method resolution needs them on the member list.
func methodMember(c *Class, method reflect.Method) *Member {
	mt := method.Type
	params := make([]Param, 0, mt.NumIn()-1)
	for i := 1; i < mt.NumIn(); i++ {
		params = append(params, Param{Type: typeExprOf(mt.In(i))})
	}
	var result Type
	if mt.NumOut() > 0 {
		result = typeExprOf(mt.Out(0))
	}
	return &Member{
		Kind:   InstanceMethod,
		Name:   method.Name,
		Owner:  c,
		Result: result,
		Params: params,
		Call: func(recv any, args []any) (any, error) {
			rv := reflect.ValueOf(recv)
			if rv.Type() != mt.In(0) {
				// value receiver in hand, pointer receiver wanted
				p := reflect.New(rv.Type())
				p.Elem().Set(rv)
				rv = p
			}
			in := make([]reflect.Value, 0, len(args)+1)
			in = append(in, rv)
			for i, a := range args {
				if a == nil {
					in = append(in, reflect.Zero(mt.In(i+1)))
					continue
				}
				in = append(in, reflect.ValueOf(a))
			}
			out := method.Func.Call(in)
			return firstResult(out)
		},
	}
}

func firstResult(out []reflect.Value) (any, error) {
	var result any
	for i, v := range out {
		if err, ok := v.Interface().(error); ok && err != nil {
			return nil, err
		}
		if i == 0 && v.Type() != errorType {
			result = v.Interface()
		}
	}
	return result, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// parseTag interprets a "provides" struct tag.  The grammar is
// comma-separated options:
//
//	contracts=A;B          advertise registered type names A and B
//	scope=Shared           scope by name
//	rank=3                 Rank marker
//	name=primary           Named qualifier
//	dispose=Close          dispose method name
//	disposedBy=provider    who owns the dispose method
//
// Contract names resolve through the registered-type index, so every
// name used in a tag must have been registered with RegisterType
// first.
func parseTag(fieldName, className, tag string) (Provides, []Marker, error) {
	var marker Provides
	var markers []Marker
	for _, option := range strings.Split(tag, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, _ := strings.Cut(option, "=")
		switch key {
		case "contracts":
			for _, name := range strings.Split(value, ";") {
				rt, err := typeByName(strings.TrimSpace(name))
				if err != nil {
					return marker, nil, tagError(fieldName, className, err.Error())
				}
				marker.Contracts = append(marker.Contracts, typeExprOf(rt))
			}
		case "scope":
			markers = append(markers, Scope{Name: value})
		case "rank":
			rank, err := strconv.Atoi(value)
			if err != nil {
				return marker, nil, tagError(fieldName, className, "rank must be an integer, got "+strconv.Quote(value))
			}
			markers = append(markers, Rank{Value: rank})
		case "name":
			markers = append(markers, Named{Name: value})
		case "dispose":
			marker.DisposeMethod = value
		case "disposedBy":
			switch value {
			case "provider":
				marker.DisposedBy = ByProvider
			case "provided":
				marker.DisposedBy = ByProvided
			default:
				return marker, nil, tagError(fieldName, className, "disposedBy must be provider or provided, got "+strconv.Quote(value))
			}
		default:
			return marker, nil, tagError(fieldName, className, "unknown option "+strconv.Quote(key))
		}
	}
	return marker, markers, nil
}

func tagError(fieldName, className, reason string) error {
	return fmt.Errorf("invalid provides tag on %s.%s: %s", className, fieldName, reason)
}

// typeExprOf maps a Go type into the type model: slices and arrays
// become Array types, everything else is an opaque raw type.
func typeExprOf(rt reflect.Type) Type {
	switch rt.Kind() {
	case reflect.Slice, reflect.Array:
		return ArrayOf(typeExprOf(rt.Elem()))
	}
	return OpaqueOf(rt)
}
