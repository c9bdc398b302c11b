package provides

// Interned registry of Go types.  Struct-tag contract lists name types
// by their rendered name, so every type that may appear in a tag must be
// interned first.  The registry also powers duplicate-name detection in
// DetailedError.

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/muir/reflectutils"
)

type typeCode int

var (
	typeCounter = 0
	lock        sync.Mutex
	typeMap     = make(map[reflect.Type]typeCode)
	reverseMap  = make(map[typeCode]reflect.Type)
	nameIndex   = make(map[string][]reflect.Type)
)

// getTypeCode maps reflect.Type to integers, interning the type and
// indexing it by name as a side effect.
func getTypeCode(a interface{}) typeCode {
	if a == nil {
		panic("nil has no type")
	}
	t, isType := a.(reflect.Type)
	if !isType {
		t = reflect.TypeOf(a)
	}
	lock.Lock()
	defer lock.Unlock()
	if tc, found := typeMap[t]; found {
		return tc
	}
	typeCounter++
	tc := typeCode(typeCounter)
	typeMap[t] = tc
	reverseMap[tc] = t
	name := reflectutils.TypeName(t)
	nameIndex[name] = append(nameIndex[name], t)
	return tc
}

// Type returns the reflect.Type for this typeCode
func (tc typeCode) Type() reflect.Type {
	lock.Lock()
	defer lock.Unlock()
	return reverseMap[tc]
}

func (tc typeCode) String() string {
	return reflectutils.TypeName(tc.Type())
}

// RegisterType interns T so that struct-tag contract lists can refer to
// it by name.  Registration is idempotent.
func RegisterType[T any]() {
	getTypeCode(reflect.TypeOf((*T)(nil)).Elem())
}

// typeByName looks up an interned type by its rendered name.  Unknown
// and ambiguous names are errors: ambiguity means two packages interned
// types that render identically, and the tag author must disambiguate
// by interning only one of them.
func typeByName(name string) (reflect.Type, error) {
	lock.Lock()
	defer lock.Unlock()
	matches := nameIndex[name]
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("type %s is not registered; call RegisterType first", name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("type name %s is ambiguous: %d registered types render to it", name, len(matches))
	}
}
