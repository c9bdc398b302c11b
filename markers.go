package provides

// Markers are the annotation analogs that drive discovery.  They decorate
// classes and members through their Markers lists.

import "fmt"

// Marker is implemented by all marker types.
type Marker interface {
	marker()
}

// Provides marks a member whose result the container should be able to
// inject.  The zero value advertises the produced type's own contracts,
// uses the inferred scope, and disposes through the container's
// standard teardown hook.
type Provides struct {
	// Contracts, when non-empty, is the exact contract set the
	// produced service advertises.  It overrides all inference.
	Contracts []Type

	// DisposeMethod names a method that tears the produced instance
	// down.  Empty means the container's standard teardown hook.
	DisposeMethod string

	// DisposedBy selects where DisposeMethod lives.
	DisposedBy Disposer
}

// Disposer selects the dispose-method dispatch strategy.
type Disposer int

const (
	// ByProvided finds a zero-argument method on the produced type
	// and invokes it on the produced instance.
	ByProvided Disposer = iota
	// ByProvider finds a one-argument method on the defining class,
	// matching the provider member's staticness, and invokes it on
	// the defining component.
	ByProvider
)

func (d Disposer) String() string {
	switch d {
	case ByProvided:
		return "ByProvided"
	case ByProvider:
		return "ByProvider"
	}
	return fmt.Sprintf("Disposer(%d)", int(d))
}

// Scope selects a lifecycle policy.  Scopes compare by value: a scope
// marker on a member or class is "the same scope" as another iff the
// names match.  The zero Scope means "not set".
type Scope struct {
	Name string
}

var (
	// PerRequest is the non-shared scope: a new instance per lookup.
	PerRequest = Scope{Name: "PerRequest"}
	// Shared is the singleton scope.
	Shared = Scope{Name: "Shared"}
)

// Rank sets a descriptor's initial ranking.
type Rank struct {
	Value int
}

// Qualifier is implemented by markers that narrow service lookups.
type Qualifier interface {
	Marker
	qualifierName() string
}

// Named is the standard name qualifier.
type Named struct {
	Name string
}

// IsContract marks a class as a contract: providers whose produced type
// reaches the class through its supertype graph advertise it.
type IsContract struct{}

// ContractIndicator is implemented by markers that flag the classes
// they decorate as contracts, the way IsContract does.
type ContractIndicator interface {
	Marker
	IndicatesContract() bool
}

// ContractsFor, placed on a class, is the exact contract set providers
// of that class advertise when their Provides marker lists none.
type ContractsFor struct {
	Contracts []Type
}

// Registers, placed on a class, lists further classes to register with
// the container whenever the marked class is registered.
type Registers struct {
	Classes []*Class
}

func (Provides) marker()     {}
func (Scope) marker()        {}
func (Rank) marker()         {}
func (Named) marker()        {}
func (IsContract) marker()   {}
func (ContractsFor) marker() {}
func (Registers) marker()    {}

func (n Named) qualifierName() string { return n.Name }

func (IsContract) IndicatesContract() bool { return true }

var _ ContractIndicator = IsContract{}

// markerOf returns the first marker of type M in the list.
func markerOf[M Marker](markers []Marker) (M, bool) {
	for _, m := range markers {
		if typed, ok := m.(M); ok {
			return typed, true
		}
	}
	var zero M
	return zero, false
}

// qualifiersOf extracts the qualifier markers from a marker list.
func qualifiersOf(markers []Marker) []Qualifier {
	var out []Qualifier
	for _, m := range markers {
		if q, ok := m.(Qualifier); ok {
			out = append(out, q)
		}
	}
	return out
}

// scopeOn returns the first scope marker in the list.
func scopeOn(markers []Marker) (Scope, bool) {
	return markerOf[Scope](markers)
}

// isContractClass reports whether the class is flagged as a contract,
// directly via IsContract or through any marker that indicates
// contracts.
func isContractClass(c *Class) bool {
	for _, m := range c.Markers {
		if ci, ok := m.(ContractIndicator); ok && ci.IndicatesContract() {
			return true
		}
	}
	return false
}
