package provides

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// providerMember pairs a class member with its Provides marker so the
// marker lookup happens once per class, not once per scan.
type providerMember struct {
	member *Member
	marker Provides
}

// Enabler is the class-analyzing discovery variant.  Beyond scanning
// committed descriptors the way Listener does, it hands out wrapped
// transactions whose AddClass special-cases classes that cannot be
// default-instantiated but expose static providers, so that
// registering such a class still succeeds.
//
// Per-class member lists are cached by category.  Reads are lock-free;
// a single engine lock serializes cache population so a class is
// analyzed at most a handful of times even under concurrent scans.
type Enabler struct {
	container Container
	seen      providersSeen

	// analyzed gates the static-member pass so a class registered
	// both directly and through a descriptor contributes its static
	// providers exactly once per engine.  The descriptors that pass
	// staged are remembered so later registrations of the same class
	// can still resolve to them.
	analyzed          sync.Map // *Class -> struct{}
	staticDescriptors sync.Map // *Class -> []ActiveDescriptor
	registersApplied  sync.Map // *Class -> struct{}
	placeholders      sync.Map // *Class -> ActiveDescriptor

	mu              sync.Mutex // serializes cache stores
	staticMethods   sync.Map   // *Class -> []providerMember
	instanceMethods sync.Map   // *Class -> []providerMember
	staticFields    sync.Map   // *Class -> []providerMember
	instanceFields  sync.Map   // *Class -> []providerMember

	// Log receives scan diagnostics.
	Log logrus.FieldLogger
}

// NewEnabler returns an Enabler bound to a container.  Register it as
// the container's configuration listener and route class registrations
// through its NewTransaction.
func NewEnabler(container Container) *Enabler {
	return &Enabler{
		container: container,
		Log:       logrus.StandardLogger(),
	}
}

var _ ConfigurationListener = &Enabler{}

// ConfigurationChanged scans every descriptor the container knows
// about for providers and Registers markers, then commits whatever was
// newly discovered.  Idempotent for an unchanged container.
func (e *Enabler) ConfigurationChanged() error {
	txn := e.NewTransaction()
	added := 0
	var errs []error
	for _, d := range e.container.Descriptors() {
		if !e.seen.addDescriptor(d) {
			continue
		}
		cls := d.Implementation()
		if cls == nil {
			continue
		}
		added += e.addProvidesDescriptors(cls, d, txn)
		n, err := e.addRegistersDescriptors(cls, txn)
		added += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := multiError(errs...); err != nil {
		e.Log.WithError(err).Error("provider discovery failed")
		return err
	}
	if added == 0 {
		return nil
	}
	e.Log.WithField("descriptors", added).Debug("committing discovered providers")
	return txn.Commit()
}

// addProvidesDescriptors stages one descriptor per not-yet-seen
// provider member of the class, all four categories.  desc may be nil,
// in which case only static members are eligible.
func (e *Enabler) addProvidesDescriptors(cls *Class, desc ActiveDescriptor, txn Transaction) int {
	added := len(e.addStaticDescriptors(cls, txn))
	if desc == nil {
		return added
	}
	ownerType := desc.ImplementationType()
	for _, pm := range e.categoryMembers(cls, &e.instanceMethods, categoryInstanceMethod) {
		added += e.stage(desc, pm, ownerType, txn)
	}
	for _, pm := range e.categoryMembers(cls, &e.instanceFields, categoryInstanceField) {
		added += e.stage(desc, pm, ownerType, txn)
	}
	return added
}

// addStaticDescriptors stages descriptors for the class's static
// provider members and returns them.  A class passes through here at
// most once per engine; the staged list is remembered so repeated
// registrations of the same class resolve against it instead of
// staging duplicates.
func (e *Enabler) addStaticDescriptors(cls *Class, txn Transaction) []ActiveDescriptor {
	if _, analyzed := e.analyzed.LoadOrStore(cls, struct{}{}); analyzed {
		return nil
	}
	ownerType := staticOwnerType(cls)
	var staged []ActiveDescriptor
	for _, pm := range e.categoryMembers(cls, &e.staticMethods, categoryStaticMethod) {
		staged = append(staged, e.stageStatic(pm, ownerType, txn)...)
	}
	for _, pm := range e.categoryMembers(cls, &e.staticFields, categoryStaticField) {
		staged = append(staged, e.stageStatic(pm, ownerType, txn)...)
	}
	e.staticDescriptors.Store(cls, staged)
	return staged
}

// staticDescriptorsFor returns the descriptors an earlier pass staged
// for the class's static providers, or nil if the class has not been
// analyzed yet.
func (e *Enabler) staticDescriptorsFor(cls *Class) []ActiveDescriptor {
	if v, ok := e.staticDescriptors.Load(cls); ok {
		return v.([]ActiveDescriptor)
	}
	return nil
}

func (e *Enabler) stage(desc ActiveDescriptor, pm providerMember, ownerType Type, txn Transaction) int {
	if !e.seen.addMember(desc, pm.member) {
		return 0
	}
	d, ok := synthesizeDescriptor(e.container, pm.member, pm.marker, ownerType, desc)
	if !ok {
		return 0
	}
	txn.Add(d)
	return 1
}

func (e *Enabler) stageStatic(pm providerMember, ownerType Type, txn Transaction) []ActiveDescriptor {
	if !e.seen.addMember(nil, pm.member) {
		return nil
	}
	d, ok := synthesizeDescriptor(e.container, pm.member, pm.marker, ownerType, nil)
	if !ok {
		return nil
	}
	txn.Add(d)
	return []ActiveDescriptor{d}
}

// staticOwnerType is the context static member types resolve against.
// The raw type carries no argument for the class's own parameters, so
// a static member that mentions them keeps its variables and gets
// skipped rather than mis-resolved.
func staticOwnerType(cls *Class) Type {
	return RawOf(cls)
}

// addRegistersDescriptors registers every class a Registers marker
// names, through the shimmed transaction so non-instantiable provider
// holders still register cleanly.  The marker is applied once per
// engine: re-registering the marked class must not duplicate the
// registrations it triggered.
func (e *Enabler) addRegistersDescriptors(cls *Class, txn Transaction) (int, error) {
	marker, ok := markerOf[Registers](cls.Markers)
	if !ok {
		return 0, nil
	}
	if _, applied := e.registersApplied.LoadOrStore(cls, struct{}{}); applied {
		return 0, nil
	}
	added := 0
	var errs []error
	for _, rc := range marker.Classes {
		if _, err := txn.AddClass(rc); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	return added, multiError(errs...)
}

type memberCategory int

const (
	categoryStaticMethod memberCategory = iota
	categoryInstanceMethod
	categoryStaticField
	categoryInstanceField
)

func (c memberCategory) matches(m *Member) bool {
	switch c {
	case categoryStaticMethod:
		return m.Kind == StaticMethod
	case categoryInstanceMethod:
		return m.Kind == InstanceMethod
	case categoryStaticField:
		return m.Kind == StaticField
	case categoryInstanceField:
		return m.Kind == InstanceField
	}
	return false
}

// categoryMembers returns the class's provider members in one
// category, computing and caching the list on first use.  The fast
// path is a bare map load; the engine lock is held only around the
// store, and a concurrent scan that lost the race adopts the winner's
// list.
func (e *Enabler) categoryMembers(cls *Class, cache *sync.Map, category memberCategory) []providerMember {
	if v, ok := cache.Load(cls); ok {
		return v.([]providerMember)
	}
	var built []providerMember
	for _, m := range cls.Members {
		if !category.matches(m) {
			continue
		}
		marker, ok := markerOf[Provides](m.Markers)
		if !ok {
			continue
		}
		built = append(built, providerMember{member: m, marker: marker})
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := cache.Load(cls); ok {
		return v.([]providerMember)
	}
	cache.Store(cls, built)
	return built
}

// NewTransaction wraps a container transaction with the registration
// shim: see enablerTransaction.AddClass.
func (e *Enabler) NewTransaction() Transaction {
	return &enablerTransaction{enabler: e, inner: e.container.NewTransaction()}
}

// BuildDescriptor registers a single class through the shim and
// commits.  Convenience for hosts that register classes one at a time.
func (e *Enabler) BuildDescriptor(cls *Class) (ActiveDescriptor, error) {
	txn := e.NewTransaction()
	d, err := txn.AddClass(cls)
	if err != nil {
		return nil, err
	}
	return d, txn.Commit()
}

type enablerTransaction struct {
	enabler *Enabler
	inner   Transaction
}

var _ Transaction = &enablerTransaction{}

func (t *enablerTransaction) Add(d ActiveDescriptor) ActiveDescriptor {
	return t.inner.Add(d)
}

// AddClass first stages the class's static providers and Registers
// entries, then decides what the class registration itself means.  An
// instantiable class, or one with nothing to contribute, registers the
// normal way.  A class that cannot be default-instantiated but does
// contribute providers would make the whole registration fail in a
// plain container, so instead the registration resolves to one of the
// staged descriptors when some provider advertises the class itself,
// and otherwise to an inert placeholder that fails only if someone
// actually asks it for an instance.  Registering the same class again
// resolves against the descriptors the first pass staged.
func (t *enablerTransaction) AddClass(cls *Class) (ActiveDescriptor, error) {
	staged := t.enabler.addStaticDescriptors(cls, t)
	if staged == nil {
		staged = t.enabler.staticDescriptorsFor(cls)
	}
	if _, err := t.enabler.addRegistersDescriptors(cls, t); err != nil {
		return nil, err
	}
	_, hasRegisters := markerOf[Registers](cls.Markers)
	if cls.instantiable() || (len(staged) == 0 && !hasRegisters) {
		return t.inner.AddClass(cls)
	}
	want := RawOf(cls)
	for _, d := range staged {
		for _, contract := range d.Contracts() {
			if EqualTypes(contract, want) {
				return d, nil
			}
		}
	}
	placeholder, loaded := t.enabler.placeholders.LoadOrStore(cls, deadDescriptor(cls))
	dead := placeholder.(ActiveDescriptor)
	if !loaded {
		t.inner.Add(dead)
	}
	return dead, nil
}

func (t *enablerTransaction) Commit() error {
	return t.inner.Commit()
}

// deadDescriptor stands in for a class that only exists to hold
// providers.  It advertises no contracts, so lookups never select it,
// and it refuses instantiation if reached by descriptor anyway.
func deadDescriptor(cls *Class) *providesDescriptor {
	err := detailed(ErrNotInstantiable, cls.Name+" has no usable constructor and is only registered for its providers")
	return &providesDescriptor{
		class:    cls,
		produced: RawOf(cls),
		scope:    Shared,
		create: func(Handle) (any, error) {
			return nil, err
		},
		dispose: func(any) error {
			return err
		},
	}
}
