package provides

import (
	"fmt"
	"sync"
)

// fakeContainer is the in-memory container the discovery tests run
// against.  Lookup is a linear scan over descriptor contracts, highest
// ranking wins, which is all the engine under test needs.
type fakeContainer struct {
	mu          sync.Mutex
	descriptors []ActiveDescriptor
	listeners   []ConfigurationListener

	postConstructed []any
	preDestroyed    []any
}

var _ Container = &fakeContainer{}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{}
}

func (c *fakeContainer) addListener(l ConfigurationListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *fakeContainer) Descriptors() []ActiveDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActiveDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

func (c *fakeContainer) NewTransaction() Transaction {
	return &fakeTransaction{container: c}
}

// registerComponent installs a descriptor for an existing component
// instance, reified at implType, and notifies listeners.  It stands in
// for the host container's own class registration path.
func (c *fakeContainer) registerComponent(cls *Class, implType Type, instance any) ActiveDescriptor {
	scope := PerRequest
	if s, ok := scopeOn(cls.Markers); ok {
		scope = s
	}
	d := &providesDescriptor{
		class:     cls,
		produced:  implType,
		contracts: []Type{implType},
		scope:     scope,
		create: func(Handle) (any, error) {
			return instance, nil
		},
		dispose: func(instance any) error {
			return c.PreDestroy(instance)
		},
	}
	txn := c.NewTransaction()
	txn.Add(d)
	if err := txn.Commit(); err != nil {
		panic(err)
	}
	return d
}

func (c *fakeContainer) Service(t Type, qualifiers []Qualifier, parent Handle) (any, error) {
	d := c.lookup(t, qualifiers)
	if d == nil {
		return nil, fmt.Errorf("no descriptor for %s", t)
	}
	return c.ServiceByDescriptor(d, parent)
}

func (c *fakeContainer) lookup(t Type, qualifiers []Qualifier) ActiveDescriptor {
	var name string
	for _, q := range qualifiers {
		if named, ok := q.(Named); ok {
			name = named.Name
		}
	}
	var best ActiveDescriptor
	for _, d := range c.Descriptors() {
		if name != "" && d.Name() != name {
			continue
		}
		for _, contract := range d.Contracts() {
			if !EqualTypes(contract, t) {
				continue
			}
			if best == nil || d.Ranking() > best.Ranking() {
				best = d
			}
			break
		}
	}
	return best
}

func (c *fakeContainer) ServiceByDescriptor(d ActiveDescriptor, parent Handle) (any, error) {
	if d.Scope() == Shared {
		if d.IsCacheSet() {
			return d.Cache()
		}
		instance, err := d.Create(parent)
		if err != nil {
			return nil, err
		}
		d.SetCache(instance)
		return instance, nil
	}
	return d.Create(parent)
}

func (c *fakeContainer) HandleFor(d ActiveDescriptor) (Handle, error) {
	return &fakeHandle{container: c, desc: d}, nil
}

func (c *fakeContainer) PostConstruct(instance any) error {
	c.mu.Lock()
	c.postConstructed = append(c.postConstructed, instance)
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) PreDestroy(instance any) error {
	c.mu.Lock()
	c.preDestroyed = append(c.preDestroyed, instance)
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) DefaultDescriptor(cls *Class) (ActiveDescriptor, error) {
	if !cls.instantiable() {
		return nil, detailed(ErrNotInstantiable, cls.Name+" cannot be instantiated")
	}
	scope := PerRequest
	if s, ok := scopeOn(cls.Markers); ok {
		scope = s
	}
	return &providesDescriptor{
		class:     cls,
		produced:  RawOf(cls),
		contracts: []Type{RawOf(cls)},
		scope:     scope,
		create: func(root Handle) (any, error) {
			args := make([]any, len(cls.Ctor.Params))
			for i, p := range cls.Ctor.Params {
				arg, err := c.Service(p.Type, p.Qualifiers, root)
				if err != nil {
					return nil, err
				}
				args[i] = arg
			}
			instance, err := cls.Ctor.New(args)
			if err != nil {
				return nil, err
			}
			return instance, c.PostConstruct(instance)
		},
		dispose: func(instance any) error {
			return c.PreDestroy(instance)
		},
	}, nil
}

type fakeTransaction struct {
	container *fakeContainer
	staged    []ActiveDescriptor
}

func (t *fakeTransaction) Add(d ActiveDescriptor) ActiveDescriptor {
	t.staged = append(t.staged, d)
	return d
}

func (t *fakeTransaction) AddClass(cls *Class) (ActiveDescriptor, error) {
	d, err := t.container.DefaultDescriptor(cls)
	if err != nil {
		return nil, err
	}
	return t.Add(d), nil
}

// Commit publishes staged descriptors and then notifies every
// configuration listener, mirroring how a real container feeds the
// discovery loop.  Listener re-entry terminates because the engines
// only commit when something new was staged.
func (t *fakeTransaction) Commit() error {
	if len(t.staged) == 0 {
		return nil
	}
	t.container.mu.Lock()
	t.container.descriptors = append(t.container.descriptors, t.staged...)
	listeners := make([]ConfigurationListener, len(t.container.listeners))
	copy(listeners, t.container.listeners)
	t.container.mu.Unlock()
	t.staged = nil
	var errs []error
	for _, l := range listeners {
		if err := l.ConfigurationChanged(); err != nil {
			errs = append(errs, err)
		}
	}
	return multiError(errs...)
}

type fakeHandle struct {
	container *fakeContainer
	desc      ActiveDescriptor

	mu      sync.Mutex
	service any
	created bool
	closed  bool
}

func (h *fakeHandle) Service() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.created {
		return h.service, nil
	}
	service, err := h.container.ServiceByDescriptor(h.desc, nil)
	if err != nil {
		return nil, err
	}
	h.service = service
	h.created = true
	return service, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.created || h.closed {
		return nil
	}
	h.closed = true
	return h.desc.Dispose(h.service)
}
