package provides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enablingContainer(t *testing.T) (*fakeContainer, *Enabler) {
	t.Helper()
	c := newFakeContainer()
	e := NewEnabler(c)
	c.addListener(e)
	return c, e
}

// utilityClass builds a provider-holder shaped like a utility class: a
// sole private zero-argument constructor and only static members.
func utilityClass(name string) *Class {
	c := NewClass(name)
	c.Ctor = &Constructor{Private: true, Sole: true}
	return c
}

func staticProvider(owner *Class, name string, result Type, produce func() (any, error)) *Member {
	return owner.AddMember(&Member{
		Kind:    StaticMethod,
		Name:    name,
		Result:  result,
		Markers: []Marker{Provides{}},
		Call: func(any, []any) (any, error) {
			return produce()
		},
	})
}

func TestEnablerDiscoversProviders(t *testing.T) {
	c, _ := enablingContainer(t)

	factory := NewClass("WidgetFactory")
	providerMethod(factory, "NewWidget", widgetT, Provides{},
		func(any, []any) (any, error) { return &widget{source: "enabler"}, nil })

	c.registerComponent(factory, RawOf(factory), &struct{}{})

	got, err := c.Service(widgetT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "enabler", got.(*widget).source)
}

func TestEnablerIsIdempotent(t *testing.T) {
	c, e := enablingContainer(t)

	factory := NewClass("WidgetFactory")
	providerMethod(factory, "NewWidget", widgetT, Provides{},
		func(any, []any) (any, error) { return &widget{}, nil })
	c.registerComponent(factory, RawOf(factory), &struct{}{})

	before := len(c.Descriptors())
	require.NoError(t, e.ConfigurationChanged())
	require.NoError(t, e.ConfigurationChanged())
	assert.Equal(t, before, len(c.Descriptors()))
}

func TestEnablerCachesMemberAnalysis(t *testing.T) {
	c, _ := enablingContainer(t)

	factory := NewClass("WidgetFactory")
	providerMethod(factory, "NewWidget", widgetT, Provides{},
		func(any, []any) (any, error) { return &widget{}, nil })

	c.registerComponent(factory, RawOf(factory), &struct{}{})

	// members appended after the first analysis are not picked up:
	// the per-class member list is computed once
	providerMethod(factory, "NewGadget", gadgetT, Provides{},
		func(any, []any) (any, error) { return &gadget{}, nil })
	c.registerComponent(factory, RawOf(factory), &struct{}{})

	assert.Len(t, descriptorsFor(c, widgetT), 2)
	assert.Empty(t, descriptorsFor(c, gadgetT))
}

func TestEnablerAnalyzesStaticMembersOnce(t *testing.T) {
	c, _ := enablingContainer(t)

	holder := NewClass("WidgetHolder")
	staticProvider(holder, "NewWidget", widgetT, func() (any, error) {
		return &widget{}, nil
	})

	c.registerComponent(holder, RawOf(holder), &struct{}{})
	c.registerComponent(holder, RawOf(holder), &struct{}{})

	assert.Len(t, descriptorsFor(c, widgetT), 1)
}

func TestEnablerSkipsUnresolvedStaticMembers(t *testing.T) {
	c, _ := enablingContainer(t)
	m := newCollectionModel()

	holder := NewClass("GenericHolder")
	ht := holder.TypeParam("T")
	holder.AddMember(&Member{
		Kind:    StaticMethod,
		Name:    "New",
		Result:  Parameterize(m.list, ht),
		Markers: []Marker{Provides{}},
		Call:    func(any, []any) (any, error) { return &struct{}{}, nil },
	})

	c.registerComponent(holder, Parameterize(holder, stringT), &struct{}{})

	assert.Empty(t, descriptorsFor(c, Parameterize(m.list, stringT)),
		"a static member cannot use the class's own type parameters")
}

func TestBuildDescriptorDelegatesForInstantiableClass(t *testing.T) {
	c, e := enablingContainer(t)

	plain := NewClass("Plain")
	plain.Ctor = &Constructor{Sole: true, New: func([]any) (any, error) {
		return &widget{source: "constructed"}, nil
	}}

	d, err := e.BuildDescriptor(plain)
	require.NoError(t, err)
	assert.Same(t, plain, d.Implementation())

	got, err := c.Service(RawOf(plain), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "constructed", got.(*widget).source)
}

func TestBuildDescriptorSelfAdvertisingStaticProvider(t *testing.T) {
	c, e := enablingContainer(t)

	holder := utilityClass("Holder")
	staticProvider(holder, "Instance", RawOf(holder), func() (any, error) {
		return &widget{source: "via provider"}, nil
	})

	d, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, containsType(d.Contracts(), RawOf(holder)),
		"registration resolves to the provider advertising the class")

	got, err := c.Service(RawOf(holder), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "via provider", got.(*widget).source)
}

func TestBuildDescriptorAcceptsRepeatedRegistration(t *testing.T) {
	c, e := enablingContainer(t)

	holder := utilityClass("Holder")
	staticProvider(holder, "Instance", RawOf(holder), func() (any, error) {
		return &widget{source: "via provider"}, nil
	})

	first, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	again, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	assert.Same(t, first, again,
		"re-registering resolves to the descriptor the first pass staged")

	assert.Len(t, descriptorsFor(c, RawOf(holder)), 1)
}

func TestBuildDescriptorDeadPlaceholder(t *testing.T) {
	c, e := enablingContainer(t)

	holder := utilityClass("Holder")
	staticProvider(holder, "NewWidget", widgetT, func() (any, error) {
		return &widget{source: "holder"}, nil
	})

	d, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Empty(t, d.Contracts(), "the placeholder is invisible to lookups")

	_, err = d.Create(nil)
	assert.ErrorIs(t, err, ErrNotInstantiable)
	assert.ErrorIs(t, d.Dispose("anything"), ErrNotInstantiable)

	// the static provider still works
	got, err := c.Service(widgetT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "holder", got.(*widget).source)
}

func TestBuildDescriptorReusesDeadPlaceholder(t *testing.T) {
	c, e := enablingContainer(t)

	holder := utilityClass("Holder")
	staticProvider(holder, "NewWidget", widgetT, func() (any, error) {
		return &widget{source: "holder"}, nil
	})

	first, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	again, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	assert.Same(t, first, again)

	// one placeholder, one provider descriptor, no matter how often
	// the holder is registered
	assert.Len(t, c.Descriptors(), 2)
	assert.Len(t, descriptorsFor(c, widgetT), 1)
}

func TestBuildDescriptorNoProvidersFailsNormally(t *testing.T) {
	_, e := enablingContainer(t)

	holder := utilityClass("Holder")

	_, err := e.BuildDescriptor(holder)
	assert.ErrorIs(t, err, ErrNotInstantiable)
}

func TestEnablerRegistersMarkerChains(t *testing.T) {
	c, _ := enablingContainer(t)

	extra := NewClass("Extra")
	extra.Ctor = &Constructor{Sole: true, New: func([]any) (any, error) {
		return &widget{source: "extra"}, nil
	}}

	root := NewClass("Root")
	root.Markers = []Marker{Registers{Classes: []*Class{extra}}}

	c.registerComponent(root, RawOf(root), &struct{}{})

	got, err := c.Service(RawOf(extra), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "extra", got.(*widget).source)
}

func TestBuildDescriptorRegistersOnlyHolder(t *testing.T) {
	c, e := enablingContainer(t)

	extra := NewClass("Extra")
	extra.Ctor = &Constructor{Sole: true, New: func([]any) (any, error) {
		return &widget{source: "extra"}, nil
	}}

	holder := utilityClass("Holder")
	holder.Markers = []Marker{Registers{Classes: []*Class{extra}}}

	d, err := e.BuildDescriptor(holder)
	require.NoError(t, err)
	assert.Empty(t, d.Contracts(),
		"a holder with only a Registers marker still registers")

	_, err = e.BuildDescriptor(holder)
	require.NoError(t, err)
	assert.Len(t, descriptorsFor(c, RawOf(extra)), 1,
		"re-registering the holder does not re-register its classes")

	got, err := c.Service(RawOf(extra), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "extra", got.(*widget).source)
}

func TestEnablerRegistersProviderOnlyHolder(t *testing.T) {
	c, _ := enablingContainer(t)

	holder := utilityClass("Holder")
	staticProvider(holder, "NewWidget", widgetT, func() (any, error) {
		return &widget{source: "chained"}, nil
	})

	root := NewClass("Root")
	root.Markers = []Marker{Registers{Classes: []*Class{holder}}}

	c.registerComponent(root, RawOf(root), &struct{}{})

	got, err := c.Service(widgetT, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "chained", got.(*widget).source)
}
