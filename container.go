package provides

// The host container is an external collaborator.  This package only
// consumes the narrow surface below and never assumes anything about
// the container's own resolution algorithm.

// Container is the surface the discovery engine needs from the host DI
// container.  All descriptors returned by Descriptors must already be
// reified: their implementation types contain no free type variables
// beyond capture conversion artifacts.
type Container interface {
	// Descriptors returns every component descriptor the container
	// currently knows about.
	Descriptors() []ActiveDescriptor

	// NewTransaction starts a batch of descriptor additions.  Nothing
	// becomes visible until Commit.
	NewTransaction() Transaction

	// Service looks a service up by type and qualifiers.  The parent
	// handle, when non-nil, scopes the lookup so that per-request
	// dependencies share the parent's lifetime.
	Service(t Type, qualifiers []Qualifier, parent Handle) (any, error)

	// ServiceByDescriptor obtains the service a specific descriptor
	// describes, again scoped to the parent handle.
	ServiceByDescriptor(d ActiveDescriptor, parent Handle) (any, error)

	// HandleFor returns a fresh handle to the service a descriptor
	// describes.  Closing the handle releases whatever the lookup
	// acquired.
	HandleFor(d ActiveDescriptor) (Handle, error)

	// PostConstruct runs the container's post-construction hook on an
	// instance.
	PostConstruct(instance any) error

	// PreDestroy runs the container's standard teardown hook on an
	// instance.
	PreDestroy(instance any) error

	// DefaultDescriptor is the container's own "build a descriptor
	// for this class" operation, used when no provider special case
	// applies.
	DefaultDescriptor(c *Class) (ActiveDescriptor, error)
}

// Transaction collects descriptor additions and publishes them
// atomically.
type Transaction interface {
	// Add stages a descriptor and returns it.
	Add(d ActiveDescriptor) ActiveDescriptor

	// AddClass stages a descriptor built for a directly-registered
	// class and returns it.  The Enabler's transactions special-case
	// classes that are only reachable through a provider; plain
	// container transactions delegate to DefaultDescriptor.
	AddClass(c *Class) (ActiveDescriptor, error)

	// Commit publishes everything staged so far.  Containers notify
	// their configuration listeners as part of a successful commit.
	Commit() error
}

// Handle is a live reference to one service lookup.  Closing it ends
// the request scope the lookup opened.
type Handle interface {
	Service() (any, error)
	Close() error
}

// ConfigurationListener is what this package exposes back to the
// container: the container calls ConfigurationChanged after every
// committed batch of registrations.
type ConfigurationListener interface {
	ConfigurationChanged() error
}

// ActiveDescriptor is the metadata-plus-behavior record the container
// uses to create and destroy one kind of service.
type ActiveDescriptor interface {
	// Implementation is the class of the produced service.
	Implementation() *Class

	// ImplementationType is the full produced type, generics included.
	ImplementationType() Type

	// Contracts is the set of types consumers may request this
	// service by.
	Contracts() []Type

	// Scope is the descriptor's lifecycle policy.
	Scope() Scope

	// Qualifiers narrows lookups for this service.
	Qualifiers() []Qualifier

	// Name is the descriptor's Named qualifier value, or "".
	Name() string

	// Metadata is string metadata derived from the scope and
	// qualifiers, for containers that index descriptors.
	Metadata() map[string][]string

	// Ranking orders descriptors that share a contract.  The first
	// read derives the value from a Rank marker; SetRanking overrides
	// it and returns the previous value.
	Ranking() int
	SetRanking(ranking int) int

	// Create builds one instance.  The root handle propagates the
	// request scope.
	Create(root Handle) (any, error)

	// Dispose tears an instance down.  Disposing nil is a no-op.
	Dispose(instance any) error

	// The instance cache slot, set at most once per scope lifetime
	// and cleared on scope exit.  Cache before any SetCache returns
	// ErrCacheNotSet.
	Cache() (any, error)
	IsCacheSet() bool
	SetCache(instance any)
	ReleaseCache()
}
