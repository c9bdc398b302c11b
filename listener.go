package provides

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// providersSeen remembers which provider sources have already been
// scanned so that duplicate descriptors never get added for any given
// source.  Keys identify a whole component, a static member (which is
// independent of any component instance), or a (component, instance
// member) pair.  Insert-if-absent is the only operation.
type providersSeen struct {
	keys sync.Map // seenKey -> struct{}
}

type seenKey struct {
	desc   ActiveDescriptor
	member *Member
}

// addDescriptor records that the component behind the descriptor has
// been scanned.  Returns true if it had not been seen before.
func (s *providersSeen) addDescriptor(d ActiveDescriptor) bool {
	_, loaded := s.keys.LoadOrStore(seenKey{desc: d}, struct{}{})
	return !loaded
}

// addMember records that a member of the component has been scanned.
// Static members are keyed without the descriptor: they are not tied to
// any one component instance.
func (s *providersSeen) addMember(d ActiveDescriptor, m *Member) bool {
	key := seenKey{desc: d, member: m}
	if m.Static() {
		key.desc = nil
	}
	_, loaded := s.keys.LoadOrStore(key, struct{}{})
	return !loaded
}

// Listener reacts to container configuration changes by scanning every
// newly registered component for Provides markers and committing the
// synthesized descriptors back into the container as one batch.
type Listener struct {
	container Container
	seen      providersSeen

	// Filter restricts which descriptors get scanned.  nil matches
	// every descriptor.
	Filter func(ActiveDescriptor) bool

	// Log receives scan diagnostics.
	Log logrus.FieldLogger
}

// NewListener returns a Listener bound to a container.  Register it as
// the container's configuration listener.
func NewListener(container Container) *Listener {
	return &Listener{
		container: container,
		Log:       logrus.StandardLogger(),
	}
}

var _ ConfigurationListener = &Listener{}

// ConfigurationChanged scans all descriptors the container knows about
// and commits newly discovered providers.  It is idempotent: re-running
// it against an unchanged container adds nothing.  The commit is only
// triggered when at least one descriptor was added, so an empty pass
// causes no redundant downstream notification.
func (l *Listener) ConfigurationChanged() error {
	filter := l.Filter
	if filter == nil {
		filter = func(ActiveDescriptor) bool { return true }
	}
	txn := l.container.NewTransaction()
	added := 0
	for _, d := range l.container.Descriptors() {
		if !filter(d) {
			continue
		}
		added += l.addDescriptors(d, txn)
	}
	if added == 0 {
		return nil
	}
	l.Log.WithField("descriptors", added).Debug("committing discovered providers")
	return txn.Commit()
}

// addDescriptors stages descriptors for each member of the component
// that carries a Provides marker.  Returns the number staged.
func (l *Listener) addDescriptors(owner ActiveDescriptor, txn Transaction) int {
	if !l.seen.addDescriptor(owner) {
		return 0
	}
	class := owner.Implementation()
	if class == nil {
		return 0
	}
	ownerType := owner.ImplementationType()
	added := 0
	for _, m := range class.Members {
		marker, ok := markerOf[Provides](m.Markers)
		if !ok {
			continue
		}
		if !l.seen.addMember(owner, m) {
			continue
		}
		desc, ok := synthesizeDescriptor(l.container, m, marker, ownerType, owner)
		if !ok {
			continue
		}
		txn.Add(desc)
		added++
	}
	return added
}

// synthesizeDescriptor builds the descriptor for one provider member.
// It returns ok=false when the produced type, or any method parameter
// type, still contains a type variable after resolution against the
// owner's reified type; such members are silently skipped and may
// resolve on a later pass once more generic context is registered.
func synthesizeDescriptor(
	cont Container,
	m *Member,
	marker Provides,
	ownerType Type,
	ownerDesc ActiveDescriptor,
) (ActiveDescriptor, bool) {
	if !m.Static() && ownerDesc == nil {
		panic(ErrDescriptorRequired)
	}

	produced := ResolveType(ownerType, m.Result)
	if ContainsTypeVariable(produced) {
		return nil, false
	}

	params := make([]Param, len(m.Params))
	for i, p := range m.Params {
		resolved := ResolveType(ownerType, p.Type)
		if ContainsTypeVariable(resolved) {
			return nil, false
		}
		params[i] = Param{Type: resolved, Qualifiers: p.Qualifiers}
	}

	contracts := providedContracts(marker, produced)
	scope := scopeFor(m, contracts, ownerDesc)
	producedClass, _ := RawClassOf(produced)

	return &providesDescriptor{
		member:    m,
		class:     producedClass,
		produced:  produced,
		contracts: contracts,
		scope:     scope,
		create:    createFunction(cont, m, params, ownerDesc),
		dispose:   disposeFunction(cont, marker, m, produced, ownerType, ownerDesc),
	}, true
}

// providedContracts computes the contract set for a provider.  Explicit
// contracts on the Provides marker win outright.  Otherwise a
// ContractsFor marker on the produced raw class wins.  Otherwise the
// set is the produced type plus every reachable supertype flagged as a
// contract.
func providedContracts(marker Provides, produced Type) []Type {
	if len(marker.Contracts) > 0 {
		return dedupTypes(marker.Contracts)
	}
	class, ok := RawClassOf(produced)
	if !ok {
		return []Type{produced}
	}
	if explicit, ok := markerOf[ContractsFor](class.Markers); ok {
		return dedupTypes(explicit.Contracts)
	}
	contracts := []Type{produced}
	for _, t := range AllTypes(produced) {
		if EqualTypes(t, produced) {
			continue
		}
		if c, ok := RawClassOf(t); ok && isContractClass(c) {
			contracts = append(contracts, t)
		}
	}
	return dedupTypes(contracts)
}

// scopeFor computes a provider's scope: an explicit scope marker on the
// member wins; else a scope marker on any advertised contract's raw
// class; else, for instance members, the defining component's own
// scope; else PerRequest.
func scopeFor(m *Member, contracts []Type, ownerDesc ActiveDescriptor) Scope {
	if scope, ok := scopeOn(m.Markers); ok {
		return scope
	}
	for _, contract := range contracts {
		if class, ok := RawClassOf(contract); ok {
			if scope, ok := scopeOn(class.Markers); ok {
				return scope
			}
		}
	}
	if !m.Static() && ownerDesc != nil {
		if scope := ownerDesc.Scope(); scope != (Scope{}) {
			return scope
		}
	}
	return PerRequest
}

// createFunction builds the creation closure for a provider member.
// Method parameters are looked up in the container in the context of
// the current request; instance members first obtain the owning
// component through the container with the request handle as parent, so
// the owner's own dependencies share the request's scope.
func createFunction(
	cont Container,
	m *Member,
	params []Param,
	ownerDesc ActiveDescriptor,
) func(Handle) (any, error) {
	switch m.Kind {
	case StaticMethod:
		return func(root Handle) (any, error) {
			args, err := resolveArguments(cont, params, root)
			if err != nil {
				return nil, err
			}
			provided, err := m.Call(nil, args)
			if err != nil {
				return nil, multiError(err)
			}
			return postConstructed(cont, provided)
		}
	case InstanceMethod:
		return func(root Handle) (any, error) {
			args, err := resolveArguments(cont, params, root)
			if err != nil {
				return nil, err
			}
			owner, err := cont.ServiceByDescriptor(ownerDesc, root)
			if err != nil {
				return nil, err
			}
			provided, err := m.Call(owner, args)
			if err != nil {
				return nil, multiError(err)
			}
			return postConstructed(cont, provided)
		}
	case StaticField:
		return func(root Handle) (any, error) {
			provided, err := m.Get(nil)
			if err != nil {
				return nil, multiError(err)
			}
			return postConstructed(cont, provided)
		}
	case InstanceField:
		return func(root Handle) (any, error) {
			owner, err := cont.ServiceByDescriptor(ownerDesc, root)
			if err != nil {
				return nil, err
			}
			provided, err := m.Get(owner)
			if err != nil {
				return nil, multiError(err)
			}
			return postConstructed(cont, provided)
		}
	}
	panic(fmt.Sprintf("unknown member kind: %s", m.Kind))
}

func resolveArguments(cont Container, params []Param, root Handle) ([]any, error) {
	args := make([]any, len(params))
	for i, p := range params {
		arg, err := cont.Service(p.Type, p.Qualifiers, root)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

func postConstructed(cont Container, provided any) (any, error) {
	if provided == nil {
		return nil, nil
	}
	if err := cont.PostConstruct(provided); err != nil {
		return nil, err
	}
	return provided, nil
}

// disposeFunction builds the disposal closure for a provider member.
// With no explicit dispose method the container's standard teardown
// hook runs.  An explicit method that cannot be resolved produces a
// closure that fails with ErrDestroyMethodNotFound: the failure
// deliberately surfaces at first disposal, not at registration.
func disposeFunction(
	cont Container,
	marker Provides,
	m *Member,
	produced Type,
	ownerType Type,
	ownerDesc ActiveDescriptor,
) func(any) error {
	if marker.DisposeMethod == "" {
		return func(instance any) error {
			if instance == nil {
				return nil
			}
			return cont.PreDestroy(instance)
		}
	}

	switch marker.DisposedBy {
	case ByProvided:
		destroy := findProvidedDestroy(produced, marker.DisposeMethod)
		if destroy == nil {
			return destroyNotFound(marker, m)
		}
		return func(instance any) error {
			if instance == nil {
				return nil
			}
			if _, err := destroy.Call(instance, nil); err != nil {
				return multiError(err)
			}
			return nil
		}

	case ByProvider:
		destroy := findProviderDestroy(m, produced, ownerType, marker.DisposeMethod)
		if destroy == nil {
			return destroyNotFound(marker, m)
		}
		if destroy.Static() {
			return func(instance any) error {
				if instance == nil {
					return nil
				}
				if _, err := destroy.Call(nil, []any{instance}); err != nil {
					return multiError(err)
				}
				return nil
			}
		}
		return func(instance any) error {
			if instance == nil {
				return nil
			}
			handle, err := cont.HandleFor(ownerDesc)
			if err != nil {
				return err
			}
			if ownerDesc.Scope() == PerRequest {
				// the temporary owner must be released even when
				// the destroy invocation fails
				defer func() {
					_ = handle.Close()
				}()
			}
			owner, err := handle.Service()
			if err != nil {
				return err
			}
			if _, err := destroy.Call(owner, []any{instance}); err != nil {
				return multiError(err)
			}
			return nil
		}
	}

	panic(fmt.Sprintf("unknown Disposer value: %s", marker.DisposedBy))
}

// findProvidedDestroy resolves a dispose method on the produced type: a
// zero-argument instance method invoked on the produced instance.
func findProvidedDestroy(produced Type, name string) *Member {
	class, ok := RawClassOf(produced)
	if !ok {
		return nil
	}
	for _, m := range class.Members {
		if m.Kind == InstanceMethod && m.Name == name && len(m.Params) == 0 {
			return m
		}
	}
	return nil
}

// findProviderDestroy resolves a dispose method on the defining class:
// a one-argument method matching the provider member's staticness whose
// parameter, resolved against the defining component's type, accepts
// the produced type.
func findProviderDestroy(m *Member, produced Type, ownerType Type, name string) *Member {
	for _, candidate := range m.Owner.Members {
		if !candidate.IsMethod() || candidate.Name != name {
			continue
		}
		if candidate.Static() != m.Static() || len(candidate.Params) != 1 {
			continue
		}
		paramType := ResolveType(ownerType, candidate.Params[0].Type)
		if Satisfies(paramType, produced) {
			return candidate
		}
	}
	return nil
}

func destroyNotFound(marker Provides, m *Member) func(any) error {
	err := multiError(detailed(
		fmt.Errorf("%w: %q on %s", ErrDestroyMethodNotFound, marker.DisposeMethod, m),
		fmt.Sprintf("the Provides marker on %s names dispose method %q (disposed by %s) "+
			"but no matching method exists", m, marker.DisposeMethod, marker.DisposedBy),
	))
	return func(instance any) error {
		if instance == nil {
			return nil
		}
		return err
	}
}
