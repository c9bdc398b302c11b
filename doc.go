// Obligatory // comment

/*

Package provides extends a dependency injection container with
member-level providers.  A component class may declare that one of its
methods or fields provides a further service: when the class is
registered with the container, each such member becomes a service
descriptor of its own, created on demand and disposed with the scope
that produced it.

Providers are declared with markers on a Class description.  The
description can be built by hand, or synthesized from a Go struct type
through the reflection bridge:

	type Config struct {
		DB *sql.DB `provides:"dispose=Close,disposedBy=provided"`
	}

	cls := provides.MustClassFor[Config]()

Registering Config with the container then makes *sql.DB injectable,
and the DB is closed through its own Close method when its scope ends.

Discovery

Two discovery variants exist.  Listener is the simple one: it
implements ConfigurationListener and, after every committed batch of
registrations, scans the new descriptors for provider members and
commits descriptors for them in a follow-up batch.  Enabler adds
per-class caching and a registration shim: classes with no usable
constructor can still be registered when their only purpose is to hold
static providers.

Generic providers

Provider members may have generic types.  A member whose type still
mentions a type variable after resolution against its component's
reified type is skipped; a member whose type resolves fully is
advertised at the resolved type.  So a component registered as
Repo[User] with a member

	func (r Repo[T]) Find() Finder[T]

provides Finder[User].  Wildcards in the reified type are replaced by
fresh capture variables first, so distinct wildcards never unify.

Contracts

By default a provider advertises its produced type plus every supertype
flagged as a contract.  A Provides marker may list explicit contracts
instead, and a ContractsFor marker on the produced class overrides the
computed set for every provider of that class.

*/
package provides
