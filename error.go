package provides

import (
	"errors"
	"strings"
	"sync"
)

// Sentinel errors.  Wrap them with context; test with errors.Is.
var (
	// ErrCacheNotSet is returned when a descriptor's instance cache
	// is read before anything was stored in it.
	ErrCacheNotSet = errors.New("descriptor instance cache read before set")

	// ErrDestroyMethodNotFound is returned (wrapped in a MultiError)
	// when a Provides marker names a dispose method that cannot be
	// resolved.  Detection is deferred to the first disposal; the
	// provider registers successfully regardless.
	ErrDestroyMethodNotFound = errors.New("destroy method not found")

	// ErrNotInstantiable is returned by the create and dispose
	// functions of a dead descriptor: one registered for a class that
	// cannot be built directly and has no provider for it either.
	ErrNotInstantiable = errors.New("class is registered but not directly constructible")

	// ErrDescriptorRequired is returned when an instance member is
	// scanned without an active descriptor for its component.
	ErrDescriptorRequired = errors.New("component descriptor required for instance members")
)

type providesError struct {
	err     error
	details string
}

func (pe *providesError) Error() string { return pe.err.Error() }

func (pe *providesError) Unwrap() error { return pe.err }

func detailed(err error, details string) error {
	return &providesError{err: err, details: details}
}

// DetailedError transforms errors into strings.  If the error came from
// this package's discovery machinery it will return a much more
// detailed error than just calling err.Error(), including a warning
// when registered type names are ambiguous.
func DetailedError(err error) string {
	var providesError *providesError
	if errors.As(err, &providesError) {
		dups := duplicateTypes()
		if dups != "" {
			return err.Error() + "\n\n" + providesError.details +
				"\n\nWarning: the following type names refer to more than one registered type:\n" +
				dups
		}
		return err.Error() + "\n\n" + providesError.details
	}
	return err.Error()
}

var (
	duplicatesThrough int
	dupLock           sync.Mutex
	duplicates        string
	duplicatesFound   = make(map[string]struct{})
)

func duplicateTypes() string {
	max := func() int {
		lock.Lock()
		defer lock.Unlock()
		return typeCounter
	}()
	dupLock.Lock()
	defer dupLock.Unlock()
	if duplicatesThrough == max {
		return duplicates
	}
	names := make(map[string]struct{})
	for i := 1; i <= max; i++ {
		n := typeCode(i).String()
		if _, ok := names[n]; ok {
			if _, ok := duplicatesFound[n]; !ok {
				duplicates += " " + n
				duplicatesFound[n] = struct{}{}
			}
		}
		names[n] = struct{}{}
	}
	duplicatesThrough = max
	return duplicates
}

// MultiError aggregates one or more causes from a single create,
// dispose, or scan step.  It unwraps to all of its causes, so
// errors.Is and errors.As see through it.
type MultiError struct {
	Causes []error
}

// multiError wraps errs in a MultiError, dropping nils.  Returns nil
// when nothing is left.
func multiError(errs ...error) error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &MultiError{Causes: kept}
}

func (me *MultiError) Error() string {
	switch len(me.Causes) {
	case 0:
		return "no errors"
	case 1:
		return me.Causes[0].Error()
	}
	parts := make([]string, len(me.Causes))
	for i, err := range me.Causes {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

func (me *MultiError) Unwrap() []error { return me.Causes }
