package provides

import (
	"fmt"
	"sync"
)

// providesDescriptor is the ActiveDescriptor synthesized for one
// discovered provider.  Everything is immutable after construction
// except the ranking and the instance cache slot, which get their own
// locks because they are mutated outside the discovery pass.
type providesDescriptor struct {
	member    *Member
	class     *Class
	produced  Type
	contracts []Type
	scope     Scope
	create    func(Handle) (any, error)
	dispose   func(any) error

	rankMu      sync.Mutex
	ranking     int
	rankingRead bool

	cacheMu  sync.Mutex
	cache    any
	cacheSet bool
}

var _ ActiveDescriptor = &providesDescriptor{}

func (d *providesDescriptor) Implementation() *Class { return d.class }

func (d *providesDescriptor) ImplementationType() Type { return d.produced }

func (d *providesDescriptor) Contracts() []Type {
	out := make([]Type, len(d.contracts))
	copy(out, d.contracts)
	return out
}

func (d *providesDescriptor) Scope() Scope { return d.scope }

func (d *providesDescriptor) Qualifiers() []Qualifier {
	if d.member == nil {
		return nil
	}
	return qualifiersOf(d.member.Markers)
}

func (d *providesDescriptor) Name() string {
	for _, q := range d.Qualifiers() {
		if named, ok := q.(Named); ok {
			return named.Name
		}
	}
	return ""
}

func (d *providesDescriptor) Metadata() map[string][]string {
	md := map[string][]string{
		"scope": {d.scope.Name},
	}
	for _, q := range d.Qualifiers() {
		md["qualifier"] = append(md["qualifier"], q.qualifierName())
	}
	return md
}

// Ranking derives its initial value from a Rank marker on the source
// member the first time it is read.  An explicit SetRanking wins over
// the marker from then on.
func (d *providesDescriptor) Ranking() int {
	d.rankMu.Lock()
	defer d.rankMu.Unlock()
	return d.rankingLocked()
}

func (d *providesDescriptor) rankingLocked() int {
	if !d.rankingRead {
		if d.member != nil {
			if rank, ok := markerOf[Rank](d.member.Markers); ok {
				d.ranking = rank.Value
			}
		}
		d.rankingRead = true
	}
	return d.ranking
}

func (d *providesDescriptor) SetRanking(ranking int) int {
	d.rankMu.Lock()
	defer d.rankMu.Unlock()
	previous := d.rankingLocked()
	d.ranking = ranking
	return previous
}

func (d *providesDescriptor) Create(root Handle) (any, error) {
	return d.create(root)
}

func (d *providesDescriptor) Dispose(instance any) error {
	if instance == nil {
		return nil
	}
	return d.dispose(instance)
}

func (d *providesDescriptor) Cache() (any, error) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if !d.cacheSet {
		return nil, ErrCacheNotSet
	}
	return d.cache, nil
}

func (d *providesDescriptor) IsCacheSet() bool {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	return d.cacheSet
}

func (d *providesDescriptor) SetCache(instance any) {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.cache = instance
	d.cacheSet = true
}

func (d *providesDescriptor) ReleaseCache() {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.cache = nil
	d.cacheSet = false
}

func (d *providesDescriptor) String() string {
	if d.member != nil {
		return fmt.Sprintf("providesDescriptor[%s]", d.member)
	}
	return fmt.Sprintf("providesDescriptor[%s]", d.class.Name)
}
