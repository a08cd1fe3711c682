package query

import "time"

// Kind identifies which operation produced a QueryStats.
type Kind uint8

const (
	KindRadius Kind = iota
	KindNearest
	KindHas
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindRadius:
		return "radius"
	case KindNearest:
		return "nearest"
	case KindHas:
		return "has"
	case KindCount:
		return "count"
	default:
		return "unknown"
	}
}

// QueryStats describes the work done by a single engine call.
type QueryStats struct {
	Kind Kind
	// Regions is the number of caches read in the broad phase, summed over
	// every ring for nearest searches.
	Regions int
	// Candidates is the number of ids that reached the final phase.
	Candidates int
	// Stale counts indexed ids that no longer resolved to a live entity.
	Stale int
	// Rebuilds counts dirty caches rebuilt before being read.
	Rebuilds int
	// Rings is the number of expanding-ring passes (nearest only).
	Rings    int
	Results  int
	Duration time.Duration
	Err      error
}

// Observer receives QueryStats after every engine call.
type Observer interface {
	ObserveQuery(stats QueryStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stats QueryStats)

func (f ObserverFunc) ObserveQuery(stats QueryStats) {
	f(stats)
}
