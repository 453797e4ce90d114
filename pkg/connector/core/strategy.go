package core

// Strategy is how the engine hosts a source's readers
type Strategy int

const (
	// StrategyParallel runs independent tasks, each with its own enumerator
	// and reader
	StrategyParallel Strategy = iota
	// StrategyCoordinated runs one enumerator that assigns splits to all readers
	StrategyCoordinated
)

func (s Strategy) String() string {
	if s == StrategyCoordinated {
		return "coordinated"
	}
	return "parallel"
}

// CoordinationSupport is implemented by sources that need a single
// enumerator distributing splits across readers
type CoordinationSupport interface {
	SupportsCoordination() bool
}

// StrategyOf picks the bridging strategy for a source instance
func StrategyOf(src Source) Strategy {
	if c, ok := src.(CoordinationSupport); ok && c.SupportsCoordination() {
		return StrategyCoordinated
	}
	return StrategyParallel
}
