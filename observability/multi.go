package observability

import "github.com/hupe1980/agentgraph/core"

// Multi fans an event out to several observers in order.
type Multi []core.Observer

// NewMulti returns a Multi without nil entries.
func NewMulti(observers ...core.Observer) Multi {
	out := make(Multi, 0, len(observers))

	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}

	return out
}

// Observe implements core.Observer.
func (m Multi) Observe(e core.Event) {
	for _, o := range m {
		o.Observe(e)
	}
}
