package orchestrator

import (
	"context"

	"sidas/internal/asset"
	"sidas/internal/staleness"
)

// AssetStatus is the stored state of one asset together with what a run
// would decide for it right now.
type AssetStatus struct {
	Name      string
	Kind      string
	Adapter   string
	Schedule  string
	Upstreams []string
	State     asset.State
	Decision  staleness.Decision
	Err       error
}

// Status evaluates target and its ancestors (every asset when target is
// empty) against the state store without materializing anything. Results
// follow topological order.
func (o *Orchestrator) Status(ctx context.Context, target string) ([]AssetStatus, error) {
	g, err := o.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder(target)
	if err != nil {
		return nil, err
	}
	states, err := o.store.GetMany(ctx, order)
	if err != nil {
		return nil, err
	}

	now := o.now()
	out := make([]AssetStatus, 0, len(order))
	for _, name := range order {
		d, _ := o.registry.Get(name)
		ups := d.SortedUpstreams()
		upstream := make(map[string]asset.State, len(ups))
		for _, u := range ups {
			upstream[u] = states[u]
		}
		st := AssetStatus{
			Name:      name,
			Kind:      d.Kind,
			Adapter:   d.AdapterName,
			Schedule:  d.Schedule,
			Upstreams: ups,
			State:     states[name],
		}
		st.Decision, st.Err = o.evaluator.Evaluate(d, states[name], upstream, now)
		out = append(out, st)
	}
	return out, nil
}
