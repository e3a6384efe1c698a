package workflow

import "sort"

// Layer is an ordered batch of task ids eligible to run concurrently: every
// task in a layer depends only on tasks in strictly earlier layers.
type Layer struct {
	Index int      `json:"index"`
	Tasks []string `json:"tasks"`
}

// Layers computes the Kahn-style topological layering of d: layer 0 holds
// every task with no remaining dependency, layer 1 holds every task whose
// dependencies are all satisfied by layer 0, and so on. Within a layer,
// tasks are ordered by ascending priority (lower runs first), then
// ascending id, so that layering is fully deterministic given the same
// DAG (P1).
//
// Layers assumes d has already passed Validate; it panics on nothing and
// instead returns a nil slice plus an error if a cycle is somehow present,
// so replan callers that skip validation still fail safely.
func Layers(d DAG) ([]Layer, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	byID := d.ByID()
	indeg := make(map[string]int, len(d.Tasks))
	dependents := make(map[string][]string, len(d.Tasks))
	for _, t := range d.Tasks {
		indeg[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	remaining := make(map[string]int, len(indeg))
	for id, deg := range indeg {
		remaining[id] = deg
	}

	var layers []Layer
	for len(remaining) > 0 {
		var ready []string
		for id, deg := range remaining {
			if deg == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Validate already rejects cycles, but replan call sites that
			// construct a DAG without going through Validate land here.
			residual := make([]string, 0, len(remaining))
			for id := range remaining {
				residual = append(residual, id)
			}
			sort.Strings(residual)
			return nil, &ValidationError{Reason: "cycle detected", ResidualTask: residual}
		}

		sort.Slice(ready, func(i, j int) bool {
			ti, tj := byID[ready[i]], byID[ready[j]]
			if ti.Priority != tj.Priority {
				return ti.Priority < tj.Priority
			}
			return ti.ID < tj.ID
		})

		layers = append(layers, Layer{Index: len(layers), Tasks: ready})

		for _, id := range ready {
			delete(remaining, id)
			for _, dep := range dependents[id] {
				remaining[dep]--
			}
		}
	}

	return layers, nil
}
