// Package focus derives per-node and per-edge display flags from the
// current selection, search text and focus mode.
package focus

// Set is a set of node ids
type Set map[string]struct{}

// Has reports whether id is in the set
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// BuildUpstreamSet returns selectedID and all of its ancestors. The walk
// stops at a root, at an unknown id, or when an id repeats.
func BuildUpstreamSet(selectedID string, parents map[string]string) Set {
	set := Set{}
	if selectedID == "" {
		return set
	}

	cur := selectedID
	for {
		if set.Has(cur) {
			break
		}
		set[cur] = struct{}{}
		parent, ok := parents[cur]
		if !ok || parent == "" {
			break
		}
		cur = parent
	}
	return set
}
