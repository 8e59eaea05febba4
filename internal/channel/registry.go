package channel

import (
	"fmt"
	"strings"
)

const listSeparator = ","

// Registry is the ordered, immutable list of channels a user must join.
// Configuration order is kept and duplicates are not collapsed.
type Registry struct {
	refs []Reference
}

// NewRegistry builds a registry from already-normalized references.
func NewRegistry(refs ...Reference) Registry {
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if ref.value == "" {
			continue
		}
		out = append(out, ref)
	}

	return Registry{refs: out}
}

// Build parses a comma-separated channel list, silently dropping tokens that
// cannot be normalized.
func Build(raw string) Registry {
	registry, _ := Parse(raw)
	return registry
}

// Parse behaves like Build and additionally reports one error per dropped
// token so callers can surface configuration mistakes.
func Parse(raw string) (Registry, []error) {
	if strings.TrimSpace(raw) == "" {
		return Registry{}, nil
	}

	pieces := strings.Split(raw, listSeparator)
	refs := make([]Reference, 0, len(pieces))
	var errs []error

	for idx, piece := range pieces {
		ref, err := Normalize(piece)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel entry %d: %w", idx+1, err))
			continue
		}
		refs = append(refs, ref)
	}

	return Registry{refs: refs}, errs
}

// Len returns the number of registered channels.
func (r Registry) Len() int {
	return len(r.refs)
}

// IsEmpty reports whether no channel is configured.
func (r Registry) IsEmpty() bool {
	return len(r.refs) == 0
}

// At returns the i-th channel in configuration order.
func (r Registry) At(i int) Reference {
	return r.refs[i]
}

// All returns a copy of the registered channels.
func (r Registry) All() []Reference {
	out := make([]Reference, len(r.refs))
	copy(out, r.refs)
	return out
}

// Values returns the canonical string form of every channel.
func (r Registry) Values() []string {
	out := make([]string, len(r.refs))
	for i, ref := range r.refs {
		out[i] = ref.value
	}
	return out
}
