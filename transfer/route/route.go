// Package route models the externally-ranked candidate paths a payment may
// travel. Route discovery and fee policy are out of scope (spec.md §1
// Non-goals); this package only holds the pre-ranked result the dispatcher
// hands to the initiator and mediator machines.
package route

import "github.com/smartraiden/mcore/primitives"

// State describes one hop: the channel to use and the node on its far end.
type State struct {
	NodeAddress       primitives.Address
	ChannelIdentifier primitives.Keccak256
	Available         bool
}

// RoutesState is the ordered, pre-ranked sequence of candidate routes for a
// payment. The initiator always tries the first viable (Available) entry.
type RoutesState struct {
	Routes []*State
}

// NextViable returns the first available route not in the excluded set, or
// nil if none remain — used on ActionCancelRoute/expiry retry (spec.md §4.1).
func (r *RoutesState) NextViable(excluded map[primitives.Keccak256]bool) *State {
	if r == nil {
		return nil
	}
	for _, candidate := range r.Routes {
		if !candidate.Available {
			continue
		}
		if excluded != nil && excluded[candidate.ChannelIdentifier] {
			continue
		}
		return candidate
	}
	return nil
}
