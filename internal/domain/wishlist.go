package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// GuestWishlistKey is the Local Cache key holding a guest's wishlist.
const GuestWishlistKey = "wishlist:guest"

// Membership is a set of wishlisted product ids.
type Membership struct {
	ids map[ProductID]struct{}
}

// NewMembership builds a set from ids, ignoring empty ones.
func NewMembership(ids ...ProductID) Membership {
	m := Membership{ids: make(map[ProductID]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			m.ids[id] = struct{}{}
		}
	}
	return m
}

// Has reports membership of id.
func (m Membership) Has(id ProductID) bool {
	_, ok := m.ids[id]
	return ok
}

// Set adds or removes id. The zero Membership is usable.
func (m *Membership) Set(id ProductID, member bool) {
	if m.ids == nil {
		m.ids = make(map[ProductID]struct{})
	}
	if member {
		m.ids[id] = struct{}{}
	} else {
		delete(m.ids, id)
	}
}

// Len returns the number of members.
func (m Membership) Len() int { return len(m.ids) }

// List returns the members sorted for deterministic output.
func (m Membership) List() []ProductID {
	out := make([]ProductID, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve picks the canonical membership after a sign-in migration. Remote
// wins when it has anything; an empty remote only hides the local set when
// the local set was actually migrated.
func Resolve(local, remote []ProductID, migrated bool) []ProductID {
	switch {
	case len(remote) > 0:
		return remote
	case !migrated && len(local) > 0:
		return local
	default:
		return nil
	}
}

// PendingToggle captures an in-flight remote wishlist mutation: which id,
// which direction and the identity epoch it was issued under.
type PendingToggle struct {
	ID     ProductID
	Adding bool
	Epoch  uint64
}

// ShouldRevert reports whether a failed toggle may be undone: the identity
// is unchanged and the membership still shows what this toggle caused.
func (p PendingToggle) ShouldRevert(current Membership, epoch uint64) bool {
	return p.Epoch == epoch && current.Has(p.ID) == p.Adding
}

// EncodeGuestWishlist serializes ids for the Local Cache.
func EncodeGuestWishlist(ids []ProductID) ([]byte, error) {
	if ids == nil {
		ids = []ProductID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode guest wishlist: %w", err)
	}
	return data, nil
}

// DecodeGuestWishlist parses a guest wishlist record; entries may be
// strings or numbers. Duplicates and empty ids are dropped.
func DecodeGuestWishlist(data []byte) ([]ProductID, error) {
	var ids []ProductID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode guest wishlist: %w", err)
	}
	return NewMembership(ids...).List(), nil
}
