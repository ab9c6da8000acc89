package domain

// CompareCapacity bounds the compare set.
const CompareCapacity = 3

// CompareSet is a fixed-capacity sliding window of distinct products in
// insertion order. Adding to a full set evicts the oldest entry.
type CompareSet struct {
	items []Product
}

// Add appends p unless already present and reports whether the set changed.
func (s *CompareSet) Add(p Product) bool {
	if indexOf(s.items, p.ID) >= 0 {
		return false
	}
	if len(s.items) >= CompareCapacity {
		s.items = append(s.items[:0:0], s.items[len(s.items)-CompareCapacity+1:]...)
	}
	s.items = append(s.items, p.clone())
	return true
}

// Remove deletes id if present.
func (s *CompareSet) Remove(id ProductID) bool {
	i := indexOf(s.items, id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Clear empties the set.
func (s *CompareSet) Clear() { s.items = nil }

// Len returns the number of entries.
func (s *CompareSet) Len() int { return len(s.items) }

// Items returns a copy in insertion order.
func (s *CompareSet) Items() []Product { return cloneProducts(s.items) }

// Submit hands the current entries to a comparison and clears the set.
func (s *CompareSet) Submit() []Product {
	out := s.items
	s.items = nil
	if out == nil {
		return []Product{}
	}
	return out
}
