package domain

// RecentCapacity bounds the recently-viewed history.
const RecentCapacity = 5

// RecentlyViewed is a most-recent-first history without duplicates.
type RecentlyViewed struct {
	items []Product
}

// Record moves p to the front, dropping anything beyond RecentCapacity.
func (r *RecentlyViewed) Record(p Product) {
	next := make([]Product, 0, RecentCapacity)
	next = append(next, p.clone())
	for _, item := range r.items {
		if len(next) == RecentCapacity {
			break
		}
		if item.ID != p.ID {
			next = append(next, item)
		}
	}
	r.items = next
}

// Items returns a copy, most recent first.
func (r *RecentlyViewed) Items() []Product { return cloneProducts(r.items) }

// Len returns the number of entries.
func (r *RecentlyViewed) Len() int { return len(r.items) }
