package catalog

import "time"

// Snapshot is the in-memory copy of the catalog taken once per session. All
// stock checks made against it are advisory.
type Snapshot struct {
	products []Product
	byID     map[int64]int
	TakenAt  time.Time
}

func NewSnapshot(ps []Product) *Snapshot {
	s := &Snapshot{
		products: make([]Product, 0, len(ps)),
		byID:     make(map[int64]int, len(ps)),
		TakenAt:  time.Now().UTC(),
	}
	for _, p := range ps {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, Normalize(p))
	}
	return s
}

func (s *Snapshot) Product(id int64) (Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

func (s *Snapshot) Products() []Product {
	return append([]Product(nil), s.products...)
}
