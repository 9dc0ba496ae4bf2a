package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Colors returns the distinct color labels in declaration order. The implicit
// variant of a product without colors contributes nothing.
func (p Product) Colors() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range p.Variants {
		if v.Color == "" || seen[v.Color] {
			continue
		}
		seen[v.Color] = true
		out = append(out, v.Color)
	}
	return out
}

func (p Product) HasColors() bool {
	return len(p.Colors()) > 0
}

// SizesWithStock lists the sizes of color with quantity > 0, ordered by
// sortSizes.
func (p Product) SizesWithStock(color string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range p.Variants {
		if v.Color != color {
			continue
		}
		for _, e := range v.StockBySize {
			if seen[e.Size] {
				continue
			}
			if p.StockAt(color, e.Size) > 0 {
				seen[e.Size] = true
				out = append(out, e.Size)
			}
		}
	}
	sortSizes(out)
	return out
}

// StockAt returns the quantity on hand for color and size, 0 if absent.
func (p Product) StockAt(color, size string) int {
	n := 0
	for _, v := range p.Variants {
		if v.Color == color {
			n += v.StockBySize.Qty(size)
		}
	}
	return max(n, 0)
}

// TotalStock sums every size of every variant. Products not yet normalized
// and without variants report their flat stock.
func (p Product) TotalStock() int {
	if len(p.Variants) == 0 {
		return max(p.Stock, 0)
	}
	n := 0
	for _, v := range p.Variants {
		for _, e := range v.StockBySize {
			if e.Qty > 0 {
				n += e.Qty
			}
		}
	}
	return n
}

var apparelOrder = map[string]int{
	"XS":   0,
	"S":    1,
	"M":    2,
	"L":    3,
	"XL":   4,
	"XXL":  5,
	"3XL":  6,
	"XXXL": 6,
}

const (
	groupNumeric = iota
	groupApparel
	groupOther
)

func sizeRank(size string) (group int, n float64) {
	s := strings.ToUpper(strings.TrimSpace(size))
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return groupNumeric, f
	}
	if i, ok := apparelOrder[s]; ok {
		return groupApparel, float64(i)
	}
	return groupOther, 0
}

// sortSizes orders numeric sizes numerically, then apparel sizes by the
// canonical XS..3XL order, then anything else in its original order.
func sortSizes(sizes []string) {
	sort.SliceStable(sizes, func(i, j int) bool {
		gi, ni := sizeRank(sizes[i])
		gj, nj := sizeRank(sizes[j])
		if gi != gj {
			return gi < gj
		}
		return ni < nj
	})
}

// SortSizes returns a sorted copy of sizes.
func SortSizes(sizes []string) []string {
	out := append([]string(nil), sizes...)
	sortSizes(out)
	return out
}
