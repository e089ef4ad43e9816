package position

import "sort"

// Item 是内存中的一个兄弟实体
type Item struct {
	ID       string
	Scope    string
	Position int
}

// Apply 在内存中执行平移，返回新的切片，不修改入参。
func Apply(items []Item, shifts []Shift) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for _, s := range shifts {
		for i := range out {
			if out[i].Scope != s.Scope || out[i].ID == s.ExcludeID {
				continue
			}
			if s.Covers(items[i].Position) {
				out[i].Position += s.Delta
			}
		}
	}
	return out
}

// Dense 判断一组位置是否恰好是 0..n-1 的排列
func Dense(positions []int) bool {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for i, p := range sorted {
		if p != i {
			return false
		}
	}
	return true
}
