package edits

import "sort"

// Edit is a pending replacement for one text fragment.
type Edit struct {
	Text string `json:"text"`
	// Original is the fragment text seen when the edit was recorded. Empty
	// means the edit was recorded without a fingerprint.
	Original string `json:"original,omitempty"`
}

// Overlay maps page number -> fragment index -> Edit. Overlay values are
// immutable: Set returns a new Overlay and never touches the receiver, so
// callers can detect changes by comparing Version.
type Overlay struct {
	pages   map[int]map[int]Edit
	version uint64
}

// Set returns a copy of o with the edit for (page, index) replaced.
func (o Overlay) Set(page, index int, e Edit) Overlay {
	next := make(map[int]map[int]Edit, len(o.pages)+1)
	for p, sub := range o.pages {
		next[p] = sub
	}
	sub := make(map[int]Edit, len(o.pages[page])+1)
	for i, v := range o.pages[page] {
		sub[i] = v
	}
	sub[index] = e
	next[page] = sub
	return Overlay{pages: next, version: o.version + 1}
}

// Lookup returns the edit for (page, index), if any.
func (o Overlay) Lookup(page, index int) (Edit, bool) {
	e, ok := o.pages[page][index]
	return e, ok
}

// Empty reports whether no edits have been recorded.
func (o Overlay) Empty() bool { return len(o.pages) == 0 }

// Len returns the total number of edits across all pages.
func (o Overlay) Len() int {
	n := 0
	for _, sub := range o.pages {
		n += len(sub)
	}
	return n
}

// Version increases with every Set.
func (o Overlay) Version() uint64 { return o.version }

// Pages returns the edited page numbers in ascending order.
func (o Overlay) Pages() []int {
	pages := make([]int, 0, len(o.pages))
	for p := range o.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Indices returns the edited fragment indices of a page in ascending order.
func (o Overlay) Indices(page int) []int {
	sub := o.pages[page]
	idx := make([]int, 0, len(sub))
	for i := range sub {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Snapshot returns a JSON-safe copy keyed by page then index.
func (o Overlay) Snapshot() map[int]map[int]Edit {
	out := make(map[int]map[int]Edit, len(o.pages))
	for p, sub := range o.pages {
		cp := make(map[int]Edit, len(sub))
		for i, e := range sub {
			cp[i] = e
		}
		out[p] = cp
	}
	return out
}

// Resolve returns the text to show for a fragment: the overlay value if one
// exists, otherwise the fragment's original text.
func Resolve(o Overlay, page, index int, original string) string {
	if e, ok := o.Lookup(page, index); ok {
		return e.Text
	}
	return original
}
