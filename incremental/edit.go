package incremental

import (
	"fmt"
	"sort"
)

// Edit replaces OldLen bytes at Start with NewText. Offsets are byte
// offsets into the input as it was before the whole batch of edits.
type Edit struct {
	Start   int
	OldLen  int
	NewText string
}

// Insert is an edit that adds text at offset without removing anything.
func Insert(offset int, text string) Edit {
	return Edit{Start: offset, NewText: text}
}

// Delete is an edit that removes length bytes at offset.
func Delete(offset, length int) Edit {
	return Edit{Start: offset, OldLen: length}
}

// Replace is an edit that swaps length bytes at offset for text.
func Replace(offset, length int, text string) Edit {
	return Edit{Start: offset, OldLen: length, NewText: text}
}

// Delta is the change in input length the edit causes.
func (e Edit) Delta() int { return len(e.NewText) - e.OldLen }

// End is the first unedited byte after the replaced span, in old
// coordinates.
func (e Edit) End() int { return e.Start + e.OldLen }

// Translate maps a pre-edit byte position into the edited text.
// Positions at or before the edit start are unchanged; positions inside
// the replaced span collapse to its end in new coordinates; positions
// past it shift by the delta.
func (e Edit) Translate(pos int) int {
	switch {
	case pos <= e.Start:
		return pos
	case pos <= e.End():
		return e.Start + len(e.NewText)
	default:
		return pos + e.Delta()
	}
}

// DirtyRegion is a half-open byte range [Start, End) of changed input.
type DirtyRegion struct {
	Start int
	End   int
}

func (d DirtyRegion) String() string {
	return fmt.Sprintf("dirty[%d..%d]", d.Start, d.End)
}

// Contains reports whether the region covers pos.
func (d DirtyRegion) Contains(pos int) bool {
	return pos >= d.Start && pos < d.End
}

// Overlaps reports whether the two regions share any position.
func (d DirtyRegion) Overlaps(other DirtyRegion) bool {
	return d.Start < other.End && other.Start < d.End
}

// merge grows the region to cover another; the two must overlap or touch.
func (d DirtyRegion) merge(other DirtyRegion) DirtyRegion {
	if other.Start < d.Start {
		d.Start = other.Start
	}
	if other.End > d.End {
		d.End = other.End
	}
	return d
}

// DirtyTracker keeps a sorted, non-overlapping list of dirty regions.
// Marking a region that overlaps or touches existing ones collapses them
// into one.
type DirtyTracker struct {
	regions []DirtyRegion
}

// Mark records [start, end) as dirty.
func (t *DirtyTracker) Mark(start, end int) {
	if end < start {
		start, end = end, start
	}
	merged := DirtyRegion{Start: start, End: end}

	out := make([]DirtyRegion, 0, len(t.regions)+1)
	placed := false
	for _, r := range t.regions {
		switch {
		case r.End < merged.Start:
			out = append(out, r)
		case r.Start > merged.End:
			if !placed {
				out = append(out, merged)
				placed = true
			}
			out = append(out, r)
		default:
			merged = merged.merge(r)
		}
	}
	if !placed {
		out = append(out, merged)
	}
	t.regions = out
}

// MarkEdit records the edit's replaced span, in old coordinates.
func (t *DirtyTracker) MarkEdit(e Edit) {
	t.Mark(e.Start, e.End())
}

// IsDirty reports whether pos falls in a dirty region.
func (t *DirtyTracker) IsDirty(pos int) bool {
	i := sort.Search(len(t.regions), func(i int) bool {
		return t.regions[i].End > pos
	})
	return i < len(t.regions) && t.regions[i].Contains(pos)
}

// IsRangeDirty reports whether [start, end) overlaps any dirty region.
func (t *DirtyTracker) IsRangeDirty(start, end int) bool {
	query := DirtyRegion{Start: start, End: end}
	i := sort.Search(len(t.regions), func(i int) bool {
		return t.regions[i].End > start
	})
	return i < len(t.regions) && t.regions[i].Overlaps(query)
}

// Regions returns the tracked regions in ascending order.
func (t *DirtyTracker) Regions() []DirtyRegion { return t.regions }

// Empty reports whether nothing is dirty.
func (t *DirtyTracker) Empty() bool { return len(t.regions) == 0 }

// Clear drops every tracked region.
func (t *DirtyTracker) Clear() { t.regions = nil }
