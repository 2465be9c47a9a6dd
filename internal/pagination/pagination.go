// Package pagination builds the compressed page list shown under post listings.
package pagination

// Marker is either a 1-based page number or Ellipsis.
type Marker int

// Ellipsis stands for a run of skipped pages.
const Ellipsis Marker = -1

// maxFullPages is the largest page count rendered without gaps.
const maxFullPages = 7

// IsEllipsis reports whether the marker is a gap placeholder.
func (m Marker) IsEllipsis() bool {
	return m == Ellipsis
}

// Page returns the page number for a non-ellipsis marker.
func (m Marker) Page() int {
	return int(m)
}

// Markers returns the pager layout for the given page. A current page outside
// [1, total] is clamped before the layout is chosen.
func Markers(current, total int) []Marker {
	if total <= 0 {
		return []Marker{}
	}

	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	if total <= maxFullPages {
		return pageRange(1, total)
	}

	switch {
	case current <= 3:
		return append(pageRange(1, 4), Ellipsis, Marker(total))
	case current >= total-2:
		return append([]Marker{1, Ellipsis}, pageRange(total-3, total)...)
	default:
		markers := []Marker{1, Ellipsis}
		markers = append(markers, pageRange(current-1, current+1)...)
		return append(markers, Ellipsis, Marker(total))
	}
}

func pageRange(from, to int) []Marker {
	out := make([]Marker, 0, to-from+1)
	for page := from; page <= to; page++ {
		out = append(out, Marker(page))
	}
	return out
}

// TotalPages is the number of pages needed for count items.
func TotalPages(count int64, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return int((count + int64(pageSize) - 1) / int64(pageSize))
}

// Offset returns the zero-based row offset of a 1-based page.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
