// Package view implements presentation helpers shared by the list
// endpoints: pagination over cached row snapshots and page input parsing.
package view

import "strconv"

// DefaultPageSize is the number of cards per page on every list screen.
const DefaultPageSize = 6

// PageCount returns how many pages a row set spans. An empty set still
// has one page so screens always have a valid current page.
func PageCount(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// ClampPage forces page into [1, PageCount(total, size)]. Used after
// deletions shrink a row set under the current page.
func ClampPage(page, total, size int) int {
	last := PageCount(total, size)
	if page < 1 {
		return 1
	}
	if page > last {
		return last
	}
	return page
}

// Paginate slices one page out of rows. page is clamped first, so the
// result is never out of range; the last page may be short.
func Paginate[T any](rows []T, page, size int) []T {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = ClampPage(page, len(rows), size)

	start := (page - 1) * size
	if start >= len(rows) {
		return []T{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// ParsePageInput interprets free-form page input. Non-numeric text and
// out-of-range numbers revert to current; in-range values clamp no
// further since they already fit.
func ParsePageInput(input string, current, total, size int) int {
	n, err := strconv.Atoi(input)
	if err != nil {
		return current
	}
	if n < 1 || n > PageCount(total, size) {
		return current
	}
	return n
}

// Page is one rendered page of a list screen.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageCount  int `json:"page_count"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
}

// BuildPage assembles a Page from a full snapshot, clamping the
// requested page.
func BuildPage[T any](rows []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = ClampPage(page, len(rows), size)
	return Page[T]{
		Items:      Paginate(rows, page, size),
		Page:       page,
		PageCount:  PageCount(len(rows), size),
		PageSize:   size,
		TotalItems: len(rows),
	}
}
