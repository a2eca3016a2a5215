// Package utils holds small helpers shared by the HTTP and search layers.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a valid number. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page is a 1-based page request with its size already bounded.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw page and size values, applying def when absent and
// clamping the size into [1, max].
func ParsePage(rawPage, rawSize string, def, max int) Page {
	p := Page{Number: AtoiDefault(rawPage, 1), Size: AtoiDefault(rawSize, def)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if max > 0 && p.Size > max {
		p.Size = max
	}
	return p
}

// Offset is the number of items preceding this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages returns how many pages of this size hold total items.
func (p Page) TotalPages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}

// Window returns the [start, end) bounds of a slice of length n for the given
// offset and limit. A non-positive limit yields an empty window.
func Window(n, offset, limit int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= n || limit <= 0 {
		return n, n
	}
	end = offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
