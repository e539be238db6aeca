package models

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50

	// MaxPageNumber keeps (page-1)*size well inside int range on every platform.
	MaxPageNumber = math.MaxInt32 / MaxPageSize
)

// Pagination is the page envelope returned next to list data.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	PerPage int `json:"perPage"`
}

// Page is a normalized 1-indexed page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps page and size: page defaults to 1 and is capped at MaxPageNumber, size defaults to defaultSize and is capped at MaxPageSize.
func NewPage(page, size, defaultSize int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPageNumber {
		page = MaxPageNumber
	}
	if size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: page, Size: size}
}

func (p Page) Skip() int {
	return (p.Number - 1) * p.Size
}

// Paginate builds the envelope for total matching items.
func (p Page) Paginate(total int) Pagination {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Pagination{Current: p.Number, Pages: pages, Total: total, PerPage: p.Size}
}
