// Package page holds the pagination types shared by every list operation.
package page

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Request is a normalized page selection.
type Request struct {
	Page  int
	Limit int
}

// Normalize clamps the request into supported bounds.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit <= 0 {
		r.Limit = defaultLimit
	}
	if r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	return r
}

// Offset returns the zero-based record offset of the page.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Info describes the collection a page was cut from.
type Info struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalRecords int `json:"totalRecords"`
	Limit        int `json:"limit"`
}

// InfoFor computes page metadata for a total record count.
func InfoFor(r Request, total int) Info {
	pages := total / r.Limit
	if total%r.Limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return Info{
		CurrentPage:  r.Page,
		TotalPages:   pages,
		TotalRecords: total,
		Limit:        r.Limit,
	}
}
