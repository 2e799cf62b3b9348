package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	// MaxPage keeps (page-1)*per_page inside an int32 offset.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Request is a normalized page request. Page is 1-based.
type Request struct {
	Page    int
	PerPage int
}

func NewRequest(page, perPage int) Request {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Request{Page: page, PerPage: perPage}
}

// FromHTTP reads page and per_page from the query string, falling back to
// defaults on missing or malformed values.
func FromHTTP(r *http.Request) Request {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return NewRequest(page, perPage)
}

func (r Request) Offset() int {
	return (r.Page - 1) * r.PerPage
}

func (r Request) Limit() int {
	return r.PerPage
}

// Meta is the pagination block of the response envelope.
type Meta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// Page is one slice of a paginated query.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

func NewPage[T any](items []T, req Request, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Meta: Meta{
			CurrentPage: req.Page,
			PerPage:     req.PerPage,
			Total:       total,
			LastPage:    LastPage(total, req.PerPage),
		},
	}
}

// LastPage is ceil(total/perPage), never below 1.
func LastPage(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		return 1
	}
	return last
}
