package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 50
	MaxSize     = 100

	// MaxPage keeps (page-1)*size within a Postgres integer OFFSET.
	MaxPage = math.MaxInt32 / MaxSize
)

// Params holds page-number pagination parameters extracted from a request.
// Page is 1-based.
type Params struct {
	Page int
	Size int
}

// FromContext reads ?page= and ?size=, clamping them to valid values.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Params{Page: page, Size: size}
}

// Limit is the SQL LIMIT for the page.
func (p Params) Limit() int {
	return p.Size
}

// Offset is the SQL OFFSET for the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// Page is the list envelope returned by every paginated endpoint.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// NewPage wraps one page of items. Items is never serialized as null.
func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return &Page[T]{
		Items: items,
		Total: total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: pages,
	}
}
