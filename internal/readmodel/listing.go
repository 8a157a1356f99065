package readmodel

import (
	"net/url"
	"strconv"
	"strings"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func (d SortDirection) SQL() string {
	if d == SortAsc {
		return "ASC"
	}
	return "DESC"
}

const (
	// PageSizeAll disables pagination.
	PageSizeAll     = 0
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// ListRequest asks for one page of the timeline ordered by occurred_at.
type ListRequest struct {
	Page      int
	PageSize  int
	Direction SortDirection
}

func DefaultListRequest() ListRequest {
	return ListRequest{Page: 1, PageSize: DefaultPageSize, Direction: SortDesc}
}

// ShowAll requests every row in one page.
func ShowAll(dir SortDirection) ListRequest {
	return ListRequest{Page: 1, PageSize: PageSizeAll, Direction: dir}
}

// ParseListRequest reads page, page_size and dir from query values, falling
// back to defaults for anything missing or malformed.
func ParseListRequest(q url.Values) ListRequest {
	req := DefaultListRequest()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		req.Page = v
	}
	switch ps := strings.ToLower(q.Get("page_size")); ps {
	case "":
	case "all":
		req.PageSize = PageSizeAll
	default:
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			req.PageSize = min(v, MaxPageSize)
		}
	}
	if strings.EqualFold(q.Get("dir"), string(SortAsc)) {
		req.Direction = SortAsc
	}
	return req
}

func (r ListRequest) ShowsAll() bool {
	return r.PageSize == PageSizeAll
}

// EnsurePageWithin clamps the page to the last page holding rows.
func (r ListRequest) EnsurePageWithin(total int64) ListRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.ShowsAll() {
		r.Page = 1
		return r
	}
	lastPage := int((total + int64(r.PageSize) - 1) / int64(r.PageSize))
	if lastPage < 1 {
		lastPage = 1
	}
	if r.Page > lastPage {
		r.Page = lastPage
	}
	return r
}

// Offset returns the row offset of the requested page.
func (r ListRequest) Offset() int {
	if r.ShowsAll() || r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	ShowAll  bool  `json:"show_all"`
}

func (p *Page[T]) HasNext() bool {
	if p.ShowAll {
		return false
	}
	return int64(p.Page*p.PageSize) < p.Total
}
