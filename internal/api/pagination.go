package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page describes one page of a list response. Pages are zero-based.
type Page struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// pageParams reads ?page=&page_size=. Missing values mean the first page of
// defaultPageSize items.
func pageParams(r *http.Request) (page, size int, ok bool) {
	q := r.URL.Query()
	size = defaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxPageSize {
			return 0, 0, false
		}
		size = n
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		page = n
	}
	return page, size, true
}

// paginate slices items to the requested page. A page past the end is empty.
func paginate[T any](items []T, page, size int) ([]T, Page) {
	total := len(items)
	startIdx := page * size
	endIdx := startIdx + size
	if startIdx > total {
		startIdx = total
	}
	if endIdx > total {
		endIdx = total
	}

	meta := Page{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
		HasPrev:    page > 0,
		HasNext:    endIdx < total,
	}
	return items[startIdx:endIdx], meta
}
