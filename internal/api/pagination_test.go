package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name       string
		page, size int
		want       []int
		meta       Page
	}{
		{"first", 0, 2, []int{1, 2}, Page{Page: 0, PageSize: 2, Total: 5, TotalPages: 3, HasNext: true}},
		{"middle", 1, 2, []int{3, 4}, Page{Page: 1, PageSize: 2, Total: 5, TotalPages: 3, HasPrev: true, HasNext: true}},
		{"last partial", 2, 2, []int{5}, Page{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasPrev: true}},
		{"past the end", 9, 2, []int{}, Page{Page: 9, PageSize: 2, Total: 5, TotalPages: 3, HasPrev: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta := paginate(items, tt.page, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.meta, meta)
		})
	}
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query      string
		page, size int
		ok         bool
	}{
		{"", 0, defaultPageSize, true},
		{"?page=2&page_size=10", 2, 10, true},
		{"?page=-1", 0, 0, false},
		{"?page_size=0", 0, 0, false},
		{"?page_size=500", 0, 0, false},
		{"?page=x", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			page, size, ok := pageParams(httptest.NewRequest("GET", "/api/me/bookings"+tt.query, nil))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.size, size)
		})
	}
}
