package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationQuery(t *testing.T) {
	tests := []struct {
		name   string
		q      PaginationQuery
		page   int
		limit  int
		offset int
	}{
		{"defaults", PaginationQuery{}, 1, DefaultPageSize, 0},
		{"third page", PaginationQuery{Page: 3, PageSize: 25}, 3, 25, 50},
		{"capped", PaginationQuery{Page: 2, PageSize: 500}, 2, MaxPageSize, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.page, tt.q.CurrentPage())
			assert.Equal(t, tt.limit, tt.q.Limit())
			assert.Equal(t, tt.offset, tt.q.Offset())
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(45, PaginationQuery{Page: 2, PageSize: 20})
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	last := NewPagination(45, PaginationQuery{Page: 3, PageSize: 20})
	assert.False(t, last.HasNext)

	empty := NewPagination(0, PaginationQuery{})
	assert.Zero(t, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestNewPageResponse_NilItems(t *testing.T) {
	raw, err := json.Marshal(NewPageResponse[string](nil, 0, PaginationQuery{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"pagination":{"total_items":0,"total_pages":0,"current_page":1,"page_size":20,"has_next":false,"has_prev":false}}`, string(raw))
}
