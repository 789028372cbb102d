// File: internal/common/pagination.go
package common

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationQuery holds pagination parameters from request query.
type PaginationQuery struct {
	Page     int `form:"page" binding:"omitempty,gte=1"`
	PageSize int `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// CurrentPage is Page, defaulted.
func (q PaginationQuery) CurrentPage() int {
	if q.Page <= 0 {
		return DefaultPage
	}
	return q.Page
}

// Limit is PageSize, defaulted and capped.
func (q PaginationQuery) Limit() int {
	switch {
	case q.PageSize <= 0:
		return DefaultPageSize
	case q.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return q.PageSize
}

// Offset calculates the offset of the first item on the page.
func (q PaginationQuery) Offset() int {
	return (q.CurrentPage() - 1) * q.Limit()
}

// Pagination struct for paginated API responses
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// NewPagination creates a pagination object.
func NewPagination(totalItems int64, q PaginationQuery) *Pagination {
	page, pageSize := q.CurrentPage(), q.Limit()
	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))

	return &Pagination{
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// PageResponse is the data of a paginated list endpoint.
type PageResponse[T any] struct {
	Items      []T         `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// NewPageResponse wraps one page of items. A nil slice is sent as [].
func NewPageResponse[T any](items []T, totalItems int64, q PaginationQuery) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Items: items, Pagination: NewPagination(totalItems, q)}
}
